//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that run the built CLI against the configured store.
type Pipeline mg.Namespace

// Poll fetches headlines from every enabled source once.
func (Pipeline) Poll() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "poll")
}

// Score scores pending headlines with every enabled model.
func (Pipeline) Score() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "score")
}

// Cycle runs one poll, score, and trend cycle.
func (Pipeline) Cycle() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "cycle")
}

// Serve starts the API with the scheduler running alongside it.
func (Pipeline) Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "serve", "--schedule")
}

// Trend prints the last 24 trend windows.
func (Pipeline) Trend() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "trend")
}
