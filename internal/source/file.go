// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/headline-sentiment/pkg/types"
)

// FileAdapter replays items from a local YAML or JSON file. The file holds
// either a list of items or a mapping with an "items" list. It is re-read on
// every fetch, so appending to it simulates a live source.
type FileAdapter struct {
	name string
	path string
}

// NewFileAdapter creates an adapter reading path.
func NewFileAdapter(name, path string) *FileAdapter {
	return &FileAdapter{name: name, path: path}
}

func (a *FileAdapter) Name() string { return a.name }

type fileItems struct {
	Items []types.RawItem `yaml:"items"`
}

// Fetch reads and decodes the file.
func (a *FileAdapter) Fetch(ctx context.Context) ([]types.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(a.name, err)
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, unavailable(a.name, eris.Wrapf(err, "reading %s", a.path))
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, unavailable(a.name, eris.Wrapf(err, "parsing %s", a.path))
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	var items []types.RawItem
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		err = root.Decode(&items)
	} else {
		var wrapped fileItems
		err = root.Decode(&wrapped)
		items = wrapped.Items
	}
	if err != nil {
		return nil, unavailable(a.name, eris.Wrapf(err, "decoding %s", a.path))
	}

	for i := range items {
		items[i].PublishedAt = utcPtr(items[i].PublishedAt)
	}
	return items, nil
}
