package domain

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"retail-backoffice/internal/metadata"
)

//go:embed schema.yaml
var retailSchema []byte

// LoadSchema returns the entity registry from path, or the embedded retail
// schema when path is empty.
func LoadSchema(path string) (*metadata.Registry, error) {
	if path == "" {
		return metadata.LoadYAML(bytes.NewReader(retailSchema))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema %s: %w", path, err)
	}
	defer f.Close()
	return metadata.LoadYAML(f)
}
