package catalog

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// file is the on-disk catalog layout shared by the JSON and TOML decoders.
// Genres are a list (not an object) so station order survives decoding.
type file struct {
	Genres []genreEntry `json:"genres" toml:"genres"`
}

type genreEntry struct {
	Name     string    `json:"name" toml:"name"`
	Stations []Station `json:"stations" toml:"stations"`
}

// Load reads a catalog file from fsys. The decoder is chosen by extension:
// ".json" or ".toml".
func Load(fsys afero.Fs, path string) (*Catalog, error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("catalog parse error: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("catalog parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	return f.build()
}

func (f file) build() (*Catalog, error) {
	byGenre := make(map[string][]Station, len(f.Genres))
	for _, g := range f.Genres {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog genre without a name")
		}
		if _, ok := byGenre[name]; !ok {
			byGenre[name] = []Station{}
		}
		for _, st := range g.Stations {
			st.Name = strings.TrimSpace(st.Name)
			st.URI = strings.TrimSpace(st.URI)
			if st.URI == "" {
				return nil, fmt.Errorf("station %q in genre %q has no stream uri", st.Name, name)
			}
			byGenre[name] = append(byGenre[name], st)
		}
	}
	return New(byGenre), nil
}
