// Package catalog holds the genre-organised station list the engine plays from.
// A Catalog is built once at startup and never mutated afterwards.
package catalog

import (
	"sort"
	"strings"
)

// Station is a named internet radio stream endpoint.
type Station struct {
	Name string `json:"name" toml:"name"`
	URI  string `json:"uri" toml:"uri"`
}

// Catalog maps genre labels to stations in declaration order.
type Catalog struct {
	genres   []string
	stations map[string][]Station
}

// New builds a read-only Catalog. The input map is copied.
func New(byGenre map[string][]Station) *Catalog {
	c := &Catalog{stations: make(map[string][]Station, len(byGenre))}
	for genre, list := range byGenre {
		cp := make([]Station, len(list))
		copy(cp, list)
		c.stations[genre] = cp
		c.genres = append(c.genres, genre)
	}
	sort.Strings(c.genres)
	return c
}

// Genres returns all genre labels sorted ascending.
func (c *Catalog) Genres() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.genres))
	copy(out, c.genres)
	return out
}

// StationsIn returns the stations of genre in declaration order. An unknown
// genre yields an empty slice.
func (c *Catalog) StationsIn(genre string) []Station {
	if c == nil {
		return []Station{}
	}
	list := c.stations[genre]
	out := make([]Station, len(list))
	copy(out, list)
	return out
}

// Find looks a station up by name (case-insensitive), scanning genres in
// sorted order.
func (c *Catalog) Find(name string) (Station, bool) {
	if c == nil {
		return Station{}, false
	}
	name = strings.TrimSpace(name)
	for _, g := range c.genres {
		for _, st := range c.stations[g] {
			if strings.EqualFold(st.Name, name) {
				return st, true
			}
		}
	}
	return Station{}, false
}

// GenreOf returns the first genre (sorted order) that lists st.
func (c *Catalog) GenreOf(st Station) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, g := range c.genres {
		for _, s := range c.stations[g] {
			if s == st {
				return g, true
			}
		}
	}
	return "", false
}
