package radioapp

import (
	"github.com/edward-ap/recradio/internal/catalog"
	"github.com/edward-ap/recradio/internal/config"
)

// restoreTarget resolves the saved selection against cat. A saved station
// is shown under the saved genre when that genre lists it, otherwise under
// the first genre that does. ok is false when no station is to be selected.
func restoreTarget(cat *catalog.Catalog, cfg *config.Config) (genre string, st catalog.Station, ok bool) {
	if cfg.LastStation != "" {
		if found, exists := cat.Find(cfg.LastStation); exists {
			if listsStation(cat, cfg.LastGenre, found) {
				return cfg.LastGenre, found, true
			}
			if g, listed := cat.GenreOf(found); listed {
				return g, found, true
			}
		}
	}
	for _, g := range cat.Genres() {
		if g == cfg.LastGenre {
			return g, catalog.Station{}, false
		}
	}
	return "", catalog.Station{}, false
}

func listsStation(cat *catalog.Catalog, genre string, st catalog.Station) bool {
	for _, s := range cat.StationsIn(genre) {
		if s == st {
			return true
		}
	}
	return false
}
