package tap

import (
	"github.com/Sternrassler/tap-nhl/pkg/stream"
)

// Catalog is the discover output.
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream.
type CatalogEntry struct {
	TapStreamID   string         `json:"tap_stream_id"`
	Stream        string         `json:"stream"`
	Schema        map[string]any `json:"schema"`
	KeyProperties []string       `json:"key_properties"`
	Metadata      []Metadata     `json:"metadata"`
}

// Metadata is a catalog metadata entry.
type Metadata struct {
	Breadcrumb []string       `json:"breadcrumb"`
	Metadata   map[string]any `json:"metadata"`
}

// BuildCatalog returns the catalog of every stream category.
func BuildCatalog() Catalog {
	categories := stream.Categories()
	catalog := Catalog{Streams: make([]CatalogEntry, 0, len(categories))}
	for _, c := range categories {
		catalog.Streams = append(catalog.Streams, CatalogEntry{
			TapStreamID:   c.Name,
			Stream:        c.Name,
			Schema:        LandingSchema(),
			KeyProperties: []string{stream.PrimaryKey},
			Metadata: []Metadata{{
				Breadcrumb: []string{},
				Metadata: map[string]any{
					"inclusion":            "available",
					"selected":             true,
					"table-key-properties": []string{stream.PrimaryKey},
				},
			}},
		})
	}
	return catalog
}

// About describes the tap for the about command.
type About struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Streams      []string `json:"streams"`
	Capabilities []string `json:"capabilities"`
	Settings     []string `json:"settings"`
}

// AboutInfo returns the about description. settings lists accepted config keys.
func AboutInfo(version string, settings []string) About {
	names := make([]string, 0, 2)
	for _, c := range stream.Categories() {
		names = append(names, c.Name)
	}
	return About{
		Name:         Name,
		Version:      version,
		Streams:      names,
		Capabilities: []string{"discover", "about"},
		Settings:     settings,
	}
}
