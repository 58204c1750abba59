// Package stream implements the player landing streams: partition planning
// (configured or discovered player ids) and the per-player detail fetch.
package stream

import (
	"github.com/Sternrassler/tap-nhl/pkg/discovery"
)

// Category describes one player stream. Skaters and goalies share all logic
// and differ only in these values.
type Category struct {
	// Name is the stream name.
	Name string

	// DiscoveryEndpoints are the stats API summary endpoints listing the
	// category's players.
	DiscoveryEndpoints []string

	// ConfigKeys are the config keys holding explicit player ids, in
	// precedence order.
	ConfigKeys []string
}

var (
	// Skaters is the skater landing stream. "player_ids" is the legacy key.
	Skaters = Category{
		Name:               "skaters",
		DiscoveryEndpoints: []string{discovery.SkaterEndpoint},
		ConfigKeys:         []string{"skater_ids", "player_ids"},
	}

	// Goalies is the goalie landing stream.
	Goalies = Category{
		Name:               "goalies",
		DiscoveryEndpoints: []string{discovery.GoalieEndpoint},
		ConfigKeys:         []string{"goalie_ids"},
	}
)

// Categories returns every stream category in sync order.
func Categories() []Category {
	return []Category{Skaters, Goalies}
}

// Lookup returns the category named name.
func Lookup(name string) (Category, bool) {
	for _, c := range Categories() {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
