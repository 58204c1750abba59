// Package season builds the list of NHL season identifiers to scan during
// player discovery.
package season

import (
	"fmt"
	"slices"
	"time"
)

// FirstStartYear is the start year of the first NHL season (1917-18).
const FirstStartYear = 1917

// ID is a season identifier in the form YYYYZZZZ where ZZZZ = YYYY+1,
// e.g. 19171918.
type ID int

// FromStartYear returns the season starting in year.
func FromStartYear(year int) ID {
	return ID(year*10000 + year + 1)
}

// StartYear returns the calendar year the season starts in.
func (id ID) StartYear() int {
	return int(id) / 10000
}

// Valid reports whether the end year directly follows the start year.
func (id ID) Valid() bool {
	start := int(id) / 10000
	return start > 0 && int(id)%10000 == start+1
}

// String returns the YYYYZZZZ form.
func (id ID) String() string {
	return fmt.Sprintf("%d", int(id))
}

// Builder computes the season list from explicit configuration or a year range.
type Builder struct {
	// Explicit seasons; used verbatim (deduplicated, sorted) when non-empty.
	Explicit []ID

	// StartYear of the generated range (default FirstStartYear).
	StartYear int

	// EndYear is exclusive; zero means the current UTC year + 1.
	EndYear int

	// Now returns the current time (default time.Now).
	Now func() time.Time
}

// Seasons returns the sorted, deduplicated season list.
func (b Builder) Seasons() []ID {
	if len(b.Explicit) > 0 {
		out := slices.Clone(b.Explicit)
		slices.Sort(out)
		return slices.Compact(out)
	}

	start := b.StartYear
	if start == 0 {
		start = FirstStartYear
	}
	end := b.EndYear
	if end == 0 {
		now := time.Now
		if b.Now != nil {
			now = b.Now
		}
		end = now().UTC().Year() + 1
	}

	if end <= start {
		return nil
	}
	out := make([]ID, 0, end-start)
	for year := start; year < end; year++ {
		out = append(out, FromStartYear(year))
	}
	return out
}
