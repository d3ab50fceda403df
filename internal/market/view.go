package market

import (
	"net/url"
	"strconv"
	"strings"

	"cryptotracker/internal/failure"
)

type SortKey string

const (
	SortRank      SortKey = "rank"
	SortName      SortKey = "name"
	SortPrice     SortKey = "price"
	SortMarketCap SortKey = "market_cap"
	SortVolume    SortKey = "volume"
	SortChange24h SortKey = "change_24h"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

const (
	InitialPageSize = 10
	PageStep        = 10
)

var sortKeys = map[SortKey]bool{
	SortRank: true, SortName: true, SortPrice: true,
	SortMarketCap: true, SortVolume: true, SortChange24h: true,
}

// View is the per-session list state: what to match, how to order it and
// how many rows are shown.
type View struct {
	Query     string    `json:"q"`
	SortKey   SortKey   `json:"sort"`
	Direction Direction `json:"dir"`
	Count     int       `json:"count"`
}

// DefaultView is the state a fresh session starts in and Reset returns to.
func DefaultView() View {
	return View{SortKey: SortRank, Direction: Ascending, Count: InitialPageSize}
}

// ShowMore grows the page by PageStep. The count never shrinks and stops
// growing once it covers every match.
func (v *View) ShowMore(total int) {
	next := v.Count + PageStep
	limit := max(total, v.Count, InitialPageSize)
	v.Count = min(next, limit)
}

// Reset clears the query and restores the default ordering and page size.
func (v *View) Reset() {
	*v = DefaultView()
}

// Validate reports unknown sort keys, directions or a negative count.
func (v View) Validate() error {
	if !sortKeys[v.SortKey] {
		return failure.Invalid("unknown sort key %q", v.SortKey)
	}
	if v.Direction != Ascending && v.Direction != Descending {
		return failure.Invalid("unknown sort direction %q", v.Direction)
	}
	if v.Count < 0 {
		return failure.Invalid("count must not be negative")
	}
	return nil
}

// ParseView reads q, sort, dir and count from query parameters, falling back
// to the defaults for anything absent.
func ParseView(q url.Values) (View, error) {
	v := DefaultView()
	v.Query = q.Get("q")

	if s := q.Get("sort"); s != "" {
		v.SortKey = SortKey(strings.ToLower(s))
	}
	if d := q.Get("dir"); d != "" {
		v.Direction = Direction(strings.ToLower(d))
	}
	if c := q.Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			return View{}, failure.Invalid("count must be an integer")
		}
		v.Count = n
	}

	if err := v.Validate(); err != nil {
		return View{}, err
	}
	return v, nil
}
