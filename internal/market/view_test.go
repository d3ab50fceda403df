package market

import (
	"errors"
	"net/url"
	"testing"

	"cryptotracker/internal/failure"
)

func TestParseView(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		expected View
		wantErr  bool
	}{
		{name: "defaults", query: "", expected: DefaultView()},
		{name: "full", query: "q=eth&sort=market_cap&dir=DESC&count=20", expected: View{Query: "eth", SortKey: SortMarketCap, Direction: Descending, Count: 20}},
		{name: "unknown sort", query: "sort=popularity", wantErr: true},
		{name: "unknown direction", query: "dir=sideways", wantErr: true},
		{name: "bad count", query: "count=ten", wantErr: true},
		{name: "negative count", query: "count=-1", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tc.query)
			v, err := ParseView(values)
			if tc.wantErr {
				var fe *failure.Error
				if !errors.As(err, &fe) || fe.Kind != failure.KindValidation {
					t.Fatalf("Expected validation failure, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if v != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, v)
			}
		})
	}
}

func TestShowMoreNeverShrinks(t *testing.T) {
	v := View{SortKey: SortRank, Direction: Ascending, Count: 40}
	v.ShowMore(5)
	if v.Count != 40 {
		t.Errorf("Expected count to stay 40 when matches shrink, got %d", v.Count)
	}

	v = DefaultView()
	v.ShowMore(0)
	if v.Count != InitialPageSize {
		t.Errorf("Expected count %d with no matches, got %d", InitialPageSize, v.Count)
	}
}
