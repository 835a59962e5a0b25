package utils

import "testing"

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{"empty existing", Label{}, Label{"a", "filter"}, Label{"a", "filter"}},
		{"empty incoming", Label{"a", "filter"}, Label{}, Label{"a", "filter"}},
		{"both", Label{"a", "filter.expr"}, Label{"b", "filter.exclude"}, Label{"a|b", "filter.expr,filter.exclude"}},
		{"no existing source", Label{"a", ""}, Label{"b", "rank"}, Label{"a|b", "rank"}},
		{"no incoming source", Label{"a", "rank"}, Label{"b", ""}, Label{"a|b", "rank"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLabel(tt.existing, tt.incoming); got != tt.want {
				t.Errorf("MergeLabel = %+v, want %+v", got, tt.want)
			}
		})
	}
}
