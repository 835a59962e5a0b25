package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/store"
)

func scored(id string, score float64, member bool) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	it.InTrainingSet = member
	return it
}

func ids(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFilterNode_Expr(t *testing.T) {
	f, err := NewExprFilter(`item.probability >= 50.0 && !item.in_training_set`)
	if err != nil {
		t.Fatalf("NewExprFilter: %v", err)
	}
	failed := scored("T5", 0.9, false)
	failed.Err = errors.New("boom")

	items := []*core.Item{
		scored("T1", 0.8, false),
		scored("T2", 0.8, true),
		scored("T3", 0.4, false),
		scored("T4", 0.5, false),
		failed,
	}
	out, err := (&FilterNode{Filters: []Filter{f}}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := ids(out)
	want := []string{"T1", "T4"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("shortlist = %v, want %v", got, want)
	}
	if items[1].Labels["filtered"].Source != "filter.expr" {
		t.Errorf("filtered label = %+v", items[1].Labels["filtered"])
	}
	if items[0].Labels["shortlist"].Value != "true" {
		t.Errorf("shortlist label missing: %+v", items[0].Labels)
	}
}

func TestFilterNode_NoFilters(t *testing.T) {
	items := []*core.Item{scored("T1", 0.1, false), scored("T2", 0.9, false)}
	out, err := (&FilterNode{}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("got %d items, want 2", len(out))
	}
}

func TestNewExprFilter_Invalid(t *testing.T) {
	if _, err := NewExprFilter(`item.score +`); err == nil {
		t.Error("expected compile error")
	}
}

func TestExcludeFilter(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	if err := kv.Set(ctx, "exclude", []byte(`["T3"]`)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		f    *ExcludeFilter
		id   string
		want bool
	}{
		{"in memory list", NewExcludeFilter([]string{"T1"}, nil, ""), "T1", true},
		{"not listed", NewExcludeFilter([]string{"T1"}, nil, ""), "T2", false},
		{"from store", NewExcludeFilter(nil, NewStoreAdapter(kv), "exclude"), "T3", true},
		{"store miss", NewExcludeFilter(nil, NewStoreAdapter(kv), "exclude"), "T4", false},
		{"absent key", NewExcludeFilter(nil, NewStoreAdapter(kv), "other"), "T3", false},
		{"literal", &ExcludeFilter{TargetIDs: []string{"T9"}}, "T9", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.f.ShouldFilter(ctx, nil, core.NewItem(tt.id))
			if err != nil {
				t.Fatalf("ShouldFilter: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldFilter(%s) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestExcludeFilter_BadPayload(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	_ = kv.Set(ctx, "exclude", []byte(`not json`))

	f := NewExcludeFilter(nil, NewStoreAdapter(kv), "exclude")
	if _, err := f.ShouldFilter(ctx, nil, core.NewItem("T1")); err == nil {
		t.Error("expected decode error")
	}

	// FilterNode 忽略过滤器错误，靶点保留
	out, err := (&FilterNode{Filters: []Filter{f}}).Process(ctx, nil, []*core.Item{core.NewItem("T1")})
	if err != nil || len(out) != 1 {
		t.Errorf("Process = %d items, %v", len(out), err)
	}
}
