package core

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/rushteam/targetdb/pkg/utils"
)

func TestTractabilityLabel(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{80, LabelTractable},
		{50, LabelTractable},
		{49.99, LabelNotTractable},
		{0, LabelNotTractable},
	}
	for _, tt := range tests {
		if got := TractabilityLabel(tt.pct); got != tt.want {
			t.Errorf("TractabilityLabel(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestProbabilityPct(t *testing.T) {
	tests := []struct {
		p1   float64
		want float64
	}{
		{0.8, 80},
		{0.5, 50},
		{0.12346, 12.35},
		{1, 100},
	}
	for _, tt := range tests {
		if got := ProbabilityPct(tt.p1); got != tt.want {
			t.Errorf("ProbabilityPct(%v) = %v, want %v", tt.p1, got, tt.want)
		}
	}
}

func TestNewPrediction_ThresholdBeforeRounding(t *testing.T) {
	tests := []struct {
		p1      float64
		wantPct float64
		want    string
	}{
		{0.499996, 50, LabelNotTractable},
		{0.5, 50, LabelTractable},
		{0.500004, 50, LabelTractable},
	}
	for _, tt := range tests {
		it := NewItem("T1")
		it.Score = tt.p1
		p := NewPrediction(it)
		if p.Probability != tt.wantPct || p.Tractable != tt.want {
			t.Errorf("p1=%v: got %v %q, want %v %q", tt.p1, p.Probability, p.Tractable, tt.wantPct, tt.want)
		}
	}
}

func TestNewPrediction(t *testing.T) {
	it := NewItem("T1")
	it.GeneName = "GENE1"
	it.Score = 0.4
	it.InTrainingSet = true
	p := NewPrediction(it)
	want := Prediction{TargetID: "T1", GeneName: "GENE1", Probability: 40, Tractable: LabelNotTractable, InTrainingSet: true}
	if p != want {
		t.Errorf("NewPrediction = %+v, want %+v", p, want)
	}

	it.Err = errors.New("boom")
	p = NewPrediction(it)
	if !p.Failed() || p.Tractable != LabelFailed || p.FailureReason != "boom" || p.Probability != 0 {
		t.Errorf("failed prediction = %+v", p)
	}
	if FailedPrediction("T2", "", nil).FailureReason == "" {
		t.Error("nil error must still produce a failure reason")
	}
}

func TestPredictionTable_Order(t *testing.T) {
	table := &PredictionTable{Rows: []Prediction{
		{TargetID: "T3", Probability: 10, Tractable: LabelNotTractable},
		{TargetID: "T1", Tractable: LabelFailed, FailureReason: "x"},
		{TargetID: "T2", Probability: 90, Tractable: LabelTractable},
		{TargetID: "T9", Probability: 60, Tractable: LabelTractable},
	}, Shortlist: []string{"T2"}}

	table.SortByOrder([]string{"T1", "T2", "T3", "T1"})
	var ids []string
	for _, r := range table.Rows {
		ids = append(ids, r.TargetID)
	}
	if want := []string{"T1", "T2", "T3", "T9"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("SortByOrder = %v, want %v", ids, want)
	}

	ranked := table.Ranked()
	ids = ids[:0]
	for _, r := range ranked.Rows {
		ids = append(ids, r.TargetID)
	}
	if want := []string{"T2", "T9", "T3", "T1"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Ranked = %v, want %v", ids, want)
	}
	if !reflect.DeepEqual(ranked.Shortlist, []string{"T2"}) {
		t.Errorf("Ranked dropped shortlist: %v", ranked.Shortlist)
	}
	if table.Rows[0].TargetID != "T1" {
		t.Error("Ranked must not reorder the receiver")
	}

	if table.Len() != 4 || table.Failed() != 1 {
		t.Errorf("Len = %d, Failed = %d", table.Len(), table.Failed())
	}
	if _, ok := table.Lookup("T9"); !ok {
		t.Error("Lookup(T9) missing")
	}
	if _, ok := table.Lookup("T0"); ok {
		t.Error("Lookup(T0) should miss")
	}
	var nilTable *PredictionTable
	if nilTable.Len() != 0 {
		t.Error("nil table Len")
	}
}

func TestDomainError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("worker 1: %w", WrapDomainError(ModuleStore, ErrorCodeUnavailable, cause, "store: ping %s", "sqlite"))

	if !IsUnavailable(err) || !IsFatal(err) || IsSchemaMismatch(err) {
		t.Errorf("classification wrong for %v", err)
	}
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
		t.Errorf("errors.Is chain broken for %v", err)
	}
	if got := err.Error(); got != "worker 1: store: ping sqlite: connection refused" {
		t.Errorf("Error() = %q", got)
	}

	mismatch := NewDomainError(ModuleDescriptor, ErrorCodeSchemaMismatch, "descriptor: schema v1 mismatch")
	if !IsSchemaMismatch(mismatch) || !IsFatal(mismatch) {
		t.Error("schema mismatch must be fatal")
	}
	if errors.Is(mismatch, ErrSchemaMismatch) {
		t.Error("descriptor mismatch should not match the model sentinel")
	}
	if IsFatal(NewDomainError(ModuleFeature, ErrorCodeInvalidInput, "x")) || IsFatal(errors.New("plain")) {
		t.Error("non-fatal errors classified as fatal")
	}
	if !IsNotFound(ErrKeyNotFound) || GetDomainError(nil) != nil || IsDomainError(errors.New("plain")) {
		t.Error("helper mismatch")
	}
}

func TestRecord_ColumnOrder(t *testing.T) {
	r := NewRecord("T1")
	r.Set("b", 1.0)
	r.Set("a", true)
	r.Set("b", 2.0)
	r.Set("c", nil)
	if want := []string{"b", "a", "c"}; !reflect.DeepEqual(r.Columns, want) {
		t.Errorf("Columns = %v, want %v", r.Columns, want)
	}
	if v, _ := r.Get("b"); v != 2.0 {
		t.Errorf("b = %v", v)
	}
	if !r.Has("c") || r.Has("d") {
		t.Error("Has mismatch")
	}
	var nilRec *Record
	if nilRec.Has("a") {
		t.Error("nil record Has")
	}
}

func TestTable(t *testing.T) {
	tb := NewTable("pdb", "PDB_code", "Resolution")
	tb.Append([]any{"1ABC", 1.5})
	tb.Append([]any{"2XYZ"})
	tb.Append([]any{"1abc", "2.5"})

	if tb.Index("pdb_code") != 0 || tb.Index("missing") != -1 {
		t.Error("Index should fall back to case-insensitive match")
	}
	if got := tb.Floats("Resolution"); !reflect.DeepEqual(got, []float64{1.5, 2.5}) {
		t.Errorf("Floats = %v", got)
	}
	if got := tb.Distinct("PDB_code"); got != 3 {
		t.Errorf("Distinct = %d", got)
	}
	if tb.Value(5, "PDB_code") != nil || tb.String(1, "Resolution") != "" {
		t.Error("out of range / nil values should be empty")
	}

	cp := tb.Clone()
	cp.Rows[0][0] = "changed"
	if tb.String(0, "PDB_code") != "1ABC" {
		t.Error("Clone shares rows")
	}

	fs := FeatureSet{"pdb": tb, "empty": NewTable("empty")}
	if fs.NonEmpty() != 1 {
		t.Errorf("NonEmpty = %d", fs.NonEmpty())
	}
	if got := fs.Get("absent"); got == nil || !got.Empty() || got.Category != "absent" {
		t.Errorf("Get(absent) = %+v", got)
	}
}

func TestItemLabels(t *testing.T) {
	it := NewItem("T1")
	it.PutLabel("filtered", utils.Label{Value: "true", Source: "filter.expr"})
	it.PutLabel("filtered", utils.Label{Value: "true", Source: "filter.exclude"})
	if got := it.Labels["filtered"]; got.Value != "true|true" || got.Source != "filter.expr,filter.exclude" {
		t.Errorf("merged label = %+v", got)
	}
	if it.Failed() {
		t.Error("new item should not be failed")
	}
}

func TestRunContext(t *testing.T) {
	rctx := &RunContext{RunID: "r1", Params: map[string]any{"shortlist": "item.tractable"}}
	w := rctx.WithWorker(3)
	if w.Worker != 3 || rctx.Worker != 0 || w.RunID != "r1" {
		t.Errorf("WithWorker = %+v (orig %+v)", w, rctx)
	}
	if v, ok := w.Param("shortlist"); !ok || v != "item.tractable" {
		t.Errorf("Param = %v, %v", v, ok)
	}
	var nilCtx *RunContext
	if _, ok := nilCtx.Param("x"); ok {
		t.Error("nil Param")
	}
	if nilCtx.WithWorker(1).Worker != 1 {
		t.Error("nil WithWorker")
	}
}
