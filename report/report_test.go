package report

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/store"
)

func sampleTable() *core.PredictionTable {
	return &core.PredictionTable{
		Rows: []core.Prediction{
			{TargetID: "T1", GeneName: "GeneA", Probability: 80, Tractable: core.LabelTractable, InTrainingSet: true},
			{TargetID: "T2", GeneName: "GeneB", Probability: 33.5, Tractable: core.LabelNotTractable},
			core.FailedPrediction("T3", "GeneC", errors.New("boom")),
		},
		Shortlist: []string{"T1"},
	}
}

func TestXLSXWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.xlsx")
	want := sampleTable()
	if err := NewXLSXWriter(path).Write(context.Background(), want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadXLSX(path)
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if !reflect.DeepEqual(got.Rows, want.Rows) {
		t.Errorf("rows = %+v\nwant %+v", got.Rows, want.Rows)
	}
	if !reflect.DeepEqual(got.Shortlist, want.Shortlist) {
		t.Errorf("shortlist = %v, want %v", got.Shortlist, want.Shortlist)
	}
}

func TestXLSXWriter_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := NewXLSXWriter(path).Write(context.Background(), &core.PredictionTable{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadXLSX(path)
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if got.Len() != 0 || got.Shortlist != nil {
		t.Errorf("got %+v, want empty table", got)
	}
}

func TestKVSink(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	sink := NewKVSink(kv, "run1")
	if err := sink.Write(ctx, sampleTable()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	p, err := sink.Lookup(ctx, "T1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Probability != 80 || !p.InTrainingSet || p.GeneName != "GeneA" {
		t.Errorf("T1 = %+v", p)
	}
	failed, err := sink.Lookup(ctx, "T3")
	if err != nil || !failed.Failed() {
		t.Errorf("T3 = %+v, %v", failed, err)
	}

	top, err := sink.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if !reflect.DeepEqual(top, []string{"T1", "T2"}) {
		t.Errorf("Top = %v, want [T1 T2] (failed rows are not ranked)", top)
	}

	data, err := kv.Get(ctx, sink.ShortlistKey())
	if err != nil || string(data) != `["T1"]` {
		t.Errorf("shortlist = %s, %v", data, err)
	}

	if _, err := sink.Lookup(ctx, "T9"); !core.IsNotFound(err) {
		t.Errorf("Lookup(T9) err = %v, want NOT_FOUND", err)
	}
}

func TestKVSink_ReplacesPreviousRun(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	sink := NewKVSink(kv, "run")

	previous := &core.PredictionTable{
		Rows: []core.Prediction{
			{TargetID: "T9", Probability: 99, Tractable: core.LabelTractable},
			{TargetID: "T1", Probability: 10, Tractable: core.LabelNotTractable},
		},
		Shortlist: []string{"T9"},
	}
	if err := sink.Write(ctx, previous); err != nil {
		t.Fatalf("Write previous: %v", err)
	}
	current := &core.PredictionTable{Rows: []core.Prediction{
		{TargetID: "T1", Probability: 80, Tractable: core.LabelTractable},
	}}
	if err := sink.Write(ctx, current); err != nil {
		t.Fatalf("Write current: %v", err)
	}

	top, err := sink.Top(ctx, 10)
	if err != nil || !reflect.DeepEqual(top, []string{"T1"}) {
		t.Errorf("Top = %v, %v; want [T1]", top, err)
	}
	if _, err := sink.Lookup(ctx, "T9"); !core.IsNotFound(err) {
		t.Errorf("Lookup(T9) err = %v, want NOT_FOUND", err)
	}
	if p, _ := sink.Lookup(ctx, "T1"); p.Probability != 80 {
		t.Errorf("T1 = %+v", p)
	}
	if _, err := kv.Get(ctx, sink.ShortlistKey()); !core.IsNotFound(err) {
		t.Errorf("stale shortlist err = %v, want NOT_FOUND", err)
	}
}

type errWriter struct{ err error }

func (w errWriter) Name() string { return "err" }

func (w errWriter) Write(context.Context, *core.PredictionTable) error { return w.err }

func TestMultiWriter(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	boom := errors.New("boom")
	mw := MultiWriter{errWriter{boom}, NewKVSink(kv, "")}
	if err := mw.Write(ctx, sampleTable()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := kv.HGet(ctx, "targetdb:predictions", "T2"); err != nil {
		t.Errorf("later writers should still run: %v", err)
	}
}
