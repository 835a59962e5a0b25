package feature

import (
	"testing"

	"github.com/rushteam/targetdb/core"
)

func TestCoalesce(t *testing.T) {
	tbl := core.NewTable("pdb", "PDB_code", "Chain", "tractable", "note")
	tbl.Append([]any{"pdb1", "A", int64(0), nil})
	tbl.Append([]any{"PDB2", "A", int64(1), "x"})
	tbl.Append([]any{"PDB1", "A", int64(1), "y"})

	Coalesce("PDB_code", "Chain").Apply(tbl, NormContext{})

	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	if got := tbl.String(0, "PDB_code"); got != "pdb1" {
		t.Errorf("first row code = %q", got)
	}
	if v, _ := tbl.Float(0, "tractable"); v != 1 {
		t.Errorf("merged tractable = %v, want 1", v)
	}
	if got := tbl.String(0, "note"); got != "y" {
		t.Errorf("merged note = %q, want y", got)
	}
}

func TestCoalesceBy_LowerIsBetter(t *testing.T) {
	tbl := core.NewTable("pdb", "PDB_code", "Chain", "Resolution", "tractable")
	tbl.Append([]any{"PDB1", "A", 1.2, int64(0)})
	tbl.Append([]any{"PDB1", "A", 1.0, int64(1)})
	tbl.Append([]any{"PDB1", "A", nil, nil})

	CoalesceBy([]string{"PDB_code", "Chain"}, "Resolution").Apply(tbl, NormContext{})

	if tbl.Len() != 1 {
		t.Fatalf("rows = %d, want 1", tbl.Len())
	}
	if v, _ := tbl.Float(0, "Resolution"); v != 1.0 {
		t.Errorf("merged Resolution = %v, want 1.0", v)
	}
	if v, _ := tbl.Float(0, "tractable"); v != 1 {
		t.Errorf("merged tractable = %v, want 1", v)
	}
}

func TestIsoformName(t *testing.T) {
	tests := []struct {
		name string
		gene string
		in   any
		want string
	}{
		{"ordinal", "GENE1", "1", "GENE1-1"},
		{"numeric", "GENE1", int64(2), "GENE1-2"},
		{"already named", "GENE1", "GENE1-3", "GENE1-3"},
		{"no gene", "", "1", "T1-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := core.NewTable("isoforms", "isoform_name")
			tbl.Append([]any{tt.in})
			IsoformName("isoform_name").Apply(tbl, NormContext{TargetID: "T1", GeneName: tt.gene})
			if got := tbl.String(0, "isoform_name"); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortBy(t *testing.T) {
	tbl := core.NewTable("p", "n")
	tbl.Append([]any{"10"})
	tbl.Append([]any{nil})
	tbl.Append([]any{int64(2)})
	SortBy("n").Apply(tbl, NormContext{})
	want := []string{"2", "10", ""}
	for i, w := range want {
		if got := tbl.String(i, "n"); got != w {
			t.Errorf("row %d = %q, want %q", i, got, w)
		}
	}
}

func TestSplitByFlag(t *testing.T) {
	tbl := core.NewTable("fpockets", "pocket_number", "blast")
	tbl.Append([]any{int64(1), "FALSE"})
	tbl.Append([]any{int64(2), "TRUE"})
	tbl.Append([]any{int64(3), "garbage"})

	out := SplitByFlag("blast", CategoryAltPockets, CategoryPockets).Apply(tbl)
	if n := out[CategoryPockets].Len(); n != 2 {
		t.Errorf("pockets = %d, want 2", n)
	}
	if n := out[CategoryAltPockets].Len(); n != 1 {
		t.Errorf("alt_pockets = %d, want 1", n)
	}
	if out[CategoryAltPockets].Category != CategoryAltPockets {
		t.Errorf("category = %q", out[CategoryAltPockets].Category)
	}
}

func TestSplitByValue(t *testing.T) {
	s := SplitByValue("mod_type", map[string]string{"MOD": "a", "VAR": "b"})
	tbl := core.NewTable("m", "mod_type")
	tbl.Append([]any{"mod"})
	tbl.Append([]any{" VAR "})
	tbl.Append([]any{"OTHER"})
	out := s.Apply(tbl)
	if len(out) != 2 {
		t.Fatalf("outputs = %d, want 2", len(out))
	}
	if out["a"].Len() != 1 || out["b"].Len() != 1 {
		t.Errorf("split sizes a=%d b=%d", out["a"].Len(), out["b"].Len())
	}
}

func TestUpperCase(t *testing.T) {
	tbl := core.NewTable("phenotype", "zygosity", "n")
	tbl.Append([]any{"het", int64(1)})
	UpperCase("zygosity", "n", "missing").Apply(tbl, NormContext{})
	if got := tbl.String(0, "zygosity"); got != "HET" {
		t.Errorf("zygosity = %q", got)
	}
}

func TestOutputCategories_Unique(t *testing.T) {
	seen := map[string]bool{}
	for _, name := range OutputCategories(DefaultCategories()) {
		if seen[name] {
			t.Errorf("duplicate category %s", name)
		}
		seen[name] = true
	}
	if len(seen) != 29 {
		t.Errorf("got %d categories, want 29", len(seen))
	}
}
