package descriptor

import (
	"math"
	"strings"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/feature"
	"github.com/rushteam/targetdb/pkg/conv"
)

// Component 是一条 类别 -> 聚合 的声明：计算 ScoreComponents 中的一列。
// Compute 可读取先前已计算的列（派生分数依赖基础计数）。
type Component struct {
	Column  string
	Compute func(fs core.FeatureSet, rec *core.Record) any
}

// 安全性告警阈值：器官蛋白表达水平（0 未检出 / 1 低 / 2 中 / 3 高）
const organAlertLevel = 2.0

// 效力阈值
const (
	potentPChEMBL   = 6.0   // pChEMBL >= 6 视为有效
	potentNanomolar = 100.0 // 亲和力 <= 100 nM 视为有效
	selectiveConf   = 8     // ChEMBL 置信度下限
)

func count(category string) func(core.FeatureSet, *core.Record) any {
	return func(fs core.FeatureSet, _ *core.Record) any {
		return float64(fs.Get(category).Len())
	}
}

func distinct(category, column string) func(core.FeatureSet, *core.Record) any {
	return func(fs core.FeatureSet, _ *core.Record) any {
		return float64(fs.Get(category).Distinct(column))
	}
}

func maxOf(category, column string) func(core.FeatureSet, *core.Record) any {
	return func(fs core.FeatureSet, _ *core.Record) any {
		return ComputeStatistics(fs.Get(category).Floats(column)).Max
	}
}

func minOf(category, column string) func(core.FeatureSet, *core.Record) any {
	return func(fs core.FeatureSet, _ *core.Record) any {
		return ComputeStatistics(fs.Get(category).Floats(column)).Min
	}
}

func meanOf(category, column string) func(core.FeatureSet, *core.Record) any {
	return func(fs core.FeatureSet, _ *core.Record) any {
		return ComputeStatistics(fs.Get(category).Floats(column)).Mean
	}
}

func countWhere(category string, pred func(t *core.Table, row int) bool) func(core.FeatureSet, *core.Record) any {
	return func(fs core.FeatureSet, _ *core.Record) any {
		t := fs.Get(category)
		n := 0
		for i := 0; i < t.Len(); i++ {
			if pred(t, i) {
				n++
			}
		}
		return float64(n)
	}
}

func anyWhere(category string, pred func(t *core.Table, row int) bool) func(core.FeatureSet, *core.Record) any {
	c := countWhere(category, pred)
	return func(fs core.FeatureSet, rec *core.Record) any {
		return c(fs, rec).(float64) > 0
	}
}

func equalsFold(column, want string) func(*core.Table, int) bool {
	return func(t *core.Table, row int) bool {
		return strings.EqualFold(strings.TrimSpace(t.String(row, column)), want)
	}
}

func truthy(column string) func(*core.Table, int) bool {
	return func(t *core.Table, row int) bool {
		b, ok := conv.ToBool(t.Value(row, column))
		return ok && b
	}
}

// num 读取已计算列的数值（布尔为 1/0，缺失为 0）
func num(rec *core.Record, column string) float64 {
	v, _ := rec.Get(column)
	return numeric(v)
}

func capped(v, limit float64) float64 {
	return math.Min(1, v/limit)
}

// organValue 返回名称包含 organ 的器官中最高表达水平
func organValue(organ string) func(core.FeatureSet, *core.Record) any {
	return func(fs core.FeatureSet, _ *core.Record) any {
		t := fs.Get(feature.CategoryOrganExpression)
		best := 0.0
		for i := 0; i < t.Len(); i++ {
			if !strings.Contains(strings.ToLower(t.String(i, "organ_name")), organ) {
				continue
			}
			if v, ok := t.Float(i, "value"); ok && v > best {
				best = v
			}
		}
		return best
	}
}

func organAlert(valueColumn string) func(core.FeatureSet, *core.Record) any {
	return func(_ core.FeatureSet, rec *core.Record) any {
		return num(rec, valueColumn) >= organAlertLevel
	}
}

// chemblBand 判断是否存在 pChEMBL 落在 [lo, hi) 且置信度足够的配体
func chemblBand(lo, hi float64) func(core.FeatureSet, *core.Record) any {
	return anyWhere(feature.CategoryBioactives, func(t *core.Table, row int) bool {
		p, ok := t.Float(row, "pchembl_value")
		if !ok || p < lo || p >= hi {
			return false
		}
		conf, _ := t.Float(row, "confidence_score")
		return conf >= selectiveConf
	})
}

func bindingDBPotent(t *core.Table, row int) bool {
	for _, col := range []string{"ic50", "ec50", "ki", "kd"} {
		if v, ok := t.Float(row, col); ok && v > 0 && v <= potentNanomolar {
			return true
		}
	}
	return false
}

// DefaultComponents 返回 ScoreComponents 的声明式列表，顺序即列顺序。
func DefaultComponents() []Component {
	return []Component{
		// 疾病 / 遗传
		{"disease_count", count(feature.CategoryDisease)},
		{"OT_number_of_associations", count(feature.CategoryOpenTarget)},
		{"OT_max_association_score", maxOf(feature.CategoryOpenTarget, "association_score")},
		{"OT_mean_association_score", meanOf(feature.CategoryOpenTarget, "association_score")},
		{"dis_AScore", func(_ core.FeatureSet, rec *core.Record) any {
			return 0.5*num(rec, "OT_max_association_score") + 0.5*capped(num(rec, "disease_count"), 10)
		}},
		{"gwas_count", count(feature.CategoryGWAS)},
		{"gwas_min_pvalue_log", func(fs core.FeatureSet, _ *core.Record) any {
			best := 0.0
			for _, p := range fs.Get(feature.CategoryGWAS).Floats("p_value") {
				if p > 0 {
					best = math.Max(best, -math.Log10(p))
				}
			}
			return best
		}},
		{"phenotype_count", count(feature.CategoryPhenotype)},
		{"phenotype_homozygous_count", countWhere(feature.CategoryPhenotype, equalsFold("zygosity", "HOM"))},
		{"genetic_NORM", func(_ core.FeatureSet, rec *core.Record) any {
			return (capped(num(rec, "gwas_count"), 10) + capped(num(rec, "phenotype_count"), 10)) / 2
		}},
		{"gen_AQualScore", func(fs core.FeatureSet, _ *core.Record) any {
			cats := []string{feature.CategoryGWAS, feature.CategoryPhenotype, feature.CategoryVariants, feature.CategoryMutagenesis}
			n := 0
			for _, c := range cats {
				if !fs.Get(c).Empty() {
					n++
				}
			}
			return float64(n) / float64(len(cats))
		}},

		// 通路 / 表达
		{"reactome_pathway_count", count(feature.CategoryReactome)},
		{"kegg_pathway_count", count(feature.CategoryKEGG)},
		{"disease_upregulated_count", countWhere(feature.CategoryDiseaseExp, equalsFold("expression_status", "UP"))},
		{"disease_downregulated_count", countWhere(feature.CategoryDiseaseExp, equalsFold("expression_status", "DOWN"))},
		{"tissue_max_tstat", maxOf(feature.CategoryTissue, "t_stat")},
		{"EXP_LVL_AVG", meanOf(feature.CategoryOrganExpression, "value")},
		{"EXP_LVL_STDDEV", func(fs core.FeatureSet, _ *core.Record) any {
			return ComputeStatistics(fs.Get(feature.CategoryOrganExpression).Floats("value")).Std
		}},
		{"EXP_SELECTIVITY", maxOf(feature.CategorySelectivity, "Selectivity_entropy")},

		// 安全性
		{"Heart_value", organValue("heart")},
		{"Liver_value", organValue("liver")},
		{"Kidney_value", organValue("kidney")},
		{"Heart_alert", organAlert("Heart_value")},
		{"Liver_alert", organAlert("Liver_value")},
		{"Kidney_alert", organAlert("Kidney_value")},
		{"safe_EScore", func(_ core.FeatureSet, rec *core.Record) any {
			return (num(rec, "Heart_alert") + num(rec, "Liver_alert") + num(rec, "Kidney_alert")) / 3
		}},
		{"bio_EScore", func(_ core.FeatureSet, rec *core.Record) any {
			return (capped(num(rec, "reactome_pathway_count"), 10) +
				capped(num(rec, "kegg_pathway_count"), 10) +
				capped(num(rec, "disease_upregulated_count")+num(rec, "disease_downregulated_count"), 10)) / 3
		}},

		// 异构体 / 修饰
		{"isoform_count", count(feature.CategoryIsoforms)},
		{"modification_count", distinct(feature.CategoryIsoformMods, "mod_id")},
		{"variant_count", distinct(feature.CategoryVariants, "mod_id")},
		{"mutagenesis_count", distinct(feature.CategoryMutagenesis, "mod_id")},

		// 结构
		{"domain_count", count(feature.CategoryDomains)},
		{"pdb_count", distinct(feature.CategoryPDB, "PDB_code")},
		{"pdb_best_resolution", minOf(feature.CategoryPDB, "Resolution")},
		{"pdb_blast_count", distinct(feature.CategoryPDBBlast, "PDB_code")},
		{"pdb_blast_max_similarity", maxOf(feature.CategoryPDBBlast, "similarity")},
		{"pdb_ligand_bound_count", distinct(feature.CategoryPDBBind, "pdb_code")},

		// 口袋
		{"pocket_count", count(feature.CategoryPockets)},
		{"druggable_pocket_count", countWhere(feature.CategoryPockets, truthy("druggable"))},
		{"pocket_max_drugscore", maxOf(feature.CategoryPockets, "druggability_score")},
		{"pocket_max_volume", maxOf(feature.CategoryPockets, "volume")},
		{"alt_pocket_count", count(feature.CategoryAltPockets)},
		{"alt_druggable_pocket_count", countWhere(feature.CategoryAltPockets, truthy("druggable"))},
		{"alt_pocket_max_drugscore", maxOf(feature.CategoryAltPockets, "druggability_score")},
		{"pocket_domain_max_coverage", maxOf(feature.CategoryPocketDomain, "coverage")},

		// drugEbility
		{"drugEbility_tractable_count", countWhere(feature.CategoryDomainDrugE, truthy("tractable"))},
		{"drugEbility_druggable_count", countWhere(feature.CategoryDomainDrugE, truthy("druggable"))},

		// ChEMBL
		{"chembl_ligand_count", distinct(feature.CategoryBioactives, "lig_id")},
		{"chembl_assay_count", distinct(feature.CategoryBioactives, "assay_id")},
		{"chembl_potent_count", func(fs core.FeatureSet, _ *core.Record) any {
			t := fs.Get(feature.CategoryBioactives)
			seen := make(map[string]struct{})
			for i := 0; i < t.Len(); i++ {
				if p, ok := t.Float(i, "pchembl_value"); ok && p >= potentPChEMBL {
					seen[t.String(i, "lig_id")] = struct{}{}
				}
			}
			return float64(len(seen))
		}},
		{"chembl_max_pchembl", maxOf(feature.CategoryBioactives, "pchembl_value")},
		{"chembl_max_phase", maxOf(feature.CategoryLigands, "max_phase")},
		{"chembl_selective_M", chemblBand(6, 7)},
		{"chembl_selective_G", chemblBand(7, 8)},
		{"chembl_selective_E", chemblBand(8, math.Inf(1))},

		// 其他来源
		{"bindingDB_count", count(feature.CategoryBindingDB)},
		{"bindingDB_potent_count", countWhere(feature.CategoryBindingDB, bindingDBPotent)},
		{"bindingDB_phase2", anyWhere(feature.CategoryBindingDB, func(t *core.Table, row int) bool {
			p, ok := t.Float(row, "max_phase")
			return ok && p >= 2
		})},
		{"commercial_count", count(feature.CategoryCommercials)},
		{"commercial_potent", anyWhere(feature.CategoryCommercials, func(t *core.Table, row int) bool {
			v, ok := t.Float(row, "affinity_value")
			return ok && v > 0 && v <= potentNanomolar
		})},
		{"information_score", func(fs core.FeatureSet, _ *core.Record) any {
			if len(fs) == 0 {
				return 0.0
			}
			return float64(fs.NonEmpty()) / float64(len(fs))
		}},
	}
}

func componentColumns(components []Component) []string {
	out := make([]string, len(components))
	for i, c := range components {
		out[i] = c.Column
	}
	return out
}
