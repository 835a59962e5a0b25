package feature

import (
	"fmt"
	"strings"

	"github.com/rushteam/targetdb/core"
)

// 类别名（即 FeatureSet 的 key），报告层按这些名字渲染各个 sheet。
const (
	CategoryGeneralInfo      = "general_info"
	CategoryDisease          = "disease"
	CategoryReactome         = "reactome"
	CategoryKEGG             = "kegg"
	CategoryDiseaseExp       = "disease_exp"
	CategoryGWAS             = "gwas"
	CategoryTissue           = "tissue"
	CategorySelectivity      = "selectivity"
	CategoryOrganExpression  = "organ_expression"
	CategoryTissueExpression = "tissue_expression"
	CategoryPhenotype        = "phenotype"
	CategoryIsoforms         = "isoforms"
	CategoryIsoformMods      = "isoforms_mod"
	CategoryVariants         = "var"
	CategoryMutagenesis      = "mut"
	CategoryDomains          = "domains"
	CategoryPDBBlast         = "pdb_blast"
	CategoryPDB              = "pdb"
	CategoryPDBBind          = "pdb_bind"
	CategoryPockets          = "pockets"
	CategoryAltPockets       = "alt_pockets"
	CategoryPocketDomain     = "pocket_domain"
	CategoryBioactives       = "bioactives"
	CategoryLigands          = "ligands"
	CategoryAssays           = "assays"
	CategoryCommercials      = "commercials"
	CategoryBindingDB        = "bindingDB"
	CategoryDomainDrugE      = "domain_drugE"
	CategoryOpenTarget       = "open_target"
)

// Category 是一条声明式的 类别 -> 查询 -> 规整规则 映射。
// 新增生物学类别只需要在注册表中追加一条，不需要新的控制流。
type Category struct {
	// Name 查询名（Split 为空时也是输出类别名）
	Name string
	// Query 以 `?` 为占位符，每个占位符都绑定 Target_id
	Query string
	// Columns 输出列名（与 SELECT 顺序一致），不依赖驱动返回的大小写
	Columns []string
	// Rules 按顺序应用的规整规则
	Rules []Rule
	// Split 可选：把一次查询拆成多个输出类别
	Split *Splitter
}

// Outputs 返回该查询产出的全部类别名
func (c Category) Outputs() []string {
	if c.Split == nil {
		return []string{c.Name}
	}
	return c.Split.Outputs()
}

// args 为每个占位符绑定 Target_id
func (c Category) args(targetID string) []any {
	n := strings.Count(c.Query, "?")
	args := make([]any, n)
	for i := range args {
		args[i] = targetID
	}
	return args
}

// empty 返回该查询全部输出类别的空表
func (c Category) empty() map[string]*core.Table {
	out := make(map[string]*core.Table, len(c.Outputs()))
	for _, name := range c.Outputs() {
		out[name] = core.NewTable(name, c.Columns...)
	}
	return out
}

// structureKey 是结构/数据库编码的连接键：统一转为大写后再与交叉引用表匹配。
func structureKey(expr string) string {
	return fmt.Sprintf("UPPER(%s)", expr)
}

// drugEbilitySites 按规整后的 PDB 编码聚合可成药位点注释，消除大小写重复。
var drugEbilitySites = fmt.Sprintf(
	`SELECT %s AS code, MAX(tractable) AS tractable, MAX(druggable) AS druggable FROM drugEbility_sites GROUP BY %s`,
	structureKey("pdb_code"), structureKey("pdb_code"),
)

// targetStructures 是某靶点全部 PDB 编码（已规整）的子查询
var targetStructures = fmt.Sprintf(`SELECT %s FROM PDB_Chains WHERE Target_id = ?`, structureKey("PDB_code"))

// DefaultCategories 返回默认类别注册表。general_info 必须排在第一位：
// 后续规则（如 isoform 命名）依赖其中的 Gene_name。
func DefaultCategories() []Category {
	return []Category{
		{
			Name:    CategoryGeneralInfo,
			Query:   `SELECT Target_id, Gene_name FROM Targets WHERE Target_id = ?`,
			Columns: []string{"Target_id", "Gene_name"},
		},
		{
			Name:    CategoryDisease,
			Query:   `SELECT disease_name, disease_id FROM disease WHERE Target_id = ?`,
			Columns: []string{"disease_name", "disease_id"},
			Rules:   []Rule{Coalesce("disease_id", "disease_name")},
		},
		{
			Name:    "pathways",
			Query:   `SELECT pathway_name, pathway_dataset FROM pathways WHERE Target_id = ? ORDER BY pathway_name`,
			Columns: []string{"pathway_name", "pathway_dataset"},
			Rules:   []Rule{Coalesce("pathway_dataset", "pathway_name")},
			Split: SplitByValue("pathway_dataset", map[string]string{
				"REACTOME PATHWAYS DATA SET": CategoryReactome,
				"KEGG PATHWAYS DATA SET":     CategoryKEGG,
			}),
		},
		{
			Name:    CategoryDiseaseExp,
			Query:   `SELECT disease, t_stat, expression_status FROM diff_exp_disease WHERE Target_id = ? ORDER BY t_stat DESC`,
			Columns: []string{"disease", "t_stat", "expression_status"},
			Rules:   []Rule{UpperCase("expression_status")},
		},
		{
			Name:    CategoryGWAS,
			Query:   `SELECT phenotype, organism, p_value, first_author, publication_year, pubmed_id FROM gwas WHERE Target_id = ? ORDER BY p_value`,
			Columns: []string{"phenotype", "organism", "p_value", "first_author", "publication_year", "pubmed_id"},
		},
		{
			Name:    CategoryTissue,
			Query:   `SELECT Tissue, t_stat FROM diff_exp_tissue WHERE Target_id = ? ORDER BY t_stat DESC`,
			Columns: []string{"Tissue", "t_stat"},
		},
		{
			Name:    CategorySelectivity,
			Query:   `SELECT Selectivity_entropy FROM protein_expression_selectivity WHERE Target_id = ?`,
			Columns: []string{"Selectivity_entropy"},
		},
		{
			Name:    CategoryOrganExpression,
			Query:   `SELECT organ, MAX(value) FROM protein_expression_levels WHERE Target_id = ? GROUP BY organ ORDER BY organ`,
			Columns: []string{"organ_name", "value"},
		},
		{
			Name:    CategoryTissueExpression,
			Query:   `SELECT organ, tissue, cell, value FROM protein_expression_levels WHERE Target_id = ? ORDER BY organ, tissue, cell`,
			Columns: []string{"organ", "tissue", "cell", "value"},
		},
		{
			Name:    CategoryPhenotype,
			Query:   `SELECT Allele_id, Allele_symbol, Allele_type, zygosity, genotype, Phenotype FROM phenotype WHERE Target_id = ?`,
			Columns: []string{"Allele_id", "Allele_symbol", "Allele_type", "zygosity", "genotype", "Phenotype"},
			Rules:   []Rule{UpperCase("zygosity")},
		},
		{
			Name:    CategoryIsoforms,
			Query:   `SELECT Isoform_id, Isoform_name, Sequence, n_residues, Canonical, Identity FROM Isoforms WHERE Target_id = ?`,
			Columns: []string{"isoform_id", "isoform_name", "sequence", "n_residues", "canonical", "identity"},
			Rules:   []Rule{SortBy("isoform_name"), IsoformName("isoform_name")},
		},
		{
			Name: "modifications",
			Query: `SELECT m.Unique_modID, im.isoform_id, m."start", m."stop", m.previous, m."action", m."new", m.domains, m."comment", m.mod_type
				FROM modifications m
				LEFT JOIN isoform_modifications im ON im.mod_id = m.Unique_modID
				WHERE m.Target_id = ?
				ORDER BY m."start"`,
			Columns: []string{"mod_id", "isoform_id", "start", "stop", "previous", "modification_type", "new", "domains", "comment", "mod_type"},
			Split: SplitByValue("mod_type", map[string]string{
				"MOD":     CategoryIsoformMods,
				"VAR":     CategoryVariants,
				"MUTAGEN": CategoryMutagenesis,
			}),
		},
		{
			Name:    CategoryDomains,
			Query:   `SELECT domain_id, Domain_name, Domain_start, Domain_stop, length, source_name FROM Domain_targets WHERE Target_id = ? ORDER BY Domain_start`,
			Columns: []string{"domain_id", "Domain_name", "Domain_start", "Domain_stop", "length", "source_name"},
		},
		{
			Name: CategoryPDBBlast,
			Query: fmt.Sprintf(`SELECT b.Hit_PDB_code, b.Chain_Letter, b.similarity, b.Hit_gene_name, b.Hit_gene_species, d.tractable, d.druggable
				FROM "3D_Blast" b
				LEFT JOIN (%s) d ON d.code = %s
				WHERE b.Query_target_id = ?
				ORDER BY b.similarity DESC`, drugEbilitySites, structureKey("b.Hit_PDB_code")),
			Columns: []string{"PDB_code", "Chain_Letter", "similarity", "gene", "species", "tractable", "druggable"},
			Rules:   []Rule{UpperCase("PDB_code"), Coalesce("PDB_code", "Chain_Letter")},
		},
		{
			Name: CategoryPDB,
			Query: fmt.Sprintf(`SELECT c.PDB_code, c.Chain, c.n_residues, c.start_stop, p.Technique, p.Resolution, d.tractable, d.druggable
				FROM PDB_Chains c
				LEFT JOIN PDB p ON %s = %s
				LEFT JOIN (%s) d ON d.code = %s
				WHERE c.Target_id = ?`, structureKey("p.PDB_code"), structureKey("c.PDB_code"), drugEbilitySites, structureKey("c.PDB_code")),
			Columns: []string{"PDB_code", "Chain", "n_residues", "start_stop", "Technique", "Resolution", "tractable", "druggable"},
			Rules:   []Rule{UpperCase("PDB_code"), CoalesceBy([]string{"PDB_code", "Chain"}, "Resolution"), SortBy("Resolution")},
		},
		{
			Name: CategoryPDBBind,
			Query: fmt.Sprintf(`SELECT pb.pdb_code, pb."type", pb.binding_type, pb.binding_operator, pb.binding_value, pb.binding_units, pb.lig_name, pb.pub_year
				FROM pdb_bind pb
				WHERE %s IN (%s)`, structureKey("pb.pdb_code"), targetStructures),
			Columns: []string{"pdb_code", "type", "binding_type", "binding_operator", "binding_value", "binding_units", "lig_name", "pub_year"},
			Rules:   []Rule{UpperCase("pdb_code"), Coalesce("pdb_code", "lig_name", "binding_type")},
		},
		{
			Name: "fpockets",
			Query: `SELECT Pocket_id, PDB_code, Pocket_number, DrugScore, Score, total_sasa, volume, apolar_sasa, druggable, blast
				FROM fPockets WHERE Target_id = ?`,
			Columns: []string{"pocket_id", "PDB_code", "pocket_number", "druggability_score", "score", "total_sasa", "volume", "apolar_sasa", "druggable", "blast"},
			Rules:   []Rule{UpperCase("PDB_code"), SortBy("pocket_number")},
			Split:   SplitByFlag("blast", CategoryAltPockets, CategoryPockets),
		},
		{
			Name: CategoryPocketDomain,
			Query: `SELECT fd.Pocket_id, fd.Domain_id, fd.Coverage
				FROM fPockets_Domain fd
				JOIN fPockets f ON f.Pocket_id = fd.Pocket_id
				WHERE f.Target_id = ?
				ORDER BY fd.Coverage DESC`,
			Columns: []string{"pocket_id", "domain_id", "coverage"},
			Rules:   []Rule{Coalesce("pocket_id", "domain_id")},
		},
		{
			Name: CategoryBioactives,
			Query: `SELECT b.lig_id, b.assay_id, b.standard_type, b.operator, b.value_num, b.units, b.pchembl_value,
					b.activity_comment, b.data_validity_comment, b.bioactivity_type, b.assay_species, b.confidence_score, b.max_phase
				FROM bioactivities b
				JOIN Crossref x ON x.Chembl_id = b.Target_id
				WHERE x.target_id = ?
				ORDER BY b.pchembl_value DESC`,
			Columns: []string{"lig_id", "assay_id", "standard_type", "operator", "value_num", "units", "pchembl_value",
				"activity_comment", "data_validity_comment", "bioactivity_type", "assay_species", "confidence_score", "max_phase"},
		},
		{
			Name: CategoryLigands,
			Query: `SELECT DISTINCT l.lig_id, l.mol_name, l.max_phase, l.oral, l.indication_class, l.class_def, l.alogp,
					l.molecularWeight, l.HBA, l.HBD, l.TPSA, l.rotatableBonds, l.num_ro5_violations, l.ro3_pass, l.canonical_smiles, l.std_inchi_key
				FROM ligands l
				JOIN bioactivities b ON b.lig_id = l.lig_id
				JOIN Crossref x ON x.Chembl_id = b.Target_id
				WHERE x.target_id = ?`,
			Columns: []string{"lig_id", "mol_name", "max_phase", "oral", "indication_class", "class_def", "alogp",
				"molecular_weight", "hba", "hbd", "tpsa", "rotatable_bonds", "ro5_violations", "ro3_pass", "smiles", "inchi_key"},
			Rules: []Rule{Coalesce("lig_id")},
		},
		{
			Name: CategoryAssays,
			Query: `SELECT DISTINCT a.assay_id, a.assay_description, a.species, a.bioactivity_type, a.confidence_score, a.doi
				FROM assays a
				JOIN bioactivities b ON b.assay_id = a.assay_id
				JOIN Crossref x ON x.Chembl_id = b.Target_id
				WHERE x.target_id = ?`,
			Columns: []string{"assay_id", "assay_description", "species", "bioactivity_type", "confidence_score", "doi"},
			Rules:   []Rule{Coalesce("assay_id")},
		},
		{
			Name:    CategoryCommercials,
			Query:   `SELECT smiles, affinity_type, affinity_value, affinity_unit, price, website FROM purchasable_compounds WHERE target_id = ? ORDER BY affinity_value`,
			Columns: []string{"smiles", "affinity_type", "affinity_value", "affinity_unit", "price", "website"},
		},
		{
			Name: CategoryBindingDB,
			Query: `SELECT b.ligand_name, b.ZincID, b."IC50(nM)", b."EC50(nM)", b."Ki(nM)", b."Kd(nM)", b."kon(M-1s-1)", b."koff(s-1)",
					b.pH, b."Temp", b.Source, b.DOI, b.institution, b.patent_number, b.ligand_smiles, b.inchi_key, l.max_phase
				FROM BindingDB b
				LEFT JOIN (SELECT std_inchi_key, MAX(max_phase) AS max_phase FROM ligands GROUP BY std_inchi_key) l ON l.std_inchi_key = b.inchi_key
				WHERE b.target_id = ?`,
			Columns: []string{"ligand_name", "zinc_id", "ic50", "ec50", "ki", "kd", "kon", "koff",
				"ph", "temp", "source", "doi", "institution", "patent_number", "ligand_smiles", "inchi_key", "max_phase"},
		},
		{
			Name: CategoryDomainDrugE,
			Query: fmt.Sprintf(`SELECT d.pdb_code, d.domain_fold, d.domain_superfamily, d.tractable, d.druggable
				FROM drugEbility_domains d
				WHERE %s IN (%s)`, structureKey("d.pdb_code"), targetStructures),
			Columns: []string{"pdb_code", "domain_fold", "domain_superfamily", "tractable", "druggable"},
			Rules:   []Rule{UpperCase("pdb_code"), Coalesce("pdb_code", "domain_fold", "domain_superfamily")},
		},
		{
			Name:    CategoryOpenTarget,
			Query:   `SELECT association_score FROM opentarget_association WHERE target_id = ? ORDER BY association_score DESC`,
			Columns: []string{"association_score"},
		},
	}
}

// OutputCategories 返回注册表产出的全部类别名（按注册顺序）
func OutputCategories(categories []Category) []string {
	var out []string
	for _, c := range categories {
		out = append(out, c.Outputs()...)
	}
	return out
}
