// Package testutil provides a throwaway sqlite targetDB for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/rushteam/targetdb/store"
)

// Schema is the subset of the targetDB schema read by the default category registry.
const Schema = `
CREATE TABLE Targets (Target_id TEXT PRIMARY KEY, Gene_name TEXT);
CREATE TABLE disease (Target_id TEXT, disease_name TEXT, disease_id TEXT);
CREATE TABLE pathways (Target_id TEXT, pathway_name TEXT, pathway_dataset TEXT);
CREATE TABLE diff_exp_disease (Target_id TEXT, disease TEXT, t_stat REAL, expression_status TEXT);
CREATE TABLE gwas (Target_id TEXT, phenotype TEXT, organism TEXT, p_value REAL, first_author TEXT, publication_year INT, pubmed_id TEXT);
CREATE TABLE diff_exp_tissue (Target_id TEXT, Tissue TEXT, t_stat REAL);
CREATE TABLE protein_expression_selectivity (Target_id TEXT, Selectivity_entropy REAL);
CREATE TABLE protein_expression_levels (Target_id TEXT, organ TEXT, tissue TEXT, cell TEXT, value REAL);
CREATE TABLE phenotype (Target_id TEXT, Allele_id INT, Allele_symbol TEXT, Allele_type TEXT, zygosity TEXT, genotype TEXT, Phenotype TEXT);
CREATE TABLE Isoforms (Target_id TEXT, Isoform_id TEXT, Isoform_name TEXT, Sequence TEXT, n_residues INT, Canonical INT, Identity REAL);
CREATE TABLE isoform_modifications (isoform_id TEXT, mod_id TEXT);
CREATE TABLE modifications (Unique_modID TEXT, Target_id TEXT, start INT, stop INT, previous TEXT, action TEXT, new TEXT, domains TEXT, comment TEXT, mod_type TEXT);
CREATE TABLE Domain_targets (domain_id INT, Target_id TEXT, Domain_name TEXT, Domain_start INT, Domain_stop INT, length INT, source_name TEXT);
CREATE TABLE "3D_Blast" (Query_target_id TEXT, Hit_PDB_code TEXT, Chain_Letter TEXT, similarity REAL, Hit_gene_name TEXT, Hit_gene_species TEXT);
CREATE TABLE drugEbility_sites (pdb_code TEXT, tractable INT, druggable INT);
CREATE TABLE PDB_Chains (Chain_id INT, PDB_code TEXT, Chain TEXT, n_residues INT, start_stop TEXT, Target_id TEXT);
CREATE TABLE PDB (PDB_code TEXT, Technique TEXT, Resolution REAL);
CREATE TABLE PDBChain_Domain (Chain_id INT, Domain_id INT);
CREATE TABLE pdb_bind (pdb_code TEXT, type TEXT, binding_type TEXT, binding_operator TEXT, binding_value REAL, binding_units TEXT, lig_name TEXT, pub_year INT);
CREATE TABLE fPockets (Pocket_id INT, Target_id TEXT, PDB_code TEXT, DrugScore REAL, total_sasa REAL, volume REAL, apolar_sasa REAL, Pocket_number INT, Score REAL, druggable TEXT, blast TEXT);
CREATE TABLE fPockets_Domain (Pocket_id INT, Domain_id INT, Coverage INT);
CREATE TABLE Crossref (target_id TEXT, Chembl_id TEXT);
CREATE TABLE bioactivities (lig_id TEXT, assay_id TEXT, Target_id TEXT, standard_type TEXT, operator TEXT, value_num REAL, units TEXT, activity_comment TEXT, data_validity_comment TEXT, pchembl_value REAL, bioactivity_type TEXT, assay_species TEXT, confidence_score INT, max_phase INT);
CREATE TABLE ligands (lig_id TEXT PRIMARY KEY, mol_name TEXT, max_phase INT, oral TEXT, indication_class TEXT, class_def TEXT, alogp REAL, HBA INT, HBD INT, TPSA REAL, molecularWeight REAL, rotatableBonds INT, num_ro5_violations INT, ro3_pass TEXT, canonical_smiles TEXT, std_inchi_key TEXT);
CREATE TABLE assays (assay_id TEXT, assay_description TEXT, species TEXT, bioactivity_type TEXT, confidence_score INT, doi TEXT);
CREATE TABLE purchasable_compounds (target_id TEXT, smiles TEXT, affinity_type TEXT, affinity_value REAL, affinity_unit TEXT, price REAL, website TEXT);
CREATE TABLE BindingDB (target_id TEXT, ligand_name TEXT, ZincID TEXT, "IC50(nM)" REAL, "EC50(nM)" REAL, "Ki(nM)" REAL, "Kd(nM)" REAL, "kon(M-1s-1)" REAL, "koff(s-1)" REAL, pH REAL, "Temp" REAL, Source TEXT, DOI TEXT, institution TEXT, patent_number TEXT, ligand_smiles TEXT, inchi_key TEXT);
CREATE TABLE drugEbility_domains (pdb_code TEXT, domain_fold TEXT, domain_superfamily TEXT, tractable INT, druggable INT);
CREATE TABLE opentarget_association (target_id TEXT, association_score REAL);
`

// SeedT1 populates every category for target T1 / GENE1.
// drugEbility_sites deliberately holds the same structure under two spellings.
const SeedT1 = `
INSERT INTO Targets VALUES ('T1','GENE1');
INSERT INTO disease VALUES ('T1','DiseaseX','D1');
INSERT INTO pathways VALUES ('T1','ReactomePath','Reactome pathways data set');
INSERT INTO pathways VALUES ('T1','KEGGPath','KEGG pathways data set');
INSERT INTO diff_exp_disease VALUES ('T1','DiseaseX',2.0,'UP');
INSERT INTO gwas VALUES ('T1','Phen1','Human',0.01,'Smith',2020,'PMID1');
INSERT INTO diff_exp_tissue VALUES ('T1','Liver',1.5);
INSERT INTO protein_expression_selectivity VALUES ('T1',0.5);
INSERT INTO protein_expression_levels VALUES ('T1','Organ1','Tissue1','Cell1',1.0);
INSERT INTO phenotype VALUES ('T1',1,'ALLELE1','type1','het','geno1','Phenotype1');
INSERT INTO Isoforms VALUES ('T1','ISO1','1','SEQ',100,1,99.0);
INSERT INTO isoform_modifications VALUES ('ISO1','MOD1');
INSERT INTO modifications VALUES ('MOD1','T1',1,2,'A','del','B','domain1','comment1','MOD');
INSERT INTO modifications VALUES ('VAR1','T1',3,4,'C','sub','D','domain2','comment2','VAR');
INSERT INTO modifications VALUES ('MUT1','T1',5,6,'E','add','F','domain3','comment3','MUTAGEN');
INSERT INTO Domain_targets VALUES (1,'T1','Domain1',1,50,50,'Source1');
INSERT INTO "3D_Blast" VALUES ('T1','PDB1','A',0.9,'GeneP','SpeciesP');
INSERT INTO drugEbility_sites VALUES ('PDB1',1,1);
INSERT INTO drugEbility_sites VALUES ('pdb1',1,1);
INSERT INTO PDB_Chains VALUES (1,'PDB1','A',100,'1-100','T1');
INSERT INTO PDB VALUES ('PDB1','X-ray',1.2);
INSERT INTO PDBChain_Domain VALUES (1,1);
INSERT INTO pdb_bind VALUES ('PDB1','type1','bind','=',10,'nM','Lig1',2021);
INSERT INTO fPockets VALUES (1,'T1','PDB1',0.8,100.0,50.0,20.0,1,5.0,'TRUE','FALSE');
INSERT INTO fPockets VALUES (2,'T1','PDB1',0.7,90.0,40.0,15.0,2,4.0,'TRUE','TRUE');
INSERT INTO fPockets_Domain VALUES (1,1,80);
INSERT INTO Crossref VALUES ('T1','CHEMBL1');
INSERT INTO bioactivities VALUES ('L1','A1','CHEMBL1','Ki','=',10,'nM','',NULL,7.0,'Binding','Human',8,1);
INSERT INTO ligands VALUES ('L1','Ligand1',1,'Yes','indication','class',1,1,1,1,1,1,0,'Yes','C','KEY1');
INSERT INTO assays VALUES ('A1','assaydesc','Human','Binding',8,'assaydoi');
INSERT INTO purchasable_compounds VALUES ('T1','C','IC50',5,'nM',100,'http://example.com');
INSERT INTO BindingDB VALUES ('T1','LigandBD','Z1',1,2,3,4,5,6,7,8,'source','doi','inst','patent','C','KEY1');
INSERT INTO drugEbility_domains VALUES ('pdb1','fold1','superfamily1',1,1);
INSERT INTO opentarget_association VALUES ('T1',0.1);
`

// NewTargetDB opens a file-backed sqlite database under t.TempDir, applies Schema
// followed by scripts, and returns the store together with the raw handle.
func NewTargetDB(t testing.TB, scripts ...string) (*store.SQLStore, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targetdb.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	Exec(t, db, Schema)
	for _, s := range scripts {
		Exec(t, db, s)
	}
	return store.NewSQLStore(db, store.DialectSQLite, nil), db
}

// Exec runs a semicolon separated script one statement at a time.
func Exec(t testing.TB, db *sql.DB, script string) {
	t.Helper()
	for _, stmt := range strings.Split(script, ";\n") {
		stmt = strings.TrimSpace(stmt)
		stmt = strings.TrimSuffix(stmt, ";")
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

// AddTarget inserts a bare target row with no category data.
func AddTarget(t testing.TB, db *sql.DB, id, gene string) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), `INSERT INTO Targets VALUES (?, ?)`, id, gene); err != nil {
		t.Fatalf("insert target %s: %v", id, err)
	}
}

// SlowQuery returns a two-column (Target_id, n) query bound with the target id twice.
// It is empty and fast for every target except slowID, for which it runs far longer
// than any test timeout and only stops when its context is done.
func SlowQuery(slowID string) string {
	return `WITH RECURSIVE seq(x) AS (
		SELECT 1 WHERE ? = '` + slowID + `'
		UNION ALL SELECT x + 1 FROM seq WHERE x < 4000000000
	) SELECT ?, COUNT(*) FROM seq`
}
