package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/descriptor"
)

// snapshot 是模型文件的 JSON 结构
type snapshot struct {
	SchemaVersion string   `json:"schema_version"`
	Columns       []string `json:"columns"`
	Params        Params   `json:"params"`
	Members       []string `json:"training_ids"`
	Forest        *Forest  `json:"forest"`
}

// Save 把模型写为 JSON
func (c *Classifier) Save(w io.Writer) error {
	members := make([]string, 0, len(c.members))
	for id := range c.members {
		members = append(members, id)
	}
	sort.Strings(members)
	return json.NewEncoder(w).Encode(snapshot{
		SchemaVersion: c.schema.Version,
		Columns:       c.schema.Columns,
		Params:        c.params,
		Members:       members,
		Forest:        c.forest,
	})
}

// SaveFile 先写同目录临时文件再 rename，失败时 path 上原有的模型保持不变
func (c *Classifier) SaveFile(path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return fmt.Errorf("model: create temp for %s: %w", path, err)
	}
	tmp := f.Name()
	if err := c.Save(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("model: save %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("model: save %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("model: replace %s: %w", path, err)
	}
	return nil
}

// Load 读取 Save 写出的模型
func Load(r io.Reader) (*Classifier, error) {
	var s snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, err, "model: decode")
	}
	if s.Forest == nil || len(s.Forest.Trees) == 0 || len(s.Columns) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "model: snapshot has no trees or columns")
	}
	for i, t := range s.Forest.Trees {
		if err := validateTree(t, len(s.Columns)); err != nil {
			return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, err, "model: tree %d", i)
		}
	}
	members := make(map[string]struct{}, len(s.Members))
	for _, id := range s.Members {
		members[id] = struct{}{}
	}
	return &Classifier{
		forest:  s.Forest,
		schema:  descriptor.NewSchema(s.SchemaVersion, s.Columns),
		params:  s.Params,
		members: members,
	}, nil
}

// LoadFile 从文件读取模型
func LoadFile(path string) (*Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeNotFound, err, "model: open %s", path)
	}
	defer f.Close()
	return Load(f)
}

func validateTree(t *Tree, nFeatures int) error {
	if t == nil || len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, nFeatures)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}
