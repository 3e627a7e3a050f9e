// Package taxonomy provides the category suggestions offered per kind.
// Categories are suggestions only; the ledger accepts any non-empty label.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

var _ ports.TaxonomyReader = (*Taxonomy)(nil)

// Taxonomy holds the category list of each kind.
type Taxonomy struct {
	Expense []string `yaml:"expense"`
	Income  []string `yaml:"income"`
}

// Default returns the categories offered by the entry form out of the box.
func Default() *Taxonomy {
	return &Taxonomy{
		Expense: []string{"食費", "日用品", "交通", "娯楽", "その他"},
		Income:  []string{"給与", "その他"},
	}
}

// Load reads a taxonomy file. A missing file yields the defaults; a kind
// left empty in the file keeps its default list.
func Load(path string) (*Taxonomy, error) {
	def := Default()
	if path == "" {
		return def, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy: %w", err)
	}

	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing taxonomy: %w", err)
	}
	t.Expense = normalize(t.Expense)
	t.Income = normalize(t.Income)
	if len(t.Expense) == 0 {
		t.Expense = def.Expense
	}
	if len(t.Income) == 0 {
		t.Income = def.Income
	}
	return &t, nil
}

// Save writes t as YAML.
func Save(path string, t *Taxonomy) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling taxonomy: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing taxonomy: %w", err)
	}
	return nil
}

// Categories implements sheets.TaxonomyReader.
func (t *Taxonomy) Categories(_ context.Context, kind core.Kind) ([]string, error) {
	switch kind {
	case core.Expense:
		return append([]string(nil), t.Expense...), nil
	case core.Income:
		return append([]string(nil), t.Income...), nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// All returns every category of both kinds, expense first, without
// duplicates.
func normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
