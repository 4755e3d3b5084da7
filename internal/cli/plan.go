package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Plan describes a swap queue assembled from local project files.
//
//	backend: http://127.0.0.1:8000
//	items:
//	  - file: bracket.3mf
//	    plates: [2, 1]
//	    count: 3
//	  - file: lid.3mf
type Plan struct {
	Backend string     `yaml:"backend,omitempty"`
	Items   []PlanItem `yaml:"items"`
}

// PlanItem selects plates of one file. No plates means every plate of the file in
// upload order. Count is the number of copies of each selected plate and defaults to 1.
type PlanItem struct {
	File   string `yaml:"file"`
	Plates []int  `yaml:"plates,omitempty"`
	Count  int    `yaml:"count,omitempty"`
}

// LoadPlan reads and validates a plan file. Relative item paths are resolved against the
// directory of the plan.
func LoadPlan(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for i := range plan.Items {
		if f := plan.Items[i].File; f != "" && !filepath.IsAbs(f) {
			plan.Items[i].File = filepath.Join(baseDir, f)
		}
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return &plan, nil
}

func (p *Plan) Validate() error {
	if len(p.Items) == 0 {
		return errors.New("plan has no items")
	}

	type key struct {
		file  string
		plate int
	}
	seen := make(map[key]struct{})

	for i, item := range p.Items {
		if item.File == "" {
			return fmt.Errorf("item %d: file is required", i+1)
		}
		if item.Count < 0 {
			return fmt.Errorf("item %d: count must be positive, got %d", i+1, item.Count)
		}
		for _, idx := range item.Plates {
			if idx < 1 {
				return fmt.Errorf("item %d: plate index must be at least 1, got %d", i+1, idx)
			}
			k := key{filepath.Clean(item.File), idx}
			if _, dup := seen[k]; dup {
				return fmt.Errorf("item %d: plate %d of %s is listed twice", i+1, idx, item.File)
			}
			seen[k] = struct{}{}
		}
	}
	return nil
}

// files returns the distinct item files in order of first use.
func (p *Plan) files() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, item := range p.Items {
		f := filepath.Clean(item.File)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
