// Package selector maps a capability report onto a workload configuration.
package selector

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mori-agent/mori/internal/domain"
)

//go:embed tiers.yaml
var defaultTiers []byte

// Rule is one row of the decision table.
type Rule struct {
	Tier           domain.Tier `yaml:"tier"`
	Model          string      `yaml:"model"`
	MinCPUScore    int         `yaml:"min_cpu_score"`
	MinMemoryScore int         `yaml:"min_memory_score"`
}

// Table is the ordered decision table. The first rule is the highest tier
// and the last is the unconditional fallback.
type Table struct {
	Tiers []Rule `yaml:"tiers"`
}

// Selector is a pure function of its table and the report it is given.
type Selector struct {
	table Table
}

// New parses the embedded table.
func New() (*Selector, error) {
	return Parse(defaultTiers)
}

// Parse builds a selector from a YAML table.
func Parse(data []byte) (*Selector, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tier table: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &Selector{table: t}, nil
}

func (t Table) validate() error {
	if len(t.Tiers) < 2 {
		return fmt.Errorf("tier table needs at least a highest and a fallback tier, got %d", len(t.Tiers))
	}
	for i, r := range t.Tiers {
		if r.Model == "" {
			return fmt.Errorf("tier %d (%s) has no model", i, r.Tier)
		}
	}
	return nil
}

// Select chooses the configuration for report. It never fails.
//
// An integrated-accelerator platform always gets the highest tier. Otherwise
// the first rule whose thresholds are both met wins, and the last rule is
// taken when none is.
func (s *Selector) Select(report domain.CapabilityReport) domain.ModelSelection {
	rule := s.pick(report)
	return domain.ModelSelection{
		ConfigurationID: rule.Model,
		Tier:            rule.Tier,
		Rationale:       report,
	}
}

func (s *Selector) pick(report domain.CapabilityReport) Rule {
	tiers := s.table.Tiers
	if report.Platform == domain.PlatformUnifiedMemory {
		return tiers[0]
	}
	for _, r := range tiers[:len(tiers)-1] {
		if report.CPUScore >= r.MinCPUScore && report.MemoryScore >= r.MinMemoryScore {
			return r
		}
	}
	return tiers[len(tiers)-1]
}

// Override replaces the chosen configuration with an operator-supplied id,
// keeping the rationale so the record still explains what was detected.
func Override(sel domain.ModelSelection, model string) domain.ModelSelection {
	if model == "" || model == sel.ConfigurationID {
		return sel
	}
	sel.ConfigurationID = model
	sel.Overridden = true
	return sel
}
