package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/filters"
)

// Object categories an action can target.
const (
	CategoryIndices   = "indices"
	CategorySnapshots = "snapshots"
)

// ActionSpec is one declarative selection: which objects to consider and
// the filter pipeline that narrows them.
type ActionSpec struct {
	Action            string       `yaml:"action"`
	Description       string       `yaml:"description"`
	Category          string       `yaml:"category"`
	Pattern           string       `yaml:"pattern"`
	Repository        string       `yaml:"repository"`
	IgnoreEmptyList   bool         `yaml:"ignore_empty_list"`
	ContinueIfErrored bool         `yaml:"continue_if_exception"`
	Filters           filters.List `yaml:"filters"`
}

// category defaults to indices.
func (a *ActionSpec) category() string {
	if a.Category == "" {
		return CategoryIndices
	}
	return a.Category
}

// Targets reports whether the spec selects the given category.
func (a *ActionSpec) Targets(category string) bool {
	return a.category() == category
}

// Validate checks the spec before any remote call.
func (a *ActionSpec) Validate() error {
	if a.Action == "" {
		return errkind.Missingf("action name is required")
	}
	switch a.category() {
	case CategoryIndices:
		if a.Pattern == "" {
			return errkind.Missingf("action %s: index actions require a pattern", a.Action)
		}
	case CategorySnapshots:
		if a.Repository == "" {
			return errkind.Missingf("action %s: snapshot actions require a repository", a.Action)
		}
	default:
		return errkind.Configf("action %s: unknown category %q", a.Action, a.Category)
	}
	return nil
}

// ActionFile is a numbered map of action specs, the declarative input of
// one planning run.
type ActionFile struct {
	Actions map[int]ActionSpec `yaml:"actions"`
}

// LoadActions reads and validates an action file.
func LoadActions(path string) (*ActionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read action file %s: %w", path, err)
	}

	var af ActionFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return nil, errkind.Configf("parse action file %s: %v", path, err)
	}
	if len(af.Actions) == 0 {
		return nil, errkind.Missingf("action file %s holds no actions", path)
	}
	for n, a := range af.Actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", n, err)
		}
	}
	return &af, nil
}

// Ordered returns the action specs in their numbered order.
func (af *ActionFile) Ordered() []ActionSpec {
	nums := make([]int, 0, len(af.Actions))
	for n := range af.Actions {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	out := make([]ActionSpec, 0, len(nums))
	for _, n := range nums {
		out = append(out, af.Actions[n])
	}
	return out
}
