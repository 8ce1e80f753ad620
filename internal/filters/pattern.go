package filters

import (
	"context"
	"regexp"
	"strings"

	"github.com/culler-io/culler/internal/age"
	"github.com/culler-io/culler/internal/errkind"
	"github.com/culler-io/culler/internal/inventory"
)

// Pattern match modes.
const (
	MatchPrefix     = "prefix"
	MatchSuffix     = "suffix"
	MatchRegex      = "regex"
	MatchTimestring = "timestring"
)

// PatternFilter keeps objects whose name matches a prefix, suffix, regular
// expression, or date-format derived pattern.
type PatternFilter struct {
	Exclude bool   `yaml:"exclude"`
	Match   string `yaml:"kind"`
	Value   string `yaml:"value"`
}

func (f *PatternFilter) Kind() Kind { return KindPattern }

func (f *PatternFilter) Validate(cat inventory.Category) error {
	if f.Value == "" {
		return errkind.Missingf("pattern filter requires a value")
	}
	switch f.Match {
	case MatchPrefix, MatchSuffix:
		return nil
	case MatchRegex:
		if _, err := regexp.Compile(f.Value); err != nil {
			return errkind.Configf("invalid regex %q: %v", f.Value, err)
		}
		return nil
	case MatchTimestring:
		_, err := age.Regex(f.Value)
		return err
	default:
		return errkind.Configf("unknown pattern kind %q", f.Match)
	}
}

func (f *PatternFilter) Apply(_ context.Context, _ *inventory.Inventory, ws inventory.WorkingSet) (inventory.WorkingSet, error) {
	var match func(string) bool
	switch f.Match {
	case MatchPrefix:
		match = func(name string) bool { return strings.HasPrefix(name, f.Value) }
	case MatchSuffix:
		match = func(name string) bool { return strings.HasSuffix(name, f.Value) }
	case MatchRegex:
		re, err := regexp.Compile(f.Value)
		if err != nil {
			return ws, errkind.Configf("invalid regex %q: %v", f.Value, err)
		}
		match = re.MatchString
	case MatchTimestring:
		re, err := age.Regex(f.Value)
		if err != nil {
			return ws, err
		}
		match = re.MatchString
	default:
		return ws, errkind.Configf("unknown pattern kind %q", f.Match)
	}

	return ws.Keep(func(name string) bool {
		return keep(match(name), f.Exclude)
	}), nil
}
