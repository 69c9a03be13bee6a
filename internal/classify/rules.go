package classify

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Magnitude is a delta-v class.
type Magnitude string

const (
	Micro  Magnitude = "micro"
	Small  Magnitude = "small"
	Medium Magnitude = "medium"
	Large  Magnitude = "large"
)

// magnitudeBins are half-open [lo, hi) ranges in m/s, checked in order.
var magnitudeBins = []struct {
	class  Magnitude
	lo, hi float64
}{
	{Micro, 0, 0.5},
	{Small, 0.5, 2},
	{Medium, 2, 10},
}

// MagnitudeClass bins |deltaV| (m/s). Anything past the last bin is Large.
func MagnitudeClass(deltaV float64) Magnitude {
	dv := deltaV
	if dv < 0 {
		dv = -dv
	}
	for _, b := range magnitudeBins {
		if dv >= b.lo && dv < b.hi {
			return b.class
		}
	}
	return Large
}

// OtherConstellation is reported when no rule matches.
const OtherConstellation = "other"

// Rule maps an object-name pattern to a constellation.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// Rules is an ordered constellation table. The first matching rule wins.
type Rules struct {
	rules []Rule
}

type rulesFile struct {
	Constellations []Rule `yaml:"constellations"`
}

// DefaultRules returns the built-in Starlink, OneWeb and Iridium table.
func DefaultRules() *Rules {
	r, err := NewRules([]Rule{
		{Name: "starlink", Pattern: "STARLINK"},
		{Name: "oneweb", Pattern: "ONEWEB"},
		{Name: "iridium", Pattern: "IRIDIUM"},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// NewRules compiles rules. Patterns match case-insensitively.
func NewRules(rules []Rule) (*Rules, error) {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rule with pattern %q has no name", r.Pattern)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		r.re = re
		out = append(out, r)
	}
	return &Rules{rules: out}, nil
}

// ParseRules reads a YAML document of the form
//
//	constellations:
//	  - name: starlink
//	    pattern: STARLINK
func ParseRules(data []byte) (*Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return NewRules(f.Constellations)
}

// LoadRules reads a rules file. An empty path returns DefaultRules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	return ParseRules(data)
}

// Constellation returns the first rule name whose pattern matches name.
func (r *Rules) Constellation(name string) string {
	for _, rule := range r.rules {
		if rule.re.MatchString(name) {
			return rule.Name
		}
	}
	return OtherConstellation
}
