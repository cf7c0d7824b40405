// Package fuzzy is a small Mamdani inference engine driven by YAML rule
// bases: triangular terms, AND as minimum, minimum implication, maximum
// aggregation and centroid defuzzification.
package fuzzy

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownVariable = errors.New("unknown fuzzy variable")
	ErrUnknownTerm     = errors.New("unknown fuzzy term")
)

//go:embed rulebases/*.yaml
var builtin embed.FS

// Term is a triangular membership function with vertices a <= b <= c.
type Term struct {
	Name   string     `yaml:"name"`
	Points [3]float64 `yaml:"points"`
}

// Membership returns the degree in [0, 1] to which x belongs to the term.
// Degenerate edges (a == b or b == c) give shoulders.
func (t Term) Membership(x float64) float64 {
	a, b, c := t.Points[0], t.Points[1], t.Points[2]
	switch {
	case math.IsNaN(x), x < a, x > c:
		return 0
	case x == b:
		return 1
	case x < b:
		return (x - a) / (b - a)
	default:
		return (c - x) / (c - b)
	}
}

// Variable is a linguistic variable over [Min, Max].
type Variable struct {
	Name  string  `yaml:"name"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Terms []Term  `yaml:"terms"`
}

func (v Variable) term(name string) (Term, bool) {
	for _, t := range v.Terms {
		if t.Name == name {
			return t, true
		}
	}
	return Term{}, false
}

// Rule fires its consequents with the minimum membership of its antecedents.
type Rule struct {
	If   map[string]string `yaml:"if"`
	Then map[string]string `yaml:"then"`
}

// Calibration maps a raw input range linearly onto [0, 1].
type Calibration struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Normalize applies the calibration to x. Values outside the range are not
// clipped.
func (c Calibration) Normalize(x float64) float64 {
	return (x - c.Min) / (c.Max - c.Min)
}

// RuleBase is the on-disk form of an engine.
type RuleBase struct {
	Name        string       `yaml:"name"`
	Resolution  int          `yaml:"resolution"`
	Calibration *Calibration `yaml:"calibration,omitempty"`
	Inputs      []Variable   `yaml:"inputs"`
	Outputs     []Variable   `yaml:"outputs"`
	Rules       []Rule       `yaml:"rules"`
}

// ParseRuleBase decodes a YAML rule base.
func ParseRuleBase(data []byte) (RuleBase, error) {
	var rb RuleBase
	if err := yaml.Unmarshal(data, &rb); err != nil {
		return RuleBase{}, fmt.Errorf("parse rule base: %w", err)
	}
	return rb, nil
}

// LoadRuleBase reads a YAML rule base from path.
func LoadRuleBase(path string) (RuleBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleBase{}, fmt.Errorf("read rule base: %w", err)
	}
	return ParseRuleBase(data)
}

// Builtin returns one of the rule bases shipped with the package, fuzzy-mb
// or fuzzy-rep.
func Builtin(name string) (RuleBase, error) {
	data, err := builtin.ReadFile("rulebases/" + name + ".yaml")
	if err != nil {
		return RuleBase{}, fmt.Errorf("builtin rule base %q: %w", name, err)
	}
	return ParseRuleBase(data)
}

// Engine evaluates a validated rule base.
type Engine struct {
	rb      RuleBase
	inputs  map[string]Variable
	outputs map[string]Variable
}

// NewEngine checks that every rule refers to declared variables and terms.
func NewEngine(rb RuleBase) (*Engine, error) {
	if rb.Resolution <= 0 {
		rb.Resolution = 100
	}
	e := &Engine{
		rb:      rb,
		inputs:  make(map[string]Variable, len(rb.Inputs)),
		outputs: make(map[string]Variable, len(rb.Outputs)),
	}
	for _, v := range rb.Inputs {
		e.inputs[v.Name] = v
	}
	for _, v := range rb.Outputs {
		if v.Max <= v.Min {
			return nil, fmt.Errorf("output %s: empty range [%v, %v]", v.Name, v.Min, v.Max)
		}
		e.outputs[v.Name] = v
	}

	for i, r := range rb.Rules {
		if err := check(e.inputs, r.If); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if err := check(e.outputs, r.Then); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return e, nil
}

func check(vars map[string]Variable, clauses map[string]string) error {
	for name, term := range clauses {
		v, ok := vars[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
		}
		if _, ok := v.term(term); !ok {
			return fmt.Errorf("%w: %s is %s", ErrUnknownTerm, name, term)
		}
	}
	return nil
}

// Name returns the rule base name.
func (e *Engine) Name() string { return e.rb.Name }

// Calibration returns the input calibration of the rule base, if any.
func (e *Engine) Calibration() (Calibration, bool) {
	if e.rb.Calibration == nil {
		return Calibration{}, false
	}
	return *e.rb.Calibration, true
}

// Evaluate runs inference for the given crisp inputs. An output no rule
// activated is NaN.
func (e *Engine) Evaluate(inputs map[string]float64) (map[string]float64, error) {
	for name := range inputs {
		if _, ok := e.inputs[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
		}
	}

	// activation[output][term] is the strongest firing of that consequent.
	activation := make(map[string]map[string]float64, len(e.outputs))
	for _, r := range e.rb.Rules {
		strength := 1.0
		for name, term := range r.If {
			x, ok := inputs[name]
			if !ok {
				strength = 0
				break
			}
			t, _ := e.inputs[name].term(term)
			strength = math.Min(strength, t.Membership(x))
		}
		if strength <= 0 {
			continue
		}
		for name, term := range r.Then {
			if activation[name] == nil {
				activation[name] = make(map[string]float64)
			}
			activation[name][term] = math.Max(activation[name][term], strength)
		}
	}

	out := make(map[string]float64, len(e.outputs))
	for name, v := range e.outputs {
		out[name] = e.centroid(v, activation[name])
	}
	return out, nil
}

func (e *Engine) centroid(v Variable, fired map[string]float64) float64 {
	if len(fired) == 0 {
		return math.NaN()
	}

	// Fixed iteration order keeps the sums bit-for-bit reproducible.
	names := make([]string, 0, len(fired))
	for name := range fired {
		names = append(names, name)
	}
	sort.Strings(names)

	n := e.rb.Resolution
	dx := (v.Max - v.Min) / float64(n)
	var area, moment float64
	for i := 0; i < n; i++ {
		x := v.Min + (float64(i)+0.5)*dx
		var mu float64
		for _, name := range names {
			t, _ := v.term(name)
			mu = math.Max(mu, math.Min(fired[name], t.Membership(x)))
		}
		area += mu
		moment += mu * x
	}
	if area == 0 {
		return math.NaN()
	}
	return moment / area
}
