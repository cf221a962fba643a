package marker

import (
	"strings"

	"github.com/zheng/connviz/internal/classfile"
	"github.com/zheng/connviz/internal/config"
)

// Options configure a Classifier
type Options struct {
	TieBreak   config.TieBreak
	Strategies []config.Strategy
	Properties map[string]string
	Index      Index
}

// OptionsFrom derives classifier options from a validated config
func OptionsFrom(cfg *config.Config, index Index) Options {
	return Options{
		TieBreak:   cfg.TieBreak,
		Strategies: cfg.DestinationStrategies,
		Properties: cfg.Properties,
		Index:      index,
	}
}

// Classifier evaluates an immutable rule table. It is safe for concurrent use.
type Classifier struct {
	classRules  []Rule
	methodRules []Rule
	tieBreak    config.TieBreak
	resolve     *resolver
	index       Index
}

// New builds a classifier over rules, evaluated in table order
func New(rules []Rule, opts Options) *Classifier {
	c := &Classifier{
		tieBreak: opts.TieBreak,
		resolve:  newResolver(opts),
		index:    opts.Index,
	}
	if c.tieBreak == "" {
		c.tieBreak = config.TieBreakSpecificity
	}
	for _, r := range rules {
		if r.Scope == ScopeMethod {
			c.methodRules = append(c.methodRules, r)
		} else {
			c.classRules = append(c.classRules, r)
		}
	}
	return c
}

// Included reports whether a class takes part in classification. Synthetic
// classes, module/package descriptors, annotation types, tests and
// configuration-properties holders are skipped.
func Included(cd *classfile.ClassDescriptor) bool {
	switch {
	case cd.IsSynthetic():
		return false
	case cd.Name == "module-info", cd.SimpleName() == "package-info":
		return false
	case cd.Access.Has(classfile.AccAnnotation):
		return false
	case cd.Annotations.Has(annSpringBootTest), cd.Annotations.Has(annConfigurationProperties):
		return false
	}
	return true
}

// Classify returns the markers of the class and of every declared method:
// class-scope markers first, then methods in declaration order.
func (c *Classifier) Classify(cd *classfile.ClassDescriptor) []Marker {
	if !Included(cd) {
		return nil
	}
	out := c.ClassifyClass(cd)
	for i := range cd.Methods {
		out = append(out, c.ClassifyMethod(&cd.Methods[i], cd)...)
	}
	return out
}

// ClassifyClass evaluates the class-scope rules only
func (c *Classifier) ClassifyClass(cd *classfile.ClassDescriptor) []Marker {
	if !Included(cd) {
		return nil
	}
	return c.evaluate(c.classRules, &Context{Class: cd, Index: c.index, resolve: c.resolve})
}

// ClassifyMethod evaluates the method-scope rules against one method of cd
func (c *Classifier) ClassifyMethod(m *classfile.MethodDescriptor, cd *classfile.ClassDescriptor) []Marker {
	if !Included(cd) || isBridgeOrInit(m) {
		return nil
	}
	return c.evaluate(c.methodRules, &Context{Class: cd, Method: m, Index: c.index, resolve: c.resolve})
}

func isBridgeOrInit(m *classfile.MethodDescriptor) bool {
	return m.Access.Has(classfile.AccSynthetic) || m.Name == "<clinit>" || strings.HasPrefix(m.Name, "lambda$")
}

type ruleResult struct {
	rule    *Rule
	markers []Marker
}

func (c *Classifier) evaluate(rules []Rule, ctx *Context) []Marker {
	var results []ruleResult
	for i := range rules {
		r := &rules[i]
		if !r.Match(ctx) {
			continue
		}
		var ms []Marker
		for _, attrs := range r.Extract(ctx) {
			ms = append(ms, Marker{Kind: r.Kind, Rule: r.Name, Element: ctx.Element(), Attrs: attrs})
		}
		if len(ms) > 0 {
			results = append(results, ruleResult{rule: r, markers: ms})
		}
	}
	return c.tieBreakResults(results)
}

// tieBreakResults keeps every kind, and picks among same-kind rules
// according to the configured policy
func (c *Classifier) tieBreakResults(results []ruleResult) []Marker {
	winner := make(map[Kind]*ruleResult)
	for i := range results {
		res := &results[i]
		cur, ok := winner[res.rule.Kind]
		if !ok {
			winner[res.rule.Kind] = res
			continue
		}
		if c.tieBreak == config.TieBreakSpecificity && res.rule.Specificity > cur.rule.Specificity {
			winner[res.rule.Kind] = res
		}
	}

	var out []Marker
	seen := make(map[string]bool)
	for i := range results {
		res := &results[i]
		if c.tieBreak != config.TieBreakMerge && winner[res.rule.Kind] != res {
			continue
		}
		for _, m := range res.markers {
			k := m.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, m)
		}
	}
	return out
}
