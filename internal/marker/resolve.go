package marker

import (
	"strings"

	"github.com/zheng/connviz/internal/classfile"
	"github.com/zheng/connviz/internal/config"
)

// Index looks up other scanned classes by dotted name
type Index interface {
	Class(name string) (*classfile.ClassDescriptor, bool)
}

// MapIndex is an Index over a map
type MapIndex map[string]*classfile.ClassDescriptor

func (m MapIndex) Class(name string) (*classfile.ClassDescriptor, bool) {
	cd, ok := m[name]
	return cd, ok
}

// resolver turns annotation strings and call-site operands into destination
// names using the enabled strategies
type resolver struct {
	literal     bool
	placeholder bool
	constant    bool
	properties  map[string]string
	index       Index
}

func newResolver(opts Options) *resolver {
	r := &resolver{properties: opts.Properties, index: opts.Index}
	for _, s := range opts.Strategies {
		switch s {
		case config.StrategyLiteral:
			r.literal = true
		case config.StrategyPlaceholder:
			r.placeholder = true
		case config.StrategyConstantField:
			r.constant = true
		}
	}
	return r
}

// text resolves a string literal, expanding ${key:default} placeholders
func (r *resolver) text(s string) string {
	if s == "" || strings.Contains(s, "#{") {
		// SpEL is evaluated at runtime
		return Unresolved
	}
	if !strings.Contains(s, "${") && !r.literal {
		return Unresolved
	}
	return r.expand(s)
}

// expand substitutes ${key:default} placeholders from the configured properties
func (r *resolver) expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	if !r.placeholder {
		return Unresolved
	}

	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			return Unresolved
		}
		b.WriteString(s[:start])
		expr := s[start+2 : start+end]
		key, def, hasDefault := strings.Cut(expr, ":")
		if v, ok := r.properties[key]; ok {
			b.WriteString(v)
		} else if hasDefault {
			b.WriteString(def)
		} else {
			return Unresolved
		}
		s = s[start+end+1:]
	}
	return b.String()
}

// texts resolves each value, keeping order; an empty input yields nothing
func (r *resolver) texts(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, r.text(v))
	}
	return out
}

// arg resolves a call-site operand
func (r *resolver) arg(a classfile.Arg) string {
	switch a.Kind {
	case classfile.ArgLiteral:
		return r.text(a.Value)
	case classfile.ArgField:
		if !r.constant || r.index == nil {
			return Unresolved
		}
		owner, name, ok := strings.Cut(a.Value, "#")
		if !ok {
			return Unresolved
		}
		cd, ok := r.index.Class(owner)
		if !ok {
			return Unresolved
		}
		f, ok := cd.Field(name)
		if !ok || !f.HasConstant || !f.Access.Has(classfile.AccStatic|classfile.AccFinal) {
			return Unresolved
		}
		return r.expand(f.Constant)
	}
	return Unresolved
}
