package marker

import (
	"github.com/zheng/connviz/internal/classfile"
)

// Scope tells whether a rule looks at a class or at each of its methods
type Scope uint8

const (
	ScopeClass Scope = iota
	ScopeMethod
)

func (s Scope) String() string {
	if s == ScopeMethod {
		return "method"
	}
	return "class"
}

// Attrs is the attribute set of one extracted marker
type Attrs map[string]string

// Rule recognizes one framework feature. Match is a cheap predicate over the
// element; Extract returns one attribute set per marker to emit.
type Rule struct {
	Name        string
	Kind        Kind
	Scope       Scope
	Specificity int
	Match       func(*Context) bool
	Extract     func(*Context) []Attrs
}

// Context is what a rule sees while evaluated against one element
type Context struct {
	Class  *classfile.ClassDescriptor
	Method *classfile.MethodDescriptor // nil for class scope
	Index  Index

	resolve *resolver
}

// Text resolves an annotation string through the configured strategies
func (c *Context) Text(s string) string { return c.resolve.text(s) }

// Arg resolves a call-site operand through the configured strategies
func (c *Context) Arg(a classfile.Arg) string { return c.resolve.arg(a) }

// Lookup finds a scanned class
func (c *Context) Lookup(name string) (*classfile.ClassDescriptor, bool) {
	if c.Index == nil {
		return nil, false
	}
	return c.Index.Class(name)
}

// Element returns the identity of the element under evaluation
func (c *Context) Element() string {
	if c.Method != nil {
		return MethodElement(c.Class, c.Method)
	}
	return c.Class.Name
}

// MethodElement renders the element identity of a method
func MethodElement(cd *classfile.ClassDescriptor, m *classfile.MethodDescriptor) string {
	return cd.Name + "#" + m.ID()
}

// supertypes walks scanned supertypes breadth-first, starting with cd's own
// declared ones. fn returns false to stop.
func (c *Context) supertypes(cd *classfile.ClassDescriptor, fn func(name string, owner *classfile.ClassDescriptor) bool) {
	seen := map[string]bool{cd.Name: true}
	queue := []*classfile.ClassDescriptor{cd}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, st := range cur.Supertypes() {
			if seen[st] {
				continue
			}
			seen[st] = true
			if !fn(st, cur) {
				return
			}
			if next, ok := c.Lookup(st); ok {
				queue = append(queue, next)
			}
		}
	}
}
