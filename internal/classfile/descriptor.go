package classfile

import (
	"strings"
)

// AccessFlags are the raw access_flags of a class, field or method
type AccessFlags uint16

const (
	AccPublic     AccessFlags = 0x0001
	AccPrivate    AccessFlags = 0x0002
	AccProtected  AccessFlags = 0x0004
	AccStatic     AccessFlags = 0x0008
	AccFinal      AccessFlags = 0x0010
	AccInterface  AccessFlags = 0x0200
	AccAbstract   AccessFlags = 0x0400
	AccSynthetic  AccessFlags = 0x1000
	AccAnnotation AccessFlags = 0x2000
	AccEnum       AccessFlags = 0x4000
	AccModule     AccessFlags = 0x8000
)

// Has reports whether all bits of f are set
func (a AccessFlags) Has(f AccessFlags) bool {
	return a&f == f
}

// Visibility is the declared visibility of a member
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPackage   Visibility = "package"
	VisibilityPrivate   Visibility = "private"
)

func visibilityOf(a AccessFlags) Visibility {
	switch {
	case a.Has(AccPublic):
		return VisibilityPublic
	case a.Has(AccProtected):
		return VisibilityProtected
	case a.Has(AccPrivate):
		return VisibilityPrivate
	default:
		return VisibilityPackage
	}
}

// ValueKind tells which field of a Value is meaningful
type ValueKind uint8

const (
	ValueConst      ValueKind = iota // primitive constant, rendered in Str
	ValueString                      // string constant
	ValueEnum                        // enum constant: EnumType + Str
	ValueClass                       // class literal, dotted name in Str
	ValueAnnotation                  // nested annotation
	ValueArray                       // Elems
)

// Value is one annotation element value
type Value struct {
	Kind       ValueKind
	Str        string
	EnumType   string
	Annotation *Annotation
	Elems      []Value
}

// Strings flattens a string, enum, class or array value into its string forms.
// Nested annotations contribute nothing.
func (v Value) Strings() []string {
	switch v.Kind {
	case ValueArray:
		var out []string
		for _, e := range v.Elems {
			out = append(out, e.Strings()...)
		}
		return out
	case ValueAnnotation:
		return nil
	default:
		return []string{v.Str}
	}
}

// Annotation is a declared annotation with its explicit element values.
// Defaults declared on the annotation type are not part of the class file.
type Annotation struct {
	Type    string // dotted name, e.g. org.springframework.jms.annotation.JmsListener
	Visible bool
	Values  map[string]Value
}

// Strings returns the flattened string values of element name
func (a Annotation) Strings(name string) []string {
	v, ok := a.Values[name]
	if !ok {
		return nil
	}
	return v.Strings()
}

// String returns the first string value of element name, or ""
func (a Annotation) String(name string) string {
	if s := a.Strings(name); len(s) > 0 {
		return s[0]
	}
	return ""
}

// Nested returns the annotations held in element name (single or array)
func (a Annotation) Nested(name string) []Annotation {
	v, ok := a.Values[name]
	if !ok {
		return nil
	}
	var out []Annotation
	collectNested(v, &out)
	return out
}

func collectNested(v Value, out *[]Annotation) {
	switch v.Kind {
	case ValueAnnotation:
		if v.Annotation != nil {
			*out = append(*out, *v.Annotation)
		}
	case ValueArray:
		for _, e := range v.Elems {
			collectNested(e, out)
		}
	}
}

// Annotations is an ordered list of declared annotations
type Annotations []Annotation

// Find returns the first annotation of the given dotted type
func (as Annotations) Find(typeName string) (Annotation, bool) {
	for _, a := range as {
		if a.Type == typeName {
			return a, true
		}
	}
	return Annotation{}, false
}

// FindAny returns the first annotation whose type is one of typeNames
func (as Annotations) FindAny(typeNames ...string) (Annotation, bool) {
	for _, a := range as {
		for _, t := range typeNames {
			if a.Type == t {
				return a, true
			}
		}
	}
	return Annotation{}, false
}

// Has reports whether an annotation of the given type is declared
func (as Annotations) Has(typeName string) bool {
	_, ok := as.Find(typeName)
	return ok
}

// ArgKind classifies an operand value observed before a call site
type ArgKind uint8

const (
	ArgComputed ArgKind = iota // produced by a call or anything not tracked
	ArgLiteral                 // ldc of a string constant
	ArgField                   // getstatic, Value is "owner#name"
)

// Arg is one operand pushed before a call site, in push order
type Arg struct {
	Kind  ArgKind
	Value string
}

// CallSite is an invoke instruction found in a method body
type CallSite struct {
	Owner      string // dotted owner class
	Name       string
	Descriptor string
	Interface  bool
	Args       []Arg // operands pushed since the previous call, oldest first
}

// FieldDescriptor describes a declared field
type FieldDescriptor struct {
	Name        string
	Type        string // dotted
	Access      AccessFlags
	Visibility  Visibility
	Annotations Annotations
	Signature   string
	Constant    string // ConstantValue rendered as string when HasConstant
	HasConstant bool
}

// MethodDescriptor describes a declared method
type MethodDescriptor struct {
	Name        string
	Descriptor  string
	Params      []string // dotted parameter types
	Return      string   // dotted return type, "void" when none
	Access      AccessFlags
	Visibility  Visibility
	Annotations Annotations
	Signature   string
	Calls       []CallSite
}

// ID returns a stable identity of the method inside its class
func (m *MethodDescriptor) ID() string {
	return m.Name + m.Descriptor
}

// ClassDescriptor is the structural model of one compiled class.
// It is immutable once returned by the loader.
type ClassDescriptor struct {
	Name        string // dotted, e.g. service1.api.http.MainController
	Super       string // dotted, "" for java.lang.Object itself and module-info
	Interfaces  []string
	Access      AccessFlags
	Annotations Annotations
	Fields      []FieldDescriptor
	Methods     []MethodDescriptor
	Signature   string
	Version     uint16 // major version
	Artifact    string // identity of the byte stream it was read from
}

// IsInterface reports whether the class is an interface (annotation types included)
func (c *ClassDescriptor) IsInterface() bool {
	return c.Access.Has(AccInterface)
}

// IsSynthetic reports compiler-generated or anonymous classes
func (c *ClassDescriptor) IsSynthetic() bool {
	if c.Access.Has(AccSynthetic) {
		return true
	}
	simple := c.SimpleName()
	if idx := strings.LastIndex(simple, "$"); idx >= 0 {
		rest := simple[idx+1:]
		return rest != "" && rest[0] >= '0' && rest[0] <= '9'
	}
	return false
}

// Package returns the dotted package name
func (c *ClassDescriptor) Package() string {
	if idx := strings.LastIndex(c.Name, "."); idx >= 0 {
		return c.Name[:idx]
	}
	return ""
}

// SimpleName returns the class name without package
func (c *ClassDescriptor) SimpleName() string {
	if idx := strings.LastIndex(c.Name, "."); idx >= 0 {
		return c.Name[idx+1:]
	}
	return c.Name
}

// Field returns the declared field with the given name
func (c *ClassDescriptor) Field(name string) (*FieldDescriptor, bool) {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// Supertypes returns the superclass (if any) followed by the interfaces
func (c *ClassDescriptor) Supertypes() []string {
	out := make([]string, 0, len(c.Interfaces)+1)
	if c.Super != "" {
		out = append(out, c.Super)
	}
	return append(out, c.Interfaces...)
}
