package classfile

import (
	"fmt"
	"strings"
)

var primitiveNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// InternalToName converts an internal name (java/lang/String) to a dotted one
func InternalToName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// DescriptorToName converts a single field descriptor to a Java type name,
// e.g. "[Ljava/lang/String;" -> "java.lang.String[]"
func DescriptorToName(desc string) (string, error) {
	name, n, err := parseFieldType(desc)
	if err != nil {
		return "", err
	}
	if n != len(desc) {
		return "", fmt.Errorf("trailing data in descriptor %q", desc)
	}
	return name, nil
}

func parseFieldType(desc string) (string, int, error) {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	if dims >= len(desc) {
		return "", 0, fmt.Errorf("truncated descriptor %q", desc)
	}
	var base string
	n := dims
	switch c := desc[dims]; c {
	case 'L':
		end := strings.IndexByte(desc[dims:], ';')
		if end < 2 {
			return "", 0, fmt.Errorf("unterminated class type in %q", desc)
		}
		base = InternalToName(desc[dims+1 : dims+end])
		n += end + 1
	default:
		p, ok := primitiveNames[c]
		if !ok || (c == 'V' && dims > 0) {
			return "", 0, fmt.Errorf("invalid type %q in descriptor %q", c, desc)
		}
		base = p
		n++
	}
	return base + strings.Repeat("[]", dims), n, nil
}

// ParseMethodDescriptor splits "(Ljava/lang/String;I)V" into dotted parameter
// and return type names
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("invalid method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		name, n, err := parseFieldType(desc[i:])
		if err != nil {
			return nil, "", err
		}
		if name == "void" {
			return nil, "", fmt.Errorf("void parameter in %q", desc)
		}
		params = append(params, name)
		i += n
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("unterminated parameter list in %q", desc)
	}
	ret, err = DescriptorToName(desc[i+1:])
	if err != nil {
		return nil, "", err
	}
	return params, ret, nil
}

// TypeRef is a generic class type reference taken from a Signature attribute
type TypeRef struct {
	Name string // dotted erasure, or the variable name when Var is set
	// Var marks a type variable or an unbounded wildcard ("?")
	Var  bool
	Args []TypeRef
}

// ParseClassSignature returns the generic supertypes (superclass first, then
// interfaces) declared by a class Signature attribute, e.g.
// "Ljava/lang/Object;Lorg/springframework/data/repository/CrudRepository<Lx/User;Ljava/lang/String;>;"
func ParseClassSignature(sig string) ([]TypeRef, error) {
	p := &sigParser{s: sig}
	if p.peek() == '<' {
		p.skipTypeParams()
	}
	var out []TypeRef
	for p.err == nil && p.i < len(p.s) {
		out = append(out, p.classType())
	}
	if p.err != nil {
		return nil, p.err
	}
	return out, nil
}

type sigParser struct {
	s   string
	i   int
	err error
}

func (p *sigParser) peek() byte {
	if p.i < len(p.s) {
		return p.s[p.i]
	}
	return 0
}

func (p *sigParser) failf(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("signature %q: "+format, append([]any{p.s}, args...)...)
	}
	p.i = len(p.s)
}

func (p *sigParser) expect(c byte) {
	if p.peek() != c {
		p.failf("expected %q at %d", c, p.i)
		return
	}
	p.i++
}

// skipTypeParams skips "<T:Ljava/lang/Object;U::Ljava/io/Serializable;>"
func (p *sigParser) skipTypeParams() {
	p.expect('<')
	for p.err == nil && p.peek() != '>' {
		colon := strings.IndexByte(p.s[p.i:], ':')
		if colon < 0 {
			p.failf("bad type parameter")
			return
		}
		p.i += colon
		for p.peek() == ':' {
			p.i++
			if c := p.peek(); c == 'L' || c == 'T' || c == '[' {
				p.fieldType()
			}
		}
	}
	p.expect('>')
}

func (p *sigParser) fieldType() TypeRef {
	switch c := p.peek(); c {
	case 'L':
		return p.classType()
	case 'T':
		end := strings.IndexByte(p.s[p.i:], ';')
		if end < 0 {
			p.failf("unterminated type variable")
			return TypeRef{}
		}
		ref := TypeRef{Name: p.s[p.i+1 : p.i+end], Var: true}
		p.i += end + 1
		return ref
	case '[':
		p.i++
		elem := p.fieldType()
		elem.Name += "[]"
		return elem
	default:
		if name, ok := primitiveNames[c]; ok && c != 'V' {
			p.i++
			return TypeRef{Name: name}
		}
		p.failf("unexpected %q at %d", c, p.i)
		return TypeRef{}
	}
}

func (p *sigParser) classType() TypeRef {
	p.expect('L')
	var name strings.Builder
	var ref TypeRef
	for p.err == nil {
		switch c := p.peek(); c {
		case ';':
			p.i++
			ref.Name = InternalToName(name.String())
			return ref
		case '<':
			p.i++
			ref.Args = nil
			for p.err == nil && p.peek() != '>' {
				switch p.peek() {
				case '*':
					p.i++
					ref.Args = append(ref.Args, TypeRef{Name: "?", Var: true})
				case '+', '-':
					p.i++
					ref.Args = append(ref.Args, p.fieldType())
				default:
					ref.Args = append(ref.Args, p.fieldType())
				}
			}
			p.expect('>')
		case '.':
			// inner class of a parameterized outer type
			p.i++
			name.WriteByte('$')
		case 0:
			p.failf("unterminated class type")
		default:
			name.WriteByte(c)
			p.i++
		}
	}
	return ref
}
