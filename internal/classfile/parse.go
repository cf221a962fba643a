package classfile

import (
	"fmt"
	"io"
)

const magic = 0xCAFEBABE

// Attribute names the loader decodes
const (
	attrCode                        = "Code"
	attrConstantValue               = "ConstantValue"
	attrSignature                   = "Signature"
	attrRuntimeVisibleAnnotations   = "RuntimeVisibleAnnotations"
	attrRuntimeInvisibleAnnotations = "RuntimeInvisibleAnnotations"
)

// maxAnnotationDepth guards against pathological nesting of annotation values
const maxAnnotationDepth = 32

type parser struct {
	r  *reader
	cp constantPool
}

// Read parses a class file from a stream
func Read(artifact string, rd io.Reader) (*ClassDescriptor, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, &FormatError{Artifact: artifact, Reason: "read failed", Err: err}
	}
	return Parse(artifact, data)
}

// Parse decodes a complete class file
func Parse(artifact string, data []byte) (*ClassDescriptor, error) {
	p := &parser{r: &reader{buf: data, artifact: artifact}}
	cd := p.class()
	if p.r.err != nil {
		return nil, p.r.err
	}
	if p.r.off != len(data) {
		p.r.fail(fmt.Sprintf("%d trailing bytes", len(data)-p.r.off))
		return nil, p.r.err
	}
	cd.Artifact = artifact
	return cd, nil
}

func (p *parser) class() *ClassDescriptor {
	r := p.r
	if m := r.u4(); r.err == nil && m != magic {
		r.fail(fmt.Sprintf("bad magic 0x%08x", m))
		return nil
	}
	r.u2() // minor
	cd := &ClassDescriptor{Version: r.u2()}
	p.cp = readConstantPool(r)
	if r.err != nil {
		return nil
	}

	cd.Access = AccessFlags(r.u2())
	cd.Name = p.classRef(r.u2(), false)
	if r.err == nil && cd.Access.Has(AccModule) {
		// module-info has neither super class nor members worth reading by name
		cd.Name = "module-info"
	}
	cd.Super = p.classRef(r.u2(), true)

	ifaces := int(r.u2())
	for i := 0; i < ifaces && r.err == nil; i++ {
		cd.Interfaces = append(cd.Interfaces, p.classRef(r.u2(), false))
	}

	fields := int(r.u2())
	for i := 0; i < fields && r.err == nil; i++ {
		cd.Fields = append(cd.Fields, p.field())
	}

	methods := int(r.u2())
	for i := 0; i < methods && r.err == nil; i++ {
		cd.Methods = append(cd.Methods, p.method())
	}

	p.attributes(func(name string, body *reader) {
		switch name {
		case attrSignature:
			cd.Signature = p.utf8(body, body.u2())
		case attrRuntimeVisibleAnnotations, attrRuntimeInvisibleAnnotations:
			cd.Annotations = append(cd.Annotations, p.annotations(body, name == attrRuntimeVisibleAnnotations)...)
		}
	})
	return cd
}

func (p *parser) field() FieldDescriptor {
	r := p.r
	access := AccessFlags(r.u2())
	f := FieldDescriptor{
		Access:     access,
		Visibility: visibilityOf(access),
		Name:       p.utf8(r, r.u2()),
	}
	desc := p.utf8(r, r.u2())
	if r.err == nil {
		name, err := DescriptorToName(desc)
		if err != nil {
			r.fail(err.Error())
		}
		f.Type = name
	}
	p.attributes(func(name string, body *reader) {
		switch name {
		case attrConstantValue:
			idx := body.u2()
			if body.err != nil {
				return
			}
			v, ok := p.cp.literal(idx)
			if !ok {
				body.fail("invalid ConstantValue index")
				return
			}
			f.Constant, f.HasConstant = v, true
		case attrSignature:
			f.Signature = p.utf8(body, body.u2())
		case attrRuntimeVisibleAnnotations, attrRuntimeInvisibleAnnotations:
			f.Annotations = append(f.Annotations, p.annotations(body, name == attrRuntimeVisibleAnnotations)...)
		}
	})
	return f
}

func (p *parser) method() MethodDescriptor {
	r := p.r
	access := AccessFlags(r.u2())
	m := MethodDescriptor{
		Access:     access,
		Visibility: visibilityOf(access),
		Name:       p.utf8(r, r.u2()),
		Descriptor: p.utf8(r, r.u2()),
	}
	if r.err == nil {
		params, ret, err := ParseMethodDescriptor(m.Descriptor)
		if err != nil {
			r.fail(err.Error())
		}
		m.Params, m.Return = params, ret
	}
	p.attributes(func(name string, body *reader) {
		switch name {
		case attrCode:
			m.Calls = p.code(body)
		case attrSignature:
			m.Signature = p.utf8(body, body.u2())
		case attrRuntimeVisibleAnnotations, attrRuntimeInvisibleAnnotations:
			m.Annotations = append(m.Annotations, p.annotations(body, name == attrRuntimeVisibleAnnotations)...)
		}
	})
	return m
}

// attributes iterates an attribute table, handing each body to fn as an
// isolated reader. Errors inside a body are propagated to the main reader.
func (p *parser) attributes(fn func(name string, body *reader)) {
	r := p.r
	count := int(r.u2())
	for i := 0; i < count && r.err == nil; i++ {
		name := p.utf8(r, r.u2())
		length := int(r.u4())
		body := r.sub(length)
		if r.err != nil {
			return
		}
		fn(name, body)
		if body.err != nil {
			r.err = body.err
		}
	}
}

func (p *parser) code(body *reader) []CallSite {
	body.u2() // max_stack
	body.u2() // max_locals
	length := int(body.u4())
	start := body.off
	code := body.bytes(length)
	if body.err != nil {
		return nil
	}
	calls, err := scanCode(code, p.cp)
	if err != nil {
		body.err = &FormatError{Artifact: body.artifact, Offset: body.base + start, Reason: "invalid bytecode", Err: err}
		return nil
	}
	// exception table and nested attributes (line numbers, locals) are not needed
	body.off = len(body.buf)
	return calls
}

func (p *parser) annotations(body *reader, visible bool) []Annotation {
	count := int(body.u2())
	out := make([]Annotation, 0, count)
	for i := 0; i < count && body.err == nil; i++ {
		a := p.annotation(body, 0)
		a.Visible = visible
		out = append(out, a)
	}
	return out
}

func (p *parser) annotation(body *reader, depth int) Annotation {
	if depth > maxAnnotationDepth {
		body.fail("annotation nesting too deep")
		return Annotation{}
	}
	desc := p.utf8(body, body.u2())
	var a Annotation
	if body.err == nil {
		name, err := DescriptorToName(desc)
		if err != nil {
			body.fail(err.Error())
			return a
		}
		a.Type = name
	}
	pairs := int(body.u2())
	if pairs > 0 {
		a.Values = make(map[string]Value, pairs)
	}
	for i := 0; i < pairs && body.err == nil; i++ {
		name := p.utf8(body, body.u2())
		a.Values[name] = p.elementValue(body, depth)
	}
	return a
}

func (p *parser) elementValue(body *reader, depth int) Value {
	tag := body.u1()
	if body.err != nil {
		return Value{}
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		idx := body.u2()
		s, ok := p.cp.literal(idx)
		if body.err == nil && !ok {
			body.fail("invalid annotation constant index")
		}
		switch tag {
		case 'Z':
			if s == "0" {
				s = "false"
			} else {
				s = "true"
			}
		case 'C':
			var c int32
			fmt.Sscan(s, &c)
			s = string(rune(c))
		}
		return Value{Kind: ValueConst, Str: s}
	case 's':
		return Value{Kind: ValueString, Str: p.utf8(body, body.u2())}
	case 'e':
		typeDesc := p.utf8(body, body.u2())
		constName := p.utf8(body, body.u2())
		v := Value{Kind: ValueEnum, Str: constName}
		if body.err == nil {
			if name, err := DescriptorToName(typeDesc); err == nil {
				v.EnumType = name
			} else {
				v.EnumType = typeDesc
			}
		}
		return v
	case 'c':
		desc := p.utf8(body, body.u2())
		name, err := DescriptorToName(desc)
		if err != nil {
			name = desc
		}
		return Value{Kind: ValueClass, Str: name}
	case '@':
		nested := p.annotation(body, depth+1)
		return Value{Kind: ValueAnnotation, Annotation: &nested}
	case '[':
		n := int(body.u2())
		v := Value{Kind: ValueArray, Elems: make([]Value, 0, n)}
		for i := 0; i < n && body.err == nil; i++ {
			v.Elems = append(v.Elems, p.elementValue(body, depth+1))
		}
		return v
	}
	body.fail(fmt.Sprintf("unknown element value tag %q", tag))
	return Value{}
}

func (p *parser) utf8(r *reader, idx uint16) string {
	if r.err != nil {
		return ""
	}
	s, ok := p.cp.utf8(idx)
	if !ok {
		r.fail(fmt.Sprintf("constant pool index %d is not Utf8", idx))
	}
	return s
}

// classRef resolves a class index; zero is allowed only where optional
func (p *parser) classRef(idx uint16, optional bool) string {
	r := p.r
	if r.err != nil {
		return ""
	}
	if idx == 0 && optional {
		return ""
	}
	name, ok := p.cp.className(idx)
	if !ok {
		r.fail(fmt.Sprintf("constant pool index %d is not a class", idx))
	}
	return name
}
