// Package classfiletest assembles small, valid class files for tests. Only
// the structures read by package classfile are emitted.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Access flags, mirrored so tests need not import classfile for them
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
)

// Ann describes an annotation to emit
type Ann struct {
	Type      string // dotted
	Invisible bool   // emit in RuntimeInvisibleAnnotations
	Elems     []Elem
}

// A builds a runtime-visible annotation
func A(typeName string, elems ...Elem) Ann {
	return Ann{Type: typeName, Elems: elems}
}

// Elem is one name=value pair
type Elem struct {
	Name  string
	value ev
}

type ev struct {
	tag   byte
	str   string
	num   int32
	enum  string
	ann   *Ann
	elems []ev
}

// Str is a string element
func Str(name, v string) Elem { return Elem{Name: name, value: ev{tag: 's', str: v}} }

// Strs is a string array element
func Strs(name string, vs ...string) Elem {
	arr := ev{tag: '['}
	for _, v := range vs {
		arr.elems = append(arr.elems, ev{tag: 's', str: v})
	}
	return Elem{Name: name, value: arr}
}

// Int is an int element
func Int(name string, v int32) Elem { return Elem{Name: name, value: ev{tag: 'I', num: v}} }

// Long is a long element
func Long(name string, v int32) Elem { return Elem{Name: name, value: ev{tag: 'J', num: v}} }

// Bool is a boolean element
func Bool(name string, v bool) Elem {
	n := int32(0)
	if v {
		n = 1
	}
	return Elem{Name: name, value: ev{tag: 'Z', num: n}}
}

// Enums is an array of enum constants of one type
func Enums(name, enumType string, consts ...string) Elem {
	arr := ev{tag: '['}
	for _, c := range consts {
		arr.elems = append(arr.elems, ev{tag: 'e', str: c, enum: enumType})
	}
	return Elem{Name: name, value: arr}
}

// ClassValue is a class literal element
func ClassValue(name, className string) Elem {
	return Elem{Name: name, value: ev{tag: 'c', str: className}}
}

// Nested is an array of nested annotations
func Nested(name string, anns ...Ann) Elem {
	arr := ev{tag: '['}
	for i := range anns {
		arr.elems = append(arr.elems, ev{tag: '@', ann: &anns[i]})
	}
	return Elem{Name: name, value: arr}
}

// Class builds one class file
type Class struct {
	name       string
	super      string
	access     uint16
	interfaces []string
	anns       []Ann
	signature  string
	fields     []*Field
	methods    []*Method
	cp         *pool
}

// NewClass starts a public class extending java.lang.Object
func NewClass(name string) *Class {
	return &Class{
		name:   name,
		super:  "java.lang.Object",
		access: AccPublic | AccSuper,
		cp:     newPool(),
	}
}

// NewInterface starts a public interface
func NewInterface(name string, extends ...string) *Class {
	c := NewClass(name)
	c.access = AccPublic | AccInterface | AccAbstract
	c.interfaces = extends
	return c
}

// Extends sets the superclass; "" emits no superclass
func (c *Class) Extends(super string) *Class { c.super = super; return c }

// Implements adds interfaces
func (c *Class) Implements(ifaces ...string) *Class {
	c.interfaces = append(c.interfaces, ifaces...)
	return c
}

// Access replaces the class access flags
func (c *Class) Access(flags uint16) *Class { c.access = flags; return c }

// Annotate adds class annotations
func (c *Class) Annotate(anns ...Ann) *Class { c.anns = append(c.anns, anns...); return c }

// Signature sets the generic class signature
func (c *Class) Signature(sig string) *Class { c.signature = sig; return c }

// Field adds a field with a dotted type name
func (c *Class) Field(name, typeName string) *Field {
	f := &Field{name: name, desc: descriptorOf(typeName), access: AccPrivate}
	c.fields = append(c.fields, f)
	return f
}

// Method adds a method with a raw JVM descriptor, e.g. "(Ljava/lang/String;)V"
func (c *Class) Method(name, desc string) *Method {
	access := uint16(AccPublic)
	if c.access&AccInterface != 0 {
		access |= AccAbstract
	}
	m := &Method{name: name, desc: desc, access: access, cp: c.cp}
	c.methods = append(c.methods, m)
	return m
}

// Field is a field under construction
type Field struct {
	name     string
	desc     string
	access   uint16
	anns     []Ann
	constant *string
}

// Access replaces the field access flags
func (f *Field) Access(flags uint16) *Field { f.access = flags; return f }

// Constant sets a String ConstantValue and marks the field static final
func (f *Field) Constant(v string) *Field {
	f.constant = &v
	f.access |= AccStatic | AccFinal
	return f
}

// Annotate adds field annotations
func (f *Field) Annotate(anns ...Ann) *Field { f.anns = append(f.anns, anns...); return f }

// Method is a method under construction
type Method struct {
	name   string
	desc   string
	access uint16
	anns   []Ann
	code   *bytes.Buffer
	cp     *pool
}

// Access replaces the method access flags
func (m *Method) Access(flags uint16) *Method { m.access = flags; return m }

// Annotate adds method annotations
func (m *Method) Annotate(anns ...Ann) *Method { m.anns = append(m.anns, anns...); return m }

func (m *Method) emit(b ...byte) *Method {
	if m.code == nil {
		m.code = &bytes.Buffer{}
		m.access &^= AccAbstract
	}
	m.code.Write(b)
	return m
}

func (m *Method) emitIndex(op byte, idx uint16) *Method {
	return m.emit(op, byte(idx>>8), byte(idx))
}

// Aload emits aload <n>
func (m *Method) Aload(n byte) *Method {
	if n <= 3 {
		return m.emit(0x2a + n)
	}
	return m.emit(0x19, n)
}

// Ldc pushes a string constant, using ldc_w when the index needs it
func (m *Method) Ldc(s string) *Method {
	idx := m.cp.str(s)
	if idx <= 0xff {
		return m.emit(0x12, byte(idx))
	}
	return m.emitIndex(0x13, idx)
}

// Iconst emits iconst_<n> for 0..5
func (m *Method) Iconst(n byte) *Method { return m.emit(0x03 + n) }

// GetStatic pushes a static field
func (m *Method) GetStatic(owner, name, typeName string) *Method {
	return m.emitIndex(0xb2, m.cp.memberRef(9, owner, name, descriptorOf(typeName)))
}

// GetField pushes an instance field of the receiver on the stack
func (m *Method) GetField(owner, name, typeName string) *Method {
	return m.emitIndex(0xb4, m.cp.memberRef(9, owner, name, descriptorOf(typeName)))
}

// InvokeVirtual emits invokevirtual
func (m *Method) InvokeVirtual(owner, name, desc string) *Method {
	return m.emitIndex(0xb6, m.cp.memberRef(10, owner, name, desc))
}

// InvokeSpecial emits invokespecial
func (m *Method) InvokeSpecial(owner, name, desc string) *Method {
	return m.emitIndex(0xb7, m.cp.memberRef(10, owner, name, desc))
}

// InvokeStatic emits invokestatic
func (m *Method) InvokeStatic(owner, name, desc string) *Method {
	return m.emitIndex(0xb8, m.cp.memberRef(10, owner, name, desc))
}

// InvokeInterface emits invokeinterface with the argument slot count derived from desc
func (m *Method) InvokeInterface(owner, name, desc string) *Method {
	idx := m.cp.memberRef(11, owner, name, desc)
	return m.emit(0xb9, byte(idx>>8), byte(idx), byte(argSlots(desc)+1), 0)
}

// InvokeDynamic emits invokedynamic against bootstrap method 0
func (m *Method) InvokeDynamic(name, desc string) *Method {
	idx := m.cp.invokeDynamic(name, desc)
	return m.emit(0xba, byte(idx>>8), byte(idx), 0, 0)
}

// TableSwitch emits a tableswitch over low..high with all targets at default
func (m *Method) TableSwitch(low, high int32) *Method {
	m.emit(0xaa)
	for m.code.Len()%4 != 0 {
		m.emit(0)
	}
	m.emit(u4(0)...)
	m.emit(u4(uint32(low))...)
	m.emit(u4(uint32(high))...)
	for i := low; i <= high; i++ {
		m.emit(u4(0)...)
	}
	return m
}

// Pop emits pop
func (m *Method) Pop() *Method { return m.emit(0x57) }

// Return emits return
func (m *Method) Return() *Method { return m.emit(0xb1) }

// AReturn emits areturn
func (m *Method) AReturn() *Method { return m.emit(0xb0) }

// Raw appends raw bytecode
func (m *Method) Raw(b ...byte) *Method { return m.emit(b...) }

// Bytes renders the class file
func (c *Class) Bytes() []byte {
	var body bytes.Buffer
	cp := c.cp

	w2(&body, c.access)
	w2(&body, cp.class(c.name))
	if c.super == "" {
		w2(&body, 0)
	} else {
		w2(&body, cp.class(c.super))
	}
	w2(&body, uint16(len(c.interfaces)))
	for _, i := range c.interfaces {
		w2(&body, cp.class(i))
	}

	w2(&body, uint16(len(c.fields)))
	for _, f := range c.fields {
		w2(&body, f.access)
		w2(&body, cp.utf8(f.name))
		w2(&body, cp.utf8(f.desc))
		attrs := annotationAttrs(cp, f.anns)
		if f.constant != nil {
			attrs = append(attrs, attr{name: "ConstantValue", body: u2(cp.str(*f.constant))})
		}
		writeAttrs(&body, cp, attrs)
	}

	w2(&body, uint16(len(c.methods)))
	for _, m := range c.methods {
		w2(&body, m.access)
		w2(&body, cp.utf8(m.name))
		w2(&body, cp.utf8(m.desc))
		attrs := annotationAttrs(cp, m.anns)
		if m.code != nil {
			var code bytes.Buffer
			w2(&code, 8) // max_stack
			w2(&code, 8) // max_locals
			w4(&code, uint32(m.code.Len()))
			code.Write(m.code.Bytes())
			w2(&code, 0) // exception table
			w2(&code, 0) // attributes
			attrs = append(attrs, attr{name: "Code", body: code.Bytes()})
		}
		writeAttrs(&body, cp, attrs)
	}

	attrs := annotationAttrs(cp, c.anns)
	if c.signature != "" {
		attrs = append(attrs, attr{name: "Signature", body: u2(cp.utf8(c.signature))})
	}
	writeAttrs(&body, cp, attrs)

	var out bytes.Buffer
	w4(&out, 0xCAFEBABE)
	w2(&out, 0)  // minor
	w2(&out, 61) // Java 17
	cp.write(&out)
	out.Write(body.Bytes())
	return out.Bytes()
}

type attr struct {
	name string
	body []byte
}

func writeAttrs(w *bytes.Buffer, cp *pool, attrs []attr) {
	w2(w, uint16(len(attrs)))
	for _, a := range attrs {
		w2(w, cp.utf8(a.name))
		w4(w, uint32(len(a.body)))
		w.Write(a.body)
	}
}

func annotationAttrs(cp *pool, anns []Ann) []attr {
	var visible, invisible []Ann
	for _, a := range anns {
		if a.Invisible {
			invisible = append(invisible, a)
		} else {
			visible = append(visible, a)
		}
	}
	var out []attr
	if len(visible) > 0 {
		out = append(out, attr{name: "RuntimeVisibleAnnotations", body: annotationsBody(cp, visible)})
	}
	if len(invisible) > 0 {
		out = append(out, attr{name: "RuntimeInvisibleAnnotations", body: annotationsBody(cp, invisible)})
	}
	return out
}

func annotationsBody(cp *pool, anns []Ann) []byte {
	var b bytes.Buffer
	w2(&b, uint16(len(anns)))
	for i := range anns {
		writeAnnotation(&b, cp, &anns[i])
	}
	return b.Bytes()
}

func writeAnnotation(b *bytes.Buffer, cp *pool, a *Ann) {
	w2(b, cp.utf8(descriptorOf(a.Type)))
	w2(b, uint16(len(a.Elems)))
	for _, e := range a.Elems {
		w2(b, cp.utf8(e.Name))
		writeValue(b, cp, e.value)
	}
}

func writeValue(b *bytes.Buffer, cp *pool, v ev) {
	b.WriteByte(v.tag)
	switch v.tag {
	case 's':
		w2(b, cp.utf8(v.str))
	case 'I', 'Z', 'B', 'C', 'S':
		w2(b, cp.integer(v.num))
	case 'J':
		w2(b, cp.long(int64(v.num)))
	case 'e':
		w2(b, cp.utf8(descriptorOf(v.enum)))
		w2(b, cp.utf8(v.str))
	case 'c':
		w2(b, cp.utf8(descriptorOf(v.str)))
	case '@':
		writeAnnotation(b, cp, v.ann)
	case '[':
		w2(b, uint16(len(v.elems)))
		for _, e := range v.elems {
			writeValue(b, cp, e)
		}
	default:
		panic(fmt.Sprintf("classfiletest: unsupported element tag %q", v.tag))
	}
}

// descriptorOf turns a dotted Java type name into a field descriptor
func descriptorOf(typeName string) string {
	dims := 0
	for strings.HasSuffix(typeName, "[]") {
		typeName = strings.TrimSuffix(typeName, "[]")
		dims++
	}
	prefix := strings.Repeat("[", dims)
	switch typeName {
	case "byte":
		return prefix + "B"
	case "char":
		return prefix + "C"
	case "double":
		return prefix + "D"
	case "float":
		return prefix + "F"
	case "int":
		return prefix + "I"
	case "long":
		return prefix + "J"
	case "short":
		return prefix + "S"
	case "boolean":
		return prefix + "Z"
	case "void":
		return "V"
	}
	return prefix + "L" + internalName(typeName) + ";"
}

// Descriptor builds a method descriptor from dotted type names
func Descriptor(ret string, params ...string) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(descriptorOf(p))
	}
	b.WriteByte(')')
	b.WriteString(descriptorOf(ret))
	return b.String()
}

func internalName(dotted string) string {
	return strings.ReplaceAll(dotted, ".", "/")
}

// argSlots counts the local slots taken by the parameters of desc
func argSlots(desc string) int {
	slots := 0
	for i := 1; i < len(desc) && desc[i] != ')'; i++ {
		switch desc[i] {
		case 'J', 'D':
			slots += 2
		case 'L':
			slots++
			i += strings.IndexByte(desc[i:], ';')
		case '[':
			for desc[i] == '[' {
				i++
			}
			if desc[i] == 'L' {
				i += strings.IndexByte(desc[i:], ';')
			}
			slots++
		default:
			slots++
		}
	}
	return slots
}

type pool struct {
	buf   bytes.Buffer
	next  uint16
	index map[string]uint16
}

func newPool() *pool {
	return &pool{next: 1, index: make(map[string]uint16)}
}

func (p *pool) add(key string, slots uint16, entry []byte) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := p.next
	p.buf.Write(entry)
	p.next += slots
	p.index[key] = idx
	return idx
}

func (p *pool) utf8(s string) uint16 {
	enc := modifiedUTF8(s)
	entry := append([]byte{1}, u2(uint16(len(enc)))...)
	return p.add("u:"+s, 1, append(entry, enc...))
}

func (p *pool) integer(v int32) uint16 {
	return p.add(fmt.Sprintf("i:%d", v), 1, append([]byte{3}, u4(uint32(v))...))
}

func (p *pool) long(v int64) uint16 {
	entry := append([]byte{5}, u4(uint32(uint64(v)>>32))...)
	return p.add(fmt.Sprintf("l:%d", v), 2, append(entry, u4(uint32(v))...))
}

func (p *pool) class(dotted string) uint16 {
	name := p.utf8(internalName(dotted))
	return p.add("c:"+dotted, 1, append([]byte{7}, u2(name)...))
}

func (p *pool) str(s string) uint16 {
	u := p.utf8(s)
	return p.add("s:"+s, 1, append([]byte{8}, u2(u)...))
}

func (p *pool) nameAndType(name, desc string) uint16 {
	n, d := p.utf8(name), p.utf8(desc)
	entry := append([]byte{12}, u2(n)...)
	return p.add("nt:"+name+":"+desc, 1, append(entry, u2(d)...))
}

func (p *pool) memberRef(tag byte, owner, name, desc string) uint16 {
	c := p.class(owner)
	nt := p.nameAndType(name, desc)
	entry := append([]byte{tag}, u2(c)...)
	return p.add(fmt.Sprintf("m%d:%s.%s%s", tag, owner, name, desc), 1, append(entry, u2(nt)...))
}

func (p *pool) invokeDynamic(name, desc string) uint16 {
	nt := p.nameAndType(name, desc)
	entry := append([]byte{18}, u2(0)...)
	return p.add("indy:"+name+desc, 1, append(entry, u2(nt)...))
}

func (p *pool) write(w *bytes.Buffer) {
	w2(w, p.next)
	w.Write(p.buf.Bytes())
}

func modifiedUTF8(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
		default:
			out = append(out, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
		}
	}
	return out
}

func u2(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func u4(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func w2(w *bytes.Buffer, v uint16) { w.Write(u2(v)) }

func w4(w *bytes.Buffer, v uint32) { w.Write(u4(v)) }
