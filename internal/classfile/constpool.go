package classfile

import (
	"fmt"
	"math"
	"strconv"
)

// Constant pool tags
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type cpEntry struct {
	tag uint8
	a   uint16 // first index operand
	b   uint16 // second index operand
	num uint64 // raw Integer/Float/Long/Double bits
	str string // decoded Utf8
}

type constantPool []cpEntry

func readConstantPool(r *reader) constantPool {
	count := int(r.u2())
	cp := make(constantPool, count)
	for i := 1; i < count && r.err == nil; i++ {
		tag := r.u1()
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n := int(r.u2())
			raw := r.bytes(n)
			if r.err != nil {
				break
			}
			s, ok := decodeModifiedUTF8(raw)
			if !ok {
				r.fail("invalid modified UTF-8 in constant pool")
				break
			}
			e.str = s
		case tagInteger, tagFloat:
			e.num = uint64(r.u4())
		case tagLong, tagDouble:
			e.num = r.u8()
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.a = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			e.a = r.u2()
			e.b = r.u2()
		case tagMethodHandle:
			e.a = uint16(r.u1())
			e.b = r.u2()
		default:
			r.fail(fmt.Sprintf("unknown constant pool tag %d at index %d", tag, i))
		}
		cp[i] = e
		if tag == tagLong || tag == tagDouble {
			// 8-byte constants take two slots
			i++
		}
	}
	return cp
}

func (cp constantPool) entry(i uint16, tag uint8) (cpEntry, bool) {
	if i == 0 || int(i) >= len(cp) || cp[i].tag != tag {
		return cpEntry{}, false
	}
	return cp[i], true
}

func (cp constantPool) utf8(i uint16) (string, bool) {
	e, ok := cp.entry(i, tagUtf8)
	return e.str, ok
}

// className resolves a CONSTANT_Class to a dotted name. Array classes are
// rendered with their element type, e.g. "java.lang.String[]".
func (cp constantPool) className(i uint16) (string, bool) {
	e, ok := cp.entry(i, tagClass)
	if !ok {
		return "", false
	}
	internal, ok := cp.utf8(e.a)
	if !ok {
		return "", false
	}
	if len(internal) > 0 && internal[0] == '[' {
		name, err := DescriptorToName(internal)
		return name, err == nil
	}
	return InternalToName(internal), true
}

func (cp constantPool) nameAndType(i uint16) (name, desc string, ok bool) {
	e, ok := cp.entry(i, tagNameAndType)
	if !ok {
		return "", "", false
	}
	name, ok1 := cp.utf8(e.a)
	desc, ok2 := cp.utf8(e.b)
	return name, desc, ok1 && ok2
}

// memberRef resolves a Fieldref, Methodref or InterfaceMethodref
func (cp constantPool) memberRef(i uint16) (owner, name, desc string, iface bool, ok bool) {
	if i == 0 || int(i) >= len(cp) {
		return "", "", "", false, false
	}
	e := cp[i]
	switch e.tag {
	case tagFieldref, tagMethodref, tagInterfaceMethodref:
	default:
		return "", "", "", false, false
	}
	owner, ok1 := cp.className(e.a)
	name, desc, ok2 := cp.nameAndType(e.b)
	return owner, name, desc, e.tag == tagInterfaceMethodref, ok1 && ok2
}

// invokeDynamic resolves the name and descriptor of a CONSTANT_InvokeDynamic
func (cp constantPool) invokeDynamic(i uint16) (name, desc string, ok bool) {
	e, ok := cp.entry(i, tagInvokeDynamic)
	if !ok {
		return "", "", false
	}
	return cp.nameAndType(e.b)
}

// stringConstant resolves a CONSTANT_String to its text
func (cp constantPool) stringConstant(i uint16) (string, bool) {
	e, ok := cp.entry(i, tagString)
	if !ok {
		return "", false
	}
	return cp.utf8(e.a)
}

// literal renders a loadable constant (ConstantValue or annotation const) as text
func (cp constantPool) literal(i uint16) (string, bool) {
	if i == 0 || int(i) >= len(cp) {
		return "", false
	}
	e := cp[i]
	switch e.tag {
	case tagInteger:
		return strconv.FormatInt(int64(int32(uint32(e.num))), 10), true
	case tagFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(e.num))), 'g', -1, 32), true
	case tagLong:
		return strconv.FormatInt(int64(e.num), 10), true
	case tagDouble:
		return strconv.FormatFloat(math.Float64frombits(e.num), 'g', -1, 64), true
	case tagString:
		return cp.stringConstant(i)
	case tagUtf8:
		return e.str, true
	}
	return "", false
}
