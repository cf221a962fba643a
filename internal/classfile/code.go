package classfile

import (
	"encoding/binary"
	"fmt"
)

// Opcodes the scanner interprets; everything else is only measured
const (
	opLdc             = 0x12
	opLdcW            = 0x13
	opGetstatic       = 0xb2
	opInvokevirtual   = 0xb6
	opInvokespecial   = 0xb7
	opInvokestatic    = 0xb8
	opInvokeinterface = 0xb9
	opInvokedynamic   = 0xba
	opTableswitch     = 0xaa
	opLookupswitch    = 0xab
	opWide            = 0xc4
	opIinc            = 0x84
)

// maxTrackedArgs bounds the operand window kept between two calls
const maxTrackedArgs = 8

// instructionLength returns the fixed length of an opcode, or 0 for the
// variable-length ones (switches, wide) and -1 for undefined opcodes
func instructionLength(op byte) int {
	switch {
	case op <= 0x0f:
		return 1
	case op == 0x10: // bipush
		return 2
	case op == 0x11: // sipush
		return 3
	case op == opLdc:
		return 2
	case op == opLdcW, op == 0x14: // ldc_w, ldc2_w
		return 3
	case op >= 0x15 && op <= 0x19: // xload idx
		return 2
	case op >= 0x1a && op <= 0x35:
		return 1
	case op >= 0x36 && op <= 0x3a: // xstore idx
		return 2
	case op >= 0x3b && op <= 0x83:
		return 1
	case op == opIinc:
		return 3
	case op >= 0x85 && op <= 0x98:
		return 1
	case op >= 0x99 && op <= 0xa8: // if*, goto, jsr
		return 3
	case op == 0xa9: // ret
		return 2
	case op == opTableswitch, op == opLookupswitch:
		return 0
	case op >= 0xac && op <= 0xb1: // returns
		return 1
	case op >= 0xb2 && op <= 0xb8: // field access, invokevirtual/special/static
		return 3
	case op == opInvokeinterface, op == opInvokedynamic:
		return 5
	case op == 0xbb: // new
		return 3
	case op == 0xbc: // newarray
		return 2
	case op == 0xbd: // anewarray
		return 3
	case op == 0xbe, op == 0xbf: // arraylength, athrow
		return 1
	case op == 0xc0, op == 0xc1: // checkcast, instanceof
		return 3
	case op == 0xc2, op == 0xc3: // monitorenter/exit
		return 1
	case op == opWide:
		return 0
	case op == 0xc5: // multianewarray
		return 4
	case op == 0xc6, op == 0xc7: // ifnull, ifnonnull
		return 3
	case op == 0xc8, op == 0xc9: // goto_w, jsr_w
		return 5
	}
	return -1
}

// scanCode walks the bytecode of one method and records every call site with
// the operand values pushed since the previous call
func scanCode(code []byte, cp constantPool) ([]CallSite, error) {
	var calls []CallSite
	var window []Arg

	push := func(a Arg) {
		if len(window) == maxTrackedArgs {
			window = window[1:]
		}
		window = append(window, a)
	}

	for pc := 0; pc < len(code); {
		op := code[pc]
		n := instructionLength(op)
		switch {
		case n < 0:
			return nil, fmt.Errorf("undefined opcode 0x%02x at pc %d", op, pc)
		case n == 0:
			var err error
			n, err = variableLength(code, pc)
			if err != nil {
				return nil, err
			}
		}
		if pc+n > len(code) {
			return nil, fmt.Errorf("truncated instruction 0x%02x at pc %d", op, pc)
		}

		switch op {
		case opLdc, opLdcW:
			idx := uint16(code[pc+1])
			if op == opLdcW {
				idx = binary.BigEndian.Uint16(code[pc+1:])
			}
			if s, ok := cp.stringConstant(idx); ok {
				push(Arg{Kind: ArgLiteral, Value: s})
			} else {
				push(Arg{Kind: ArgComputed})
			}
		case opGetstatic:
			owner, name, _, _, ok := cp.memberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if !ok {
				return nil, fmt.Errorf("invalid field reference at pc %d", pc)
			}
			push(Arg{Kind: ArgField, Value: owner + "#" + name})
		case opInvokevirtual, opInvokespecial, opInvokestatic, opInvokeinterface:
			owner, name, desc, iface, ok := cp.memberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if !ok {
				return nil, fmt.Errorf("invalid method reference at pc %d", pc)
			}
			args := make([]Arg, len(window))
			copy(args, window)
			calls = append(calls, CallSite{
				Owner:      owner,
				Name:       name,
				Descriptor: desc,
				Interface:  iface || op == opInvokeinterface,
				Args:       args,
			})
			window = window[:0]
			if _, ret, err := ParseMethodDescriptor(desc); err == nil && ret != "void" {
				push(Arg{Kind: ArgComputed})
			}
		case opInvokedynamic:
			// lambdas and string concatenation produce values we cannot follow
			if _, _, ok := cp.invokeDynamic(binary.BigEndian.Uint16(code[pc+1:])); !ok {
				return nil, fmt.Errorf("invalid invokedynamic reference at pc %d", pc)
			}
			push(Arg{Kind: ArgComputed})
		}
		pc += n
	}
	return calls, nil
}

func variableLength(code []byte, pc int) (int, error) {
	switch code[pc] {
	case opWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("truncated wide at pc %d", pc)
		}
		if code[pc+1] == opIinc {
			return 6, nil
		}
		return 4, nil
	case opTableswitch, opLookupswitch:
		// operands start at the next 4-byte boundary of the method code
		start := (pc + 4) &^ 3
		if start+12 > len(code) {
			return 0, fmt.Errorf("truncated switch at pc %d", pc)
		}
		// offsets are counted in int64 so hostile bounds cannot wrap
		var n int64
		if code[pc] == opTableswitch {
			low := int64(int32(binary.BigEndian.Uint32(code[start+4:])))
			high := int64(int32(binary.BigEndian.Uint32(code[start+8:])))
			if high < low {
				return 0, fmt.Errorf("tableswitch high < low at pc %d", pc)
			}
			n = int64(start-pc) + 12 + (high-low+1)*4
		} else {
			npairs := int64(int32(binary.BigEndian.Uint32(code[start+4:])))
			if npairs < 0 {
				return 0, fmt.Errorf("negative lookupswitch pairs at pc %d", pc)
			}
			n = int64(start-pc) + 8 + npairs*8
		}
		if n <= 0 || n > int64(len(code)-pc) {
			return 0, fmt.Errorf("truncated switch at pc %d", pc)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("opcode 0x%02x has no variable length", code[pc])
}
