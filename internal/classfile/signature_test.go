package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorToName(t *testing.T) {
	cases := map[string]string{
		"I":                   "int",
		"Ljava/lang/String;":  "java.lang.String",
		"[[J":                 "long[][]",
		"[Lapp/Outer$Inner;":  "app.Outer$Inner[]",
		"Lorg/example/Order;": "org.example.Order",
		"Z":                   "boolean",
	}
	for desc, want := range cases {
		got, err := DescriptorToName(desc)
		require.NoError(t, err, desc)
		assert.Equal(t, want, got, desc)
	}

	for _, bad := range []string{"", "L", "Ljava/lang/String", "Q", "[V", "II"} {
		_, err := DescriptorToName(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	params, ret, err := ParseMethodDescriptor("(Ljava/lang/String;[IJ)Ljava/util/List;")
	require.NoError(t, err)
	assert.Equal(t, []string{"java.lang.String", "int[]", "long"}, params)
	assert.Equal(t, "java.util.List", ret)

	params, ret, err = ParseMethodDescriptor("()V")
	require.NoError(t, err)
	assert.Empty(t, params)
	assert.Equal(t, "void", ret)

	for _, bad := range []string{"", "V", "(V)V", "(I", "(I)"} {
		_, _, err := ParseMethodDescriptor(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseClassSignature(t *testing.T) {
	t.Run("type parameters and wildcards", func(t *testing.T) {
		sig := "<T:Ljava/lang/Object;ID::Ljava/io/Serializable;>Ljava/lang/Object;" +
			"Lorg/springframework/data/repository/Repository<TT;*>;" +
			"Ljava/util/function/Function<-Ljava/lang/String;+[Ljava/lang/Number;>;"
		refs, err := ParseClassSignature(sig)
		require.NoError(t, err)
		require.Len(t, refs, 3)
		assert.Equal(t, "java.lang.Object", refs[0].Name)
		assert.Equal(t, []TypeRef{{Name: "T", Var: true}, {Name: "?", Var: true}}, refs[1].Args)
		assert.Equal(t, []TypeRef{{Name: "java.lang.String"}, {Name: "java.lang.Number[]"}}, refs[2].Args)
	})

	t.Run("inner class of parameterized outer", func(t *testing.T) {
		refs, err := ParseClassSignature("Lapp/Outer<Ljava/lang/String;>.Inner;")
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "app.Outer$Inner", refs[0].Name)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, bad := range []string{"Ljava/lang/Object", "<T>Ljava/lang/Object;", "Lapp/X<Q;>;"} {
			_, err := ParseClassSignature(bad)
			assert.Error(t, err, bad)
		}
	})
}

func TestDecodeModifiedUTF8(t *testing.T) {
	s, ok := decodeModifiedUTF8([]byte{0xC0, 0x80, 'a'})
	require.True(t, ok)
	assert.Equal(t, "\x00a", s)

	// U+1F600 as a CESU-8 surrogate pair
	s, ok = decodeModifiedUTF8([]byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80})
	require.True(t, ok)
	assert.Equal(t, "\U0001F600", s)

	_, ok = decodeModifiedUTF8([]byte{0x00})
	assert.False(t, ok)
	_, ok = decodeModifiedUTF8([]byte{0xC3})
	assert.False(t, ok)
}

func TestInstructionLength(t *testing.T) {
	assert.Equal(t, 1, instructionLength(0x00))
	assert.Equal(t, 2, instructionLength(opLdc))
	assert.Equal(t, 3, instructionLength(opInvokevirtual))
	assert.Equal(t, 5, instructionLength(opInvokeinterface))
	assert.Equal(t, 0, instructionLength(opTableswitch))
	assert.Equal(t, -1, instructionLength(0xca))

	n, err := variableLength([]byte{opWide, opIinc, 0, 1, 0, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	// lookupswitch at pc 1: opcode, two padding bytes, default, npairs=1, one pair
	code := []byte{0x00, opLookupswitch, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 5, 0, 0, 0, 0}
	n, err = variableLength(code, 1)
	require.NoError(t, err)
	assert.Equal(t, 19, n)
}
