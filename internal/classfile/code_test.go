package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/connviz/internal/classfile"
	cft "github.com/zheng/connviz/internal/classfile/classfiletest"
)

const (
	jmsTemplate  = "org.springframework.jms.core.JmsTemplate"
	restTemplate = "org.springframework.web.client.RestTemplate"
)

func TestCallSiteOperands(t *testing.T) {
	b := cft.NewClass("app.OrderPublisher")
	b.Method("publish", cft.Descriptor("void", "java.lang.Object")).
		Aload(0).
		GetField("app.OrderPublisher", "jms", jmsTemplate).
		Ldc("orders-queue").
		Aload(1).
		InvokeVirtual(jmsTemplate, "convertAndSend", cft.Descriptor("void", "java.lang.String", "java.lang.Object")).
		Aload(0).
		GetField("app.OrderPublisher", "jms", jmsTemplate).
		GetStatic("app.Queues", "AUDIT", "java.lang.String").
		Aload(1).
		InvokeVirtual(jmsTemplate, "convertAndSend", cft.Descriptor("void", "java.lang.String", "java.lang.Object")).
		Return()

	cd, err := classfile.Parse("OrderPublisher.class", b.Bytes())
	require.NoError(t, err)
	calls := cd.Methods[0].Calls
	require.Len(t, calls, 2)

	first := calls[0]
	assert.Equal(t, jmsTemplate, first.Owner)
	assert.Equal(t, "convertAndSend", first.Name)
	assert.False(t, first.Interface)
	assert.Equal(t, []classfile.Arg{{Kind: classfile.ArgLiteral, Value: "orders-queue"}}, first.Args)

	second := calls[1]
	assert.Equal(t, []classfile.Arg{{Kind: classfile.ArgField, Value: "app.Queues#AUDIT"}}, second.Args)
}

func TestCallSiteComputedArgs(t *testing.T) {
	b := cft.NewClass("app.Client")
	b.Method("call", cft.Descriptor("void")).
		Aload(0).
		InvokeVirtual("app.Client", "baseUrl", cft.Descriptor("java.lang.String")).
		InvokeDynamic("makeConcatWithConstants", cft.Descriptor("java.lang.String", "java.lang.String")).
		Ldc("x").
		InvokeInterface("app.Sink", "accept", cft.Descriptor("void", "java.lang.String", "java.lang.String")).
		Return()

	cd, err := classfile.Parse("Client.class", b.Bytes())
	require.NoError(t, err)
	calls := cd.Methods[0].Calls
	require.Len(t, calls, 2)

	assert.Empty(t, calls[0].Args)
	assert.Equal(t, "baseUrl", calls[0].Name)

	accept := calls[1]
	assert.True(t, accept.Interface)
	assert.Equal(t, []classfile.Arg{
		{Kind: classfile.ArgComputed},
		{Kind: classfile.ArgComputed},
		{Kind: classfile.ArgLiteral, Value: "x"},
	}, accept.Args)
}

func TestCallSiteAfterSwitch(t *testing.T) {
	b := cft.NewClass("app.Router")
	b.Method("route", cft.Descriptor("void", "int")).
		Iconst(1).
		TableSwitch(0, 3).
		Ldc("http://inventory/items").
		InvokeVirtual(restTemplate, "getForObject", cft.Descriptor("java.lang.Object", "java.lang.String", "java.lang.Class", "java.lang.Object[]")).
		Pop().
		Return()

	cd, err := classfile.Parse("Router.class", b.Bytes())
	require.NoError(t, err)
	calls := cd.Methods[0].Calls
	require.Len(t, calls, 1)
	assert.Equal(t, "getForObject", calls[0].Name)
	assert.Equal(t, []classfile.Arg{{Kind: classfile.ArgLiteral, Value: "http://inventory/items"}}, calls[0].Args)
}

func TestInvalidBytecode(t *testing.T) {
	b := cft.NewClass("app.Bad")
	b.Method("f", cft.Descriptor("void")).Raw(0xfe)

	_, err := classfile.Parse("Bad.class", b.Bytes())
	require.Error(t, err)
	assert.ErrorIs(t, err, classfile.ErrMalformed)
	assert.Contains(t, err.Error(), "invalid bytecode")
}

func TestTruncatedInstruction(t *testing.T) {
	b := cft.NewClass("app.Short")
	b.Method("f", cft.Descriptor("void")).Raw(0xb6, 0x00)

	_, err := classfile.Parse("Short.class", b.Bytes())
	assert.ErrorIs(t, err, classfile.ErrMalformed)
}

func TestHostileSwitchBounds(t *testing.T) {
	pad := []byte{0, 0, 0}
	cases := []struct {
		name string
		code []byte
	}{
		{"tableswitch near max range", concat([]byte{0xaa}, pad, u4(0), u4(0), u4(0x7fffffff))},
		{"tableswitch full int32 range", concat([]byte{0xaa}, pad, u4(0), u4(0x80000000), u4(0x7fffffff))},
		{"tableswitch past code end", concat([]byte{0xaa}, pad, u4(0), u4(0), u4(4))},
		{"lookupswitch max pairs", concat([]byte{0xab}, pad, u4(0), u4(0x7fffffff))},
		{"lookupswitch past code end", concat([]byte{0xab}, pad, u4(0), u4(2), u4(1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := cft.NewClass("app.Switch")
			b.Method("f", cft.Descriptor("void", "int")).Raw(tc.code...)

			var err error
			require.NotPanics(t, func() {
				_, err = classfile.Parse("Switch.class", b.Bytes())
			})
			assert.ErrorIs(t, err, classfile.ErrMalformed)
		})
	}
}

func u4(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
