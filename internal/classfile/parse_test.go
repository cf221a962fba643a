package classfile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/connviz/internal/classfile"
	cft "github.com/zheng/connviz/internal/classfile/classfiletest"
)

func TestParseClassStructure(t *testing.T) {
	b := cft.NewClass("service1.api.http.MainController").
		Implements("java.io.Serializable").
		Annotate(
			cft.A("org.springframework.web.bind.annotation.RestController"),
			cft.A("org.springframework.web.bind.annotation.RequestMapping", cft.Strs("value", "/api")),
		)
	b.Field("QUEUE", "java.lang.String").Access(cft.AccPublic).Constant("orders-queue")
	b.Field("client", "org.springframework.web.client.RestTemplate").
		Annotate(cft.A("org.springframework.beans.factory.annotation.Autowired"))
	b.Method("getOrders", cft.Descriptor("java.util.List", "java.lang.String", "int")).
		Annotate(cft.A("org.springframework.web.bind.annotation.GetMapping", cft.Strs("value", "/orders"))).
		Aload(0).AReturn()

	cd, err := classfile.Parse("MainController.class", b.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "service1.api.http.MainController", cd.Name)
	assert.Equal(t, "java.lang.Object", cd.Super)
	assert.Equal(t, []string{"java.io.Serializable"}, cd.Interfaces)
	assert.Equal(t, "service1.api.http", cd.Package())
	assert.Equal(t, "MainController", cd.SimpleName())
	assert.Equal(t, "MainController.class", cd.Artifact)
	assert.Equal(t, uint16(61), cd.Version)
	assert.False(t, cd.IsInterface())
	assert.False(t, cd.IsSynthetic())

	require.Len(t, cd.Annotations, 2)
	assert.True(t, cd.Annotations.Has("org.springframework.web.bind.annotation.RestController"))
	rm, ok := cd.Annotations.Find("org.springframework.web.bind.annotation.RequestMapping")
	require.True(t, ok)
	assert.True(t, rm.Visible)
	assert.Equal(t, []string{"/api"}, rm.Strings("value"))

	f, ok := cd.Field("QUEUE")
	require.True(t, ok)
	assert.Equal(t, "java.lang.String", f.Type)
	assert.True(t, f.HasConstant)
	assert.Equal(t, "orders-queue", f.Constant)
	assert.True(t, f.Access.Has(classfile.AccStatic|classfile.AccFinal))
	assert.Equal(t, classfile.VisibilityPublic, f.Visibility)

	client, ok := cd.Field("client")
	require.True(t, ok)
	assert.Equal(t, classfile.VisibilityPrivate, client.Visibility)
	assert.True(t, client.Annotations.Has("org.springframework.beans.factory.annotation.Autowired"))

	require.Len(t, cd.Methods, 1)
	m := cd.Methods[0]
	assert.Equal(t, "getOrders", m.Name)
	assert.Equal(t, []string{"java.lang.String", "int"}, m.Params)
	assert.Equal(t, "java.util.List", m.Return)
	assert.Equal(t, "getOrders(Ljava/lang/String;I)Ljava/util/List;", m.ID())
	gm, ok := m.Annotations.Find("org.springframework.web.bind.annotation.GetMapping")
	require.True(t, ok)
	assert.Equal(t, "/orders", gm.String("value"))
}

func TestParseAnnotationValues(t *testing.T) {
	b := cft.NewClass("app.Listener")
	b.Method("consume", cft.Descriptor("void", "java.lang.String")).
		Annotate(
			cft.A("org.springframework.web.bind.annotation.RequestMapping",
				cft.Strs("path", "/a", "/b"),
				cft.Enums("method", "org.springframework.web.bind.annotation.RequestMethod", "GET", "POST"),
				cft.ClassValue("produces", "java.lang.String"),
				cft.Int("order", 7),
				cft.Long("timeout", 30),
				cft.Bool("required", true),
			),
			cft.A("org.springframework.kafka.annotation.KafkaListener",
				cft.Nested("topicPartitions",
					cft.A("org.springframework.kafka.annotation.TopicPartition", cft.Str("topic", "events")),
				),
			),
			cft.Ann{Type: "app.Internal", Invisible: true},
		).
		Return()

	cd, err := classfile.Parse("Listener.class", b.Bytes())
	require.NoError(t, err)
	require.Len(t, cd.Methods, 1)
	anns := cd.Methods[0].Annotations
	require.Len(t, anns, 3)

	rm := anns[0]
	assert.Equal(t, []string{"/a", "/b"}, rm.Strings("path"))
	assert.Equal(t, []string{"GET", "POST"}, rm.Strings("method"))
	assert.Equal(t, "org.springframework.web.bind.annotation.RequestMethod", rm.Values["method"].Elems[0].EnumType)
	assert.Equal(t, classfile.ValueClass, rm.Values["produces"].Kind)
	assert.Equal(t, "java.lang.String", rm.String("produces"))
	assert.Equal(t, "7", rm.String("order"))
	assert.Equal(t, "30", rm.String("timeout"))
	assert.Equal(t, "true", rm.String("required"))
	assert.Empty(t, rm.Strings("missing"))

	nested := anns[1].Nested("topicPartitions")
	require.Len(t, nested, 1)
	assert.Equal(t, "events", nested[0].String("topic"))
	assert.Empty(t, anns[1].Strings("topicPartitions"))

	assert.Equal(t, "app.Internal", anns[2].Type)
	assert.False(t, anns[2].Visible)
}

func TestParseInterfaceWithSignature(t *testing.T) {
	b := cft.NewInterface("app.repo.UserRepository", "org.springframework.data.repository.CrudRepository").
		Signature("Ljava/lang/Object;Lorg/springframework/data/repository/CrudRepository<Lapp/model/UserEntity;Ljava/lang/String;>;")
	b.Method("findByName", cft.Descriptor("app.model.UserEntity", "java.lang.String"))

	cd, err := classfile.Parse("UserRepository.class", b.Bytes())
	require.NoError(t, err)
	assert.True(t, cd.IsInterface())
	assert.Equal(t, []string{"java.lang.Object", "org.springframework.data.repository.CrudRepository"}, cd.Supertypes())
	require.Len(t, cd.Methods, 1)
	assert.Empty(t, cd.Methods[0].Calls)

	refs, err := classfile.ParseClassSignature(cd.Signature)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "org.springframework.data.repository.CrudRepository", refs[1].Name)
	require.Len(t, refs[1].Args, 2)
	assert.Equal(t, "app.model.UserEntity", refs[1].Args[0].Name)
	assert.Equal(t, "java.lang.String", refs[1].Args[1].Name)
}

func TestParseNonASCIIConstants(t *testing.T) {
	b := cft.NewClass("app.Greeter")
	b.Field("GREETING", "java.lang.String").Constant("grüße€")

	cd, err := classfile.Parse("Greeter.class", b.Bytes())
	require.NoError(t, err)
	f, ok := cd.Field("GREETING")
	require.True(t, ok)
	assert.Equal(t, "grüße€", f.Constant)
}

func TestSyntheticAndAnonymousClasses(t *testing.T) {
	anon, err := classfile.Parse("Outer$1.class", cft.NewClass("app.Outer$1").Bytes())
	require.NoError(t, err)
	assert.True(t, anon.IsSynthetic())

	inner, err := classfile.Parse("Outer$Inner.class", cft.NewClass("app.Outer$Inner").Bytes())
	require.NoError(t, err)
	assert.False(t, inner.IsSynthetic())

	flagged, err := classfile.Parse("Gen.class",
		cft.NewClass("app.Gen").Access(cft.AccPublic|cft.AccSynthetic).Bytes())
	require.NoError(t, err)
	assert.True(t, flagged.IsSynthetic())
}

func TestParseMalformed(t *testing.T) {
	valid := cft.NewClass("app.Valid").Bytes()

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, valid[4:]...)},
		{"truncated header", valid[:6]},
		{"truncated body", valid[:len(valid)-3]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x00)},
		{"unknown constant tag", corruptFirstTag(valid)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cd, err := classfile.Parse("broken.class", tc.data)
			require.Error(t, err)
			assert.Nil(t, cd)
			assert.True(t, errors.Is(err, classfile.ErrMalformed))

			var fe *classfile.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "broken.class", fe.Artifact)
			assert.Contains(t, err.Error(), "broken.class")
		})
	}
}

// corruptFirstTag replaces the tag of constant pool entry #1
func corruptFirstTag(valid []byte) []byte {
	out := append([]byte{}, valid...)
	out[10] = 0xEE
	return out
}
