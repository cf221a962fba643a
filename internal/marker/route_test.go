package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRoute(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"orders", "/orders"},
		{"/orders/", "/orders"},
		{"//api//orders", "/api/orders"},
		{"/orders/{id}", "/orders/{}"},
		{"/orders/{id:\\d+}/items/{itemId}", "/orders/{}/items/{}"},
		{"/search?q=x", "/search"},
		{" /padded ", "/padded"},
		{Unresolved, Unresolved},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeRoute(tc.in), tc.in)
	}
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/api/orders", JoinPath("/api/", "/orders"))
	assert.Equal(t, "/api", JoinPath("/api", ""))
	assert.Equal(t, "orders", JoinPath("", "orders"))
	assert.Equal(t, "/a/b", JoinPath("/a", "b"))
}

func TestSplitURL(t *testing.T) {
	host, path := SplitURL("http://inventory:8080/items/{sku}")
	assert.Equal(t, "inventory", host)
	assert.Equal(t, "/items/{sku}", path)

	host, path = SplitURL("/relative")
	assert.Equal(t, "", host)
	assert.Equal(t, "/relative", path)

	host, path = SplitURL("https://payments.example.com")
	assert.Equal(t, "payments.example.com", host)
	assert.Equal(t, "", path)
}

func TestResolverText(t *testing.T) {
	r := &resolver{literal: true, placeholder: true, properties: map[string]string{"queue": "orders"}}
	assert.Equal(t, "plain", r.text("plain"))
	assert.Equal(t, "orders", r.text("${queue}"))
	assert.Equal(t, "fallback", r.text("${other:fallback}"))
	assert.Equal(t, "pre-orders-post", r.text("pre-${queue}-post"))
	assert.Equal(t, Unresolved, r.text("${other}"))
	assert.Equal(t, Unresolved, r.text("${unterminated"))
	assert.Equal(t, Unresolved, r.text("#{bean.queue}"))
	assert.Equal(t, Unresolved, r.text(""))

	noPlaceholders := &resolver{literal: true}
	assert.Equal(t, Unresolved, noPlaceholders.text("${queue}"))
}
