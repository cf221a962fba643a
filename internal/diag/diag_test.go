package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarnings(t *testing.T) {
	ws := Warnings{
		Duplicate("app.Orders", "roles differ"),
		Malformed("b.class", errors.New("bad magic")),
		Unresolved("app.Sender", "no listener for %q", "orders-queue"),
		Malformed("a.class", errors.New("truncated")),
	}

	assert.Equal(t, 2, ws.Count(MalformedArtifact))
	assert.Equal(t, 1, ws.Count(DuplicateIdentity))
	assert.Equal(t, 0, ws.Count(ConfigurationError))

	ws.Sort()
	assert.Equal(t, DuplicateIdentity, ws[0].Kind)
	assert.Equal(t, "a.class", ws[1].Subject)
	assert.Equal(t, "b.class", ws[2].Subject)
	assert.Equal(t, UnresolvedReference, ws[3].Kind)

	unresolved := ws.OfKind(UnresolvedReference)
	assert.Len(t, unresolved, 1)
	assert.Equal(t, `no listener for "orders-queue"`, unresolved[0].Message)
	assert.Equal(t, `[info] UnresolvedReference app.Sender: no listener for "orders-queue"`, unresolved[0].String())
}
