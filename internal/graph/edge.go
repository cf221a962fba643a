package graph

import (
	"cmp"

	"github.com/zheng/connviz/internal/marker"
)

// EdgeKind is the relation an edge stands for
type EdgeKind string

const (
	EdgeREST       EdgeKind = "rest"       // client -> endpoint
	EdgeWebSocket  EdgeKind = "ws"         // websocket client -> handler
	EdgeMessaging  EdgeKind = "messaging"  // sender -> listener
	EdgeStorage    EdgeKind = "storage"    // repository -> entity
	EdgeDependency EdgeKind = "dependency" // component -> injected component
)

// EdgeKinds lists the edge kinds in presentation order
var EdgeKinds = []EdgeKind{EdgeREST, EdgeWebSocket, EdgeMessaging, EdgeStorage, EdgeDependency}

// demand and supply marker kinds of each relation
var (
	demandKind = map[EdgeKind]marker.Kind{
		EdgeREST:      marker.KindRestClient,
		EdgeWebSocket: marker.KindWSClient,
		EdgeMessaging: marker.KindMQSender,
		EdgeStorage:   marker.KindRepository,
	}
	supplyKind = map[EdgeKind]marker.Kind{
		EdgeREST:      marker.KindRestEndpoint,
		EdgeWebSocket: marker.KindWSEndpoint,
		EdgeMessaging: marker.KindMQListener,
		EdgeStorage:   marker.KindEntity,
	}
)

// Edge is a directed relation between two node identities
type Edge struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Kind  EdgeKind `json:"kind"`
	Label string   `json:"label,omitempty"` // destination, "VERB /route", ws path or table
}

func (e Edge) key() edgeKey {
	return edgeKey{e.From, e.To, e.Kind, e.Label}
}

type edgeKey struct {
	from, to string
	kind     EdgeKind
	label    string
}

func compareEdges(a, b Edge) int {
	return cmp.Or(
		cmp.Compare(a.From, b.From),
		cmp.Compare(a.To, b.To),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Label, b.Label),
	)
}
