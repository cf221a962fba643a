// Package marker recognizes framework markers (annotations, supertypes, call
// sites) on class descriptors and turns them into typed connection roles.
package marker

import (
	"sort"
	"strings"
)

// Kind is the stable tag of a marker
type Kind string

const (
	KindRestEndpoint Kind = "rest-endpoint"
	KindRestClient   Kind = "rest-client"
	KindWSEndpoint   Kind = "ws-endpoint"
	KindWSClient     Kind = "ws-client"
	KindMQListener   Kind = "mq-listener"
	KindMQSender     Kind = "mq-sender"
	KindRepository   Kind = "repository"
	KindEntity       Kind = "entity"
	KindScheduled    Kind = "scheduled"
)

// Kinds lists every marker kind in presentation order
var Kinds = []Kind{
	KindRestEndpoint, KindRestClient, KindWSEndpoint, KindWSClient, KindMQListener, KindMQSender,
	KindRepository, KindEntity, KindScheduled,
}

// Attribute keys
const (
	AttrRoute       = "route"
	AttrVerb        = "verb"
	AttrDestination = "destination"
	AttrEntityType  = "entity-type"
	AttrBroker      = "broker"   // jms, kafka, rabbit
	AttrExchange    = "exchange" // rabbit only
	AttrClient      = "client"   // feign, rest-template, web-client
	AttrTarget      = "target"   // remote host or service name of a REST client
	AttrTable       = "table"
	AttrEngine      = "engine" // jpa, mongo, jdbc
	AttrSchedule    = "schedule"
)

// Unresolved marks an attribute whose value is not known statically
const Unresolved = "unresolved"

// VerbAny matches every HTTP verb
const VerbAny = "*"

// Marker is one recognized pattern on a class or method
type Marker struct {
	Kind    Kind              `json:"kind"`
	Rule    string            `json:"rule"`
	Element string            `json:"element"` // class name, or class#method(descriptor)
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// Attr returns an attribute value, or "" when absent
func (m Marker) Attr(key string) string {
	return m.Attrs[key]
}

// key renders the marker as a comparable string for deduplication
func (m Marker) key() string {
	keys := make([]string, 0, len(m.Attrs))
	for k := range m.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(string(m.Kind))
	b.WriteByte('|')
	b.WriteString(m.Element)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m.Attrs[k])
	}
	return b.String()
}

// KindsOf returns the distinct kinds of ms, in Kinds order
func KindsOf(ms []Marker) []Kind {
	seen := make(map[Kind]bool, len(ms))
	for _, m := range ms {
		seen[m.Kind] = true
	}
	var out []Kind
	for _, k := range Kinds {
		if seen[k] {
			out = append(out, k)
		}
	}
	return out
}
