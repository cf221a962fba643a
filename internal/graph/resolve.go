package graph

import (
	"github.com/zheng/connviz/internal/marker"
)

// relation describes how demand markers of one edge kind find their supply
type relation struct {
	kind EdgeKind
	// key groups markers; marker.Unresolved never matches
	key func(m marker.Marker) string
	// compatible refines a key match
	compatible func(demand, supply marker.Marker) bool
	// label of the edge; supply is nil for a placeholder edge
	label func(demand marker.Marker, supply *marker.Marker) string
	// external names the placeholder for an unmatched demand: the part of
	// its identity after the kind, and its label
	external func(demand marker.Marker) (name, label string)
}

var relations = []relation{
	{
		kind: EdgeREST,
		key:  routeKey,
		compatible: func(d, s marker.Marker) bool {
			return verbsMatch(d.Attr(marker.AttrVerb), s.Attr(marker.AttrVerb))
		},
		label: func(d marker.Marker, _ *marker.Marker) string {
			return restLabel(d)
		},
		external: func(d marker.Marker) (string, string) {
			if t := d.Attr(marker.AttrTarget); t != "" && t != marker.Unresolved {
				return t, t
			}
			return restLabel(d), restLabel(d)
		},
	},
	{
		kind:       EdgeWebSocket,
		key:        routeKey,
		compatible: func(_, _ marker.Marker) bool { return true },
		label: func(d marker.Marker, _ *marker.Marker) string {
			return routeKey(d)
		},
		external: func(d marker.Marker) (string, string) {
			if t := d.Attr(marker.AttrTarget); t != "" && t != marker.Unresolved {
				return t, t
			}
			return routeKey(d), routeKey(d)
		},
	},
	{
		kind:       EdgeMessaging,
		key:        attrKey(marker.AttrDestination),
		compatible: brokersMatch,
		label: func(d marker.Marker, _ *marker.Marker) string {
			return valueOr(d.Attr(marker.AttrDestination))
		},
		// one broker's destination is not another's
		external: func(d marker.Marker) (string, string) {
			dest := d.Attr(marker.AttrDestination)
			if b := d.Attr(marker.AttrBroker); b != "" {
				return b + ":" + dest, dest
			}
			return dest, dest
		},
	},
	{
		kind:       EdgeStorage,
		key:        attrKey(marker.AttrEntityType),
		compatible: func(_, _ marker.Marker) bool { return true },
		label: func(d marker.Marker, s *marker.Marker) string {
			if s != nil && s.Attr(marker.AttrTable) != "" {
				return s.Attr(marker.AttrTable)
			}
			return valueOr(d.Attr(marker.AttrEntityType))
		},
		external: func(d marker.Marker) (string, string) {
			return d.Attr(marker.AttrEntityType), d.Attr(marker.AttrEntityType)
		},
	},
}

func valueOr(v string) string {
	if v == "" {
		return marker.Unresolved
	}
	return v
}

func attrKey(attr string) func(marker.Marker) string {
	return func(m marker.Marker) string {
		return valueOr(m.Attr(attr))
	}
}

func routeKey(m marker.Marker) string {
	route := m.Attr(marker.AttrRoute)
	if route == marker.Unresolved {
		return marker.Unresolved
	}
	return marker.NormalizeRoute(route)
}

func verbOf(m marker.Marker) string {
	if v := m.Attr(marker.AttrVerb); v != "" {
		return v
	}
	return marker.VerbAny
}

func restLabel(m marker.Marker) string {
	return verbOf(m) + " " + routeKey(m)
}

// verbsMatch treats an empty or "*" verb on either side as any verb
func verbsMatch(a, b string) bool {
	return a == "" || b == "" || a == marker.VerbAny || b == marker.VerbAny || a == b
}

// brokersMatch requires the same broker when both sides name one
func brokersMatch(d, s marker.Marker) bool {
	a, b := d.Attr(marker.AttrBroker), s.Attr(marker.AttrBroker)
	return a == "" || b == "" || a == b
}
