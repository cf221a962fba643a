package marker

import (
	"net/url"
	"strings"
)

// JoinPath concatenates a class-level prefix and a method-level path
func JoinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(path, "/")
}

// NormalizeRoute canonicalizes a route for matching: leading slash, no
// trailing slash, no query, duplicate slashes collapsed, and path variables
// ({id}, {id:\d+}) collapsed to {}.
func NormalizeRoute(route string) string {
	if route == Unresolved {
		return Unresolved
	}
	route = strings.TrimSpace(route)
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}

	var b strings.Builder
	b.WriteByte('/')
	depth := 0
	for i := 0; i < len(route); i++ {
		c := route[i]
		switch {
		case c == '{':
			if depth == 0 {
				b.WriteString("{}")
			}
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case depth > 0:
		case c == '/':
			s := b.String()
			if s[len(s)-1] != '/' {
				b.WriteByte('/')
			}
		default:
			b.WriteByte(c)
		}
	}
	out := b.String()
	if len(out) > 1 {
		out = strings.TrimRight(out, "/")
	}
	return out
}

// SplitURL separates an absolute URL into host and path. Relative values are
// returned as a path with an empty host.
func SplitURL(raw string) (host, path string) {
	if !strings.Contains(raw, "://") {
		return "", raw
	}
	// placeholders in the authority are not valid URL syntax
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		rest := raw[strings.Index(raw, "://")+3:]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return rest[:i], rest[i:]
		}
		return rest, ""
	}
	return u.Hostname(), u.Path
}
