package export

import (
	"strconv"
	"strings"
)

var (
	pumlRemove  = strings.NewReplacer("*", "", "$", "", "{", "", "}", "", " ", "", "(", "", ")", "", "#", "")
	pumlReplace = strings.NewReplacer("-", ".", "/", ".", ":", ".", "?", ".")
)

// pumlAlias turns a node identity into a PlantUML alias: structural
// characters are dropped, separators become dots, anything else outside
// [A-Za-z0-9_.] becomes an underscore
func pumlAlias(name string) string {
	s := pumlReplace.Replace(pumlRemove.Replace(name))
	var b strings.Builder
	lastDot := false
	for _, r := range s {
		switch {
		case r == '.':
			if lastDot {
				continue
			}
			lastDot = true
			b.WriteRune(r)
			continue
		case r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		lastDot = false
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "_"
	}
	return out
}

// makeNodeID creates a valid Mermaid node ID
func makeNodeID(name string) string {
	id := pumlAlias(name)
	return strings.ReplaceAll(id, ".", "_")
}

// aliases hands out unique, sanitized names for node identities within
// one rendering
type aliases struct {
	sanitize func(string) string
	byID     map[string]string
	taken    map[string]bool
}

func newAliases(sanitize func(string) string) *aliases {
	return &aliases{
		sanitize: sanitize,
		byID:     make(map[string]string),
		taken:    make(map[string]bool),
	}
}

func (a *aliases) of(id string) string {
	if alias, ok := a.byID[id]; ok {
		return alias
	}
	base := a.sanitize(id)
	alias := base
	for n := 2; a.taken[alias]; n++ {
		alias = base + "_" + strconv.Itoa(n)
	}
	a.taken[alias] = true
	a.byID[id] = alias
	return alias
}
