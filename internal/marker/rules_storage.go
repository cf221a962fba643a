package marker

import (
	"unicode"
	"unicode/utf8"

	"github.com/zheng/connviz/internal/classfile"
)

const annNoRepositoryBean = "org.springframework.data.repository.NoRepositoryBean"

// Spring Data base interfaces and the store they imply ("" when generic)
var springDataBases = map[string]string{
	"org.springframework.data.repository.Repository":                            "",
	"org.springframework.data.repository.CrudRepository":                        "",
	"org.springframework.data.repository.PagingAndSortingRepository":            "",
	"org.springframework.data.repository.ListCrudRepository":                    "",
	"org.springframework.data.repository.ListPagingAndSortingRepository":        "",
	"org.springframework.data.repository.reactive.ReactiveCrudRepository":       "",
	"org.springframework.data.repository.reactive.ReactiveSortingRepository":    "",
	"org.springframework.data.jpa.repository.JpaRepository":                     "jpa",
	"org.springframework.data.mongodb.repository.MongoRepository":               "mongo",
	"org.springframework.data.mongodb.repository.ReactiveMongoRepository":       "mongo",
	"org.springframework.data.r2dbc.repository.R2dbcRepository":                 "r2dbc",
	"org.springframework.data.elasticsearch.repository.ElasticsearchRepository": "elasticsearch",
}

// maxRepositoryDepth bounds the walk through scanned intermediate repositories
const maxRepositoryDepth = 8

// springDataBase finds the Spring Data base interface cd extends, directly
// or through scanned intermediate interfaces
func springDataBase(ctx *Context, cd *classfile.ClassDescriptor) (string, bool) {
	var base string
	found := false
	ctx.supertypes(cd, func(name string, _ *classfile.ClassDescriptor) bool {
		if _, ok := springDataBases[name]; ok {
			base, found = name, true
			return false
		}
		return true
	})
	return base, found
}

// repositoryEntity reads the domain type from the generic signature. A
// scanned intermediate repository is followed; when it only forwards a
// type variable, the nearest concrete argument is used.
func repositoryEntity(ctx *Context, cd *classfile.ClassDescriptor, depth int) string {
	if depth > maxRepositoryDepth || cd.Signature == "" {
		return Unresolved
	}
	refs, err := classfile.ParseClassSignature(cd.Signature)
	if err != nil {
		return Unresolved
	}
	for _, ref := range refs {
		if _, ok := springDataBases[ref.Name]; ok {
			if len(ref.Args) > 0 && !ref.Args[0].Var {
				return ref.Args[0].Name
			}
			return Unresolved
		}
		next, ok := ctx.Lookup(ref.Name)
		if !ok || !next.IsInterface() {
			continue
		}
		if e := repositoryEntity(ctx, next, depth+1); e != Unresolved {
			return e
		}
		for _, arg := range ref.Args {
			if !arg.Var {
				return arg.Name
			}
		}
	}
	return Unresolved
}

func springDataRepositoryRule() Rule {
	return Rule{
		Name:        "spring-data-repository",
		Kind:        KindRepository,
		Scope:       ScopeClass,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			cd := ctx.Class
			if !cd.IsInterface() || cd.Annotations.Has(annNoRepositoryBean) {
				return false
			}
			if cd.Annotations.Has(annRepositoryDefinition) {
				return true
			}
			_, ok := springDataBase(ctx, cd)
			return ok
		},
		Extract: func(ctx *Context) []Attrs {
			cd := ctx.Class
			if def, ok := cd.Annotations.Find(annRepositoryDefinition); ok {
				entity := def.String("domainClass")
				if entity == "" {
					entity = Unresolved
				}
				return one(Attrs{AttrEntityType: entity})
			}
			attrs := Attrs{AttrEntityType: repositoryEntity(ctx, cd, 0)}
			if base, _ := springDataBase(ctx, cd); springDataBases[base] != "" {
				attrs[AttrEngine] = springDataBases[base]
			}
			return one(attrs)
		},
	}
}

func repositoryAnnotationRule() Rule {
	return Rule{
		Name:        "repository-annotation",
		Kind:        KindRepository,
		Scope:       ScopeClass,
		Specificity: 10,
		Match: func(ctx *Context) bool {
			return ctx.Class.Annotations.Has(annRepository)
		},
		Extract: func(ctx *Context) []Attrs {
			return one(Attrs{AttrEntityType: Unresolved})
		},
	}
}

func jpaEntityRule() Rule {
	entityAnns := qualified(persistencePackages, "Entity")
	tableAnns := qualified(persistencePackages, "Table")
	return Rule{
		Name:        "jpa-entity",
		Kind:        KindEntity,
		Scope:       ScopeClass,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			_, ok := ctx.Class.Annotations.FindAny(entityAnns...)
			return ok
		},
		Extract: func(ctx *Context) []Attrs {
			cd := ctx.Class
			entity, _ := cd.Annotations.FindAny(entityAnns...)
			table := entity.String("name")
			if t, ok := cd.Annotations.FindAny(tableAnns...); ok && t.String("name") != "" {
				table = t.String("name")
			}
			if table == "" {
				table = cd.SimpleName()
			}
			return one(Attrs{AttrEntityType: cd.Name, AttrTable: table, AttrEngine: "jpa"})
		},
	}
}

func mongoDocumentRule() Rule {
	return Rule{
		Name:        "mongo-document",
		Kind:        KindEntity,
		Scope:       ScopeClass,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			return ctx.Class.Annotations.Has(annMongoDocument)
		},
		Extract: func(ctx *Context) []Attrs {
			cd := ctx.Class
			doc, _ := cd.Annotations.Find(annMongoDocument)
			collection := firstNonEmpty(doc.String("collection"), doc.String("value"))
			if collection == "" {
				collection = uncapitalize(cd.SimpleName())
			} else {
				collection = ctx.Text(collection)
			}
			return one(Attrs{AttrEntityType: cd.Name, AttrTable: collection, AttrEngine: "mongo"})
		},
	}
}

func tableOnlyRule() Rule {
	entityAnns := qualified(persistencePackages, "Entity")
	tableAnns := append(qualified(persistencePackages, "Table"), annRelationalTable)
	return Rule{
		Name:        "table-only",
		Kind:        KindEntity,
		Scope:       ScopeClass,
		Specificity: 5,
		Match: func(ctx *Context) bool {
			anns := ctx.Class.Annotations
			_, table := anns.FindAny(tableAnns...)
			_, entity := anns.FindAny(entityAnns...)
			return table && !entity
		},
		Extract: func(ctx *Context) []Attrs {
			cd := ctx.Class
			t, _ := cd.Annotations.FindAny(tableAnns...)
			name := firstNonEmpty(t.String("name"), t.String("value"))
			if name == "" {
				name = cd.SimpleName()
			}
			return one(Attrs{AttrEntityType: cd.Name, AttrTable: name, AttrEngine: "jdbc"})
		},
	}
}

func uncapitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
