package marker

import (
	"strings"

	"github.com/zheng/connviz/internal/classfile"
)

var springVerbMappings = map[string]string{
	springWeb + "GetMapping":    "GET",
	springWeb + "PostMapping":   "POST",
	springWeb + "PutMapping":    "PUT",
	springWeb + "DeleteMapping": "DELETE",
	springWeb + "PatchMapping":  "PATCH",
}

var jaxrsVerbs = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

const (
	restTemplate   = "org.springframework.web.client.RestTemplate"
	restOperations = "org.springframework.web.client.RestOperations"
	webClient      = "org.springframework.web.reactive.function.client.WebClient"
	restClient     = "org.springframework.web.client.RestClient"
	httpMethod     = "org.springframework.http.HttpMethod"
)

// request verbs implied by RestTemplate method names; "" means taken from an
// HttpMethod argument
var restTemplateVerbs = map[string]string{
	"getForObject":    "GET",
	"getForEntity":    "GET",
	"headForHeaders":  "HEAD",
	"postForObject":   "POST",
	"postForEntity":   "POST",
	"postForLocation": "POST",
	"put":             "PUT",
	"patchForObject":  "PATCH",
	"delete":          "DELETE",
	"optionsForAllow": "OPTIONS",
	"exchange":        "",
	"execute":         "",
}

// fluent client verb selectors (WebClient, RestClient)
var fluentVerbs = map[string]string{
	"get":     "GET",
	"post":    "POST",
	"put":     "PUT",
	"patch":   "PATCH",
	"delete":  "DELETE",
	"head":    "HEAD",
	"options": "OPTIONS",
	"method":  "",
}

// mapping is the paths and verbs declared by one request-mapping annotation
type mapping struct {
	paths []string
	verbs []string
}

func annotationPaths(a classfile.Annotation) []string {
	paths := append(a.Strings("value"), a.Strings("path")...)
	if len(paths) == 0 {
		return []string{""}
	}
	return paths
}

func springMapping(anns classfile.Annotations) (mapping, bool) {
	for _, a := range anns {
		if verb, ok := springVerbMappings[a.Type]; ok {
			return mapping{paths: annotationPaths(a), verbs: []string{verb}}, true
		}
		if a.Type == annRequestMapping {
			verbs := a.Strings("method")
			if len(verbs) == 0 {
				verbs = []string{VerbAny}
			}
			return mapping{paths: annotationPaths(a), verbs: verbs}, true
		}
	}
	return mapping{}, false
}

func jaxrsMapping(anns classfile.Annotations) (mapping, bool) {
	var m mapping
	for _, verb := range jaxrsVerbs {
		if _, ok := anns.FindAny(qualified(jaxrsPackages, verb)...); ok {
			m.verbs = append(m.verbs, verb)
		}
	}
	if len(m.verbs) == 0 {
		return mapping{}, false
	}
	m.paths = []string{""}
	if p, ok := anns.FindAny(qualified(jaxrsPackages, "Path")...); ok {
		m.paths = []string{p.String("value")}
	}
	return m, true
}

// classPaths returns the class-level path prefixes of cd
func classPaths(cd *classfile.ClassDescriptor, pathAnnotations ...string) []string {
	if a, ok := cd.Annotations.FindAny(pathAnnotations...); ok {
		return annotationPaths(a)
	}
	return []string{""}
}

// inheritedMapping finds the mapping of ctx.Method on the method itself or,
// failing that, on the same method of a scanned supertype. The declaring
// class is returned for its class-level prefix.
func inheritedMapping(ctx *Context, read func(classfile.Annotations) (mapping, bool)) (mapping, *classfile.ClassDescriptor, bool) {
	if m, ok := read(ctx.Method.Annotations); ok {
		return m, ctx.Class, true
	}
	id := ctx.Method.ID()
	var found mapping
	var owner *classfile.ClassDescriptor
	ctx.supertypes(ctx.Class, func(name string, _ *classfile.ClassDescriptor) bool {
		st, ok := ctx.Lookup(name)
		if !ok {
			return true
		}
		for i := range st.Methods {
			if st.Methods[i].ID() != id {
				continue
			}
			if m, ok := read(st.Methods[i].Annotations); ok {
				found, owner = m, st
				return false
			}
		}
		return true
	})
	return found, owner, owner != nil
}

// routeText resolves placeholders in a route; plain routes are kept as declared
func routeText(ctx *Context, route string) string {
	if strings.Contains(route, "${") || strings.Contains(route, "#{") {
		return ctx.Text(route)
	}
	return route
}

func routeAttrs(ctx *Context, prefixes []string, m mapping, extra Attrs) []Attrs {
	var out []Attrs
	for _, prefix := range prefixes {
		for _, path := range m.paths {
			route := routeText(ctx, JoinPath(prefix, path))
			if route != Unresolved && !strings.HasPrefix(route, "/") {
				route = "/" + route
			}
			for _, verb := range m.verbs {
				attrs := Attrs{AttrRoute: route, AttrVerb: strings.ToUpper(verb)}
				for k, v := range extra {
					attrs[k] = v
				}
				out = append(out, attrs)
			}
		}
	}
	return out
}

func isController(cd *classfile.ClassDescriptor) bool {
	return !cd.IsInterface() && (cd.Annotations.Has(annRestController) || cd.Annotations.Has(annController))
}

func springMVCRule() Rule {
	return Rule{
		Name:        "spring-mvc-mapping",
		Kind:        KindRestEndpoint,
		Scope:       ScopeMethod,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			if !isController(ctx.Class) {
				return false
			}
			_, _, ok := inheritedMapping(ctx, springMapping)
			return ok
		},
		Extract: func(ctx *Context) []Attrs {
			m, owner, _ := inheritedMapping(ctx, springMapping)
			prefixes := classPaths(ctx.Class, annRequestMapping)
			if prefixes[0] == "" && len(prefixes) == 1 && owner != ctx.Class {
				prefixes = classPaths(owner, annRequestMapping)
			}
			return routeAttrs(ctx, prefixes, m, nil)
		},
	}
}

func jaxrsRule() Rule {
	return Rule{
		Name:        "jaxrs-resource",
		Kind:        KindRestEndpoint,
		Scope:       ScopeMethod,
		Specificity: 10,
		Match: func(ctx *Context) bool {
			if ctx.Class.IsInterface() {
				return false
			}
			_, _, ok := inheritedMapping(ctx, jaxrsMapping)
			return ok
		},
		Extract: func(ctx *Context) []Attrs {
			m, owner, _ := inheritedMapping(ctx, jaxrsMapping)
			pathAnns := qualified(jaxrsPackages, "Path")
			prefixes := classPaths(ctx.Class, pathAnns...)
			if prefixes[0] == "" && len(prefixes) == 1 && owner != ctx.Class {
				prefixes = classPaths(owner, pathAnns...)
			}
			return routeAttrs(ctx, prefixes, m, nil)
		},
	}
}

// feignClientRule is class-scoped: a Feign interface inherits the mapped
// methods of its super-interfaces, which are not declared on the class itself
func feignClientRule() Rule {
	return Rule{
		Name:        "feign-client",
		Kind:        KindRestClient,
		Scope:       ScopeClass,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			_, ok := ctx.Class.Annotations.FindAny(annFeignClient, annFeignClientLegacy)
			return ok && ctx.Class.IsInterface()
		},
		Extract: func(ctx *Context) []Attrs {
			fc, _ := ctx.Class.Annotations.FindAny(annFeignClient, annFeignClientLegacy)

			target, basePath := "", ""
			if raw := fc.String("url"); raw != "" {
				if u := ctx.Text(raw); u != Unresolved {
					target, basePath = SplitURL(u)
				} else {
					target = Unresolved
				}
			}
			if target == "" {
				if name := firstNonEmpty(fc.String("name"), fc.String("value"), fc.String("serviceId")); name != "" {
					target = ctx.Text(name)
				}
			}
			if p := fc.String("path"); p != "" {
				basePath = JoinPath(basePath, p)
			}

			var out []Attrs
			for _, mm := range feignMethods(ctx) {
				m, ok := springMapping(mm.method.Annotations)
				if !ok {
					continue
				}
				prefixes := classPaths(mm.owner, annRequestMapping)
				for i := range prefixes {
					prefixes[i] = JoinPath(basePath, prefixes[i])
				}
				out = append(out, routeAttrs(ctx, prefixes, m, Attrs{AttrTarget: target, AttrClient: "feign"})...)
			}
			return out
		},
	}
}

type ownedMethod struct {
	method *classfile.MethodDescriptor
	owner  *classfile.ClassDescriptor
}

// feignMethods lists the declared and inherited methods of a Feign
// interface, nearest declaration first
func feignMethods(ctx *Context) []ownedMethod {
	seen := make(map[string]bool)
	var out []ownedMethod
	add := func(cd *classfile.ClassDescriptor) {
		for i := range cd.Methods {
			m := &cd.Methods[i]
			if seen[m.ID()] {
				continue
			}
			seen[m.ID()] = true
			out = append(out, ownedMethod{method: m, owner: cd})
		}
	}
	add(ctx.Class)
	ctx.supertypes(ctx.Class, func(name string, _ *classfile.ClassDescriptor) bool {
		if st, ok := ctx.Lookup(name); ok {
			add(st)
		}
		return true
	})
	return out
}

func isTemplateCall(call classfile.CallSite) bool {
	if call.Owner != restTemplate && call.Owner != restOperations {
		return false
	}
	_, ok := restTemplateVerbs[call.Name]
	return ok
}

func isFluentURI(call classfile.CallSite) bool {
	return call.Name == "uri" &&
		(strings.HasPrefix(call.Owner, webClient+"$") || strings.HasPrefix(call.Owner, restClient+"$"))
}

func isFluentVerb(call classfile.CallSite) bool {
	if call.Owner != webClient && call.Owner != restClient {
		return false
	}
	_, ok := fluentVerbs[call.Name]
	return ok
}

// verbArg returns the HttpMethod constant among args, or VerbAny
func verbArg(args []classfile.Arg) string {
	for _, a := range args {
		if a.Kind == classfile.ArgField && strings.HasPrefix(a.Value, httpMethod+"#") {
			return strings.TrimPrefix(a.Value, httpMethod+"#")
		}
	}
	return VerbAny
}

// urlArg resolves the first trackable operand that reads as a URL or path
func urlArg(ctx *Context, args []classfile.Arg) string {
	for _, a := range args {
		if a.Kind == classfile.ArgComputed {
			continue
		}
		if a.Kind == classfile.ArgField && strings.HasPrefix(a.Value, httpMethod+"#") {
			continue
		}
		v := ctx.Arg(a)
		if v != Unresolved && (strings.HasPrefix(v, "/") || strings.Contains(v, "://")) {
			return v
		}
		return Unresolved
	}
	return Unresolved
}

func clientCallAttrs(ctx *Context, client, verb string, args []classfile.Arg) Attrs {
	route, target := Unresolved, ""
	if u := urlArg(ctx, args); u != Unresolved {
		target, route = SplitURL(u)
		if !strings.HasPrefix(route, "/") {
			route = "/" + route
		}
	}
	return Attrs{AttrRoute: route, AttrVerb: verb, AttrTarget: target, AttrClient: client}
}

func restTemplateRule() Rule {
	return Rule{
		Name:        "rest-template-call",
		Kind:        KindRestClient,
		Scope:       ScopeMethod,
		Specificity: 10,
		Match: func(ctx *Context) bool {
			for _, call := range ctx.Method.Calls {
				if isTemplateCall(call) || isFluentURI(call) {
					return true
				}
			}
			return false
		},
		Extract: func(ctx *Context) []Attrs {
			var out []Attrs
			pending := VerbAny
			for _, call := range ctx.Method.Calls {
				switch {
				case isTemplateCall(call):
					verb := restTemplateVerbs[call.Name]
					if verb == "" {
						verb = verbArg(call.Args)
					}
					out = append(out, clientCallAttrs(ctx, "rest-template", verb, call.Args))
				case isFluentVerb(call):
					pending = fluentVerbs[call.Name]
					if pending == "" {
						pending = verbArg(call.Args)
					}
				case isFluentURI(call):
					out = append(out, clientCallAttrs(ctx, "web-client", pending, call.Args))
					pending = VerbAny
				}
			}
			return out
		},
	}
}
