package marker

import (
	"strings"

	"github.com/zheng/connviz/internal/classfile"
)

const springSocket = "org.springframework.web.socket."

// registries whose methods map handlers onto paths, with those methods
var wsRegistries = map[string]string{
	springSocket + "config.annotation.WebSocketHandlerRegistry":        "addHandler",
	springSocket + "config.annotation.ServletWebSocketHandlerRegistry": "addHandler",
	springSocket + "config.annotation.StompEndpointRegistry":           "addEndpoint",
}

// client types opening a websocket connection, with their connect methods
var wsClients = map[string][]string{
	springSocket + "client.WebSocketClient":                          {"doHandshake", "execute"},
	springSocket + "client.standard.StandardWebSocketClient":         {"doHandshake", "execute"},
	springSocket + "client.jetty.JettyWebSocketClient":               {"doHandshake", "execute"},
	springSocket + "sockjs.client.SockJsClient":                      {"doHandshake", "execute"},
	springSocket + "messaging.WebSocketStompClient":                  {"connect", "connectAsync"},
	"org.springframework.web.reactive.socket.client.WebSocketClient": {"execute"},
}

var wsServerEndpoints = []string{
	"javax.websocket.server.ServerEndpoint",
	"jakarta.websocket.server.ServerEndpoint",
}

func isWSRegistration(call classfile.CallSite) bool {
	name, ok := wsRegistries[call.Owner]
	return ok && call.Name == name
}

func isWSConnect(call classfile.CallSite) bool {
	for _, name := range wsClients[call.Owner] {
		if call.Name == name {
			return true
		}
	}
	return false
}

func wsRoute(ctx *Context, path string) string {
	route := routeText(ctx, path)
	if route != Unresolved && !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return route
}

// wsHandlerRule reads the paths passed to handler registries; the marker sits
// on the configuring class since the handler instance is not known statically
func wsHandlerRule() Rule {
	return Rule{
		Name:        "websocket-handler-registration",
		Kind:        KindWSEndpoint,
		Scope:       ScopeMethod,
		Specificity: 10,
		Match: func(ctx *Context) bool {
			for _, call := range ctx.Method.Calls {
				if isWSRegistration(call) {
					return true
				}
			}
			return false
		},
		Extract: func(ctx *Context) []Attrs {
			var out []Attrs
			for _, call := range ctx.Method.Calls {
				if !isWSRegistration(call) {
					continue
				}
				found := false
				for _, a := range call.Args {
					if a.Kind == classfile.ArgComputed {
						continue
					}
					found = true
					out = append(out, Attrs{AttrRoute: wsRoute(ctx, ctx.Arg(a))})
				}
				if !found {
					out = append(out, Attrs{AttrRoute: Unresolved})
				}
			}
			return out
		},
	}
}

func wsServerEndpointRule() Rule {
	return Rule{
		Name:        "websocket-server-endpoint",
		Kind:        KindWSEndpoint,
		Scope:       ScopeClass,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			_, ok := ctx.Class.Annotations.FindAny(wsServerEndpoints...)
			return ok
		},
		Extract: func(ctx *Context) []Attrs {
			a, _ := ctx.Class.Annotations.FindAny(wsServerEndpoints...)
			route := Unresolved
			if v := a.String("value"); v != "" {
				route = wsRoute(ctx, v)
			}
			return one(Attrs{AttrRoute: route})
		},
	}
}

func wsClientRule() Rule {
	return Rule{
		Name:        "websocket-client-call",
		Kind:        KindWSClient,
		Scope:       ScopeMethod,
		Specificity: 10,
		Match: func(ctx *Context) bool {
			for _, call := range ctx.Method.Calls {
				if isWSConnect(call) {
					return true
				}
			}
			return false
		},
		Extract: func(ctx *Context) []Attrs {
			var out []Attrs
			for _, call := range ctx.Method.Calls {
				if !isWSConnect(call) {
					continue
				}
				attrs := clientCallAttrs(ctx, "websocket", "", call.Args)
				delete(attrs, AttrVerb)
				out = append(out, attrs)
			}
			return out
		},
	}
}
