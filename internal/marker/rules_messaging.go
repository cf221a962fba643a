package marker

import (
	"github.com/zheng/connviz/internal/classfile"
)

const javaString = "java.lang.String"

// template types whose send methods publish to a destination, by broker
var sendTemplates = map[string]string{
	"org.springframework.jms.core.JmsTemplate":                     "jms",
	"org.springframework.jms.core.JmsOperations":                   "jms",
	"org.springframework.jms.core.JmsMessagingTemplate":            "jms",
	"org.springframework.jms.core.JmsMessageOperations":            "jms",
	"org.springframework.kafka.core.KafkaTemplate":                 "kafka",
	"org.springframework.kafka.core.KafkaOperations":               "kafka",
	"org.springframework.amqp.rabbit.core.RabbitTemplate":          "rabbit",
	"org.springframework.amqp.rabbit.core.RabbitOperations":        "rabbit",
	"org.springframework.amqp.rabbit.core.RabbitMessagingTemplate": "rabbit",
	"org.springframework.amqp.core.AmqpTemplate":                   "rabbit",
}

var sendMethods = map[string]bool{
	"send":                  true,
	"sendDefault":           true,
	"convertAndSend":        true,
	"sendAndReceive":        true,
	"convertSendAndReceive": true,
}

func listenerAttrs(broker string, destinations []string) []Attrs {
	if len(destinations) == 0 {
		destinations = []string{Unresolved}
	}
	out := make([]Attrs, 0, len(destinations))
	for _, d := range destinations {
		out = append(out, Attrs{AttrDestination: d, AttrBroker: broker})
	}
	return out
}

func jmsListenerRule() Rule {
	listeners := func(m *classfile.MethodDescriptor) []classfile.Annotation {
		var out []classfile.Annotation
		for _, a := range m.Annotations {
			switch a.Type {
			case annJmsListener:
				out = append(out, a)
			case annJmsListeners:
				out = append(out, a.Nested("value")...)
			}
		}
		return out
	}
	return Rule{
		Name:        "jms-listener",
		Kind:        KindMQListener,
		Scope:       ScopeMethod,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			return len(listeners(ctx.Method)) > 0
		},
		Extract: func(ctx *Context) []Attrs {
			var dests []string
			for _, a := range listeners(ctx.Method) {
				dests = append(dests, ctx.Text(a.String("destination")))
			}
			return listenerAttrs("jms", dests)
		},
	}
}

// listenerAnnotation returns the listener annotation of a method, or the
// class-level one when the method is a handler of a class-level listener
func listenerAnnotation(ctx *Context, listener, handler string) (classfile.Annotation, bool) {
	if a, ok := ctx.Method.Annotations.Find(listener); ok {
		return a, true
	}
	if ctx.Method.Annotations.Has(handler) {
		return ctx.Class.Annotations.Find(listener)
	}
	return classfile.Annotation{}, false
}

func kafkaListenerRule() Rule {
	return Rule{
		Name:        "kafka-listener",
		Kind:        KindMQListener,
		Scope:       ScopeMethod,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			_, ok := listenerAnnotation(ctx, annKafkaListener, annKafkaHandler)
			return ok
		},
		Extract: func(ctx *Context) []Attrs {
			a, _ := listenerAnnotation(ctx, annKafkaListener, annKafkaHandler)
			dests := ctx.resolve.texts(a.Strings("topics"))
			if p := a.String("topicPattern"); p != "" {
				dests = append(dests, ctx.Text(p))
			}
			for _, tp := range a.Nested("topicPartitions") {
				dests = append(dests, ctx.Text(tp.String("topic")))
			}
			return listenerAttrs("kafka", dests)
		},
	}
}

func rabbitListenerRule() Rule {
	return Rule{
		Name:        "rabbit-listener",
		Kind:        KindMQListener,
		Scope:       ScopeMethod,
		Specificity: 20,
		Match: func(ctx *Context) bool {
			_, ok := listenerAnnotation(ctx, annRabbitListener, annRabbitHandler)
			return ok
		},
		Extract: func(ctx *Context) []Attrs {
			a, _ := listenerAnnotation(ctx, annRabbitListener, annRabbitHandler)
			dests := ctx.resolve.texts(a.Strings("queues"))
			for _, binding := range a.Nested("bindings") {
				for _, q := range binding.Nested("value") {
					dests = append(dests, ctx.Text(firstNonEmpty(q.String("value"), q.String("name"))))
				}
			}
			return listenerAttrs("rabbit", dests)
		},
	}
}

// leadingStrings counts the String parameters a send method starts with;
// they name the destination (and for rabbit the exchange first)
func leadingStrings(desc string) int {
	params, _, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return 0
	}
	n := 0
	for _, p := range params {
		if p != javaString {
			break
		}
		n++
	}
	return n
}

func sendAttrs(ctx *Context, broker string, call classfile.CallSite) Attrs {
	attrs := Attrs{AttrBroker: broker, AttrDestination: Unresolved}
	n := leadingStrings(call.Descriptor)
	if n == 0 {
		// default destination configured on the template
		return attrs
	}
	args := call.Args
	// a receiver obtained from a call shows up as a leading computed operand
	for len(args) > n && args[0].Kind == classfile.ArgComputed {
		args = args[1:]
	}
	if broker == "rabbit" && n >= 2 {
		if len(args) >= 2 {
			attrs[AttrExchange] = ctx.Arg(args[0])
			attrs[AttrDestination] = ctx.Arg(args[1])
		}
		return attrs
	}
	if len(args) > 0 {
		attrs[AttrDestination] = ctx.Arg(args[0])
	}
	return attrs
}

func templateSendRule() Rule {
	return Rule{
		Name:        "messaging-template-send",
		Kind:        KindMQSender,
		Scope:       ScopeMethod,
		Specificity: 10,
		Match: func(ctx *Context) bool {
			for _, call := range ctx.Method.Calls {
				if _, ok := sendTemplates[call.Owner]; ok && sendMethods[call.Name] {
					return true
				}
			}
			return false
		},
		Extract: func(ctx *Context) []Attrs {
			var out []Attrs
			for _, call := range ctx.Method.Calls {
				broker, ok := sendTemplates[call.Owner]
				if !ok || !sendMethods[call.Name] {
					continue
				}
				out = append(out, sendAttrs(ctx, broker, call))
			}
			return out
		},
	}
}

func scheduledRule() Rule {
	schedules := func(m *classfile.MethodDescriptor) []classfile.Annotation {
		var out []classfile.Annotation
		for _, a := range m.Annotations {
			switch a.Type {
			case annScheduled:
				out = append(out, a)
			case annSchedules:
				out = append(out, a.Nested("value")...)
			}
		}
		return out
	}
	return Rule{
		Name:        "scheduled-method",
		Kind:        KindScheduled,
		Scope:       ScopeMethod,
		Specificity: 10,
		Match: func(ctx *Context) bool {
			return len(schedules(ctx.Method)) > 0
		},
		Extract: func(ctx *Context) []Attrs {
			var out []Attrs
			for _, a := range schedules(ctx.Method) {
				out = append(out, Attrs{AttrSchedule: scheduleOf(ctx, a)})
			}
			return out
		},
	}
}

func scheduleOf(ctx *Context, a classfile.Annotation) string {
	for _, key := range []string{"cron", "fixedDelay", "fixedDelayString", "fixedRate", "fixedRateString"} {
		v := a.String(key)
		if v == "" || v == "-1" {
			continue
		}
		if key == "cron" || key == "fixedDelayString" || key == "fixedRateString" {
			v = ctx.Text(v)
		}
		return key + "=" + v
	}
	return Unresolved
}
