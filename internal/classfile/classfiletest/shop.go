package classfiletest

// Named is an assembled class file and the artifact name it is stored under
type Named struct {
	Name string
	Data []byte
}

const (
	springWeb    = "org.springframework.web.bind.annotation."
	restTemplate = "org.springframework.web.client.RestTemplate"
	jmsTemplate  = "org.springframework.jms.core.JmsTemplate"
)

// Shop assembles a small service landscape: a REST endpoint and a client
// calling it, a JMS sender without listener, a JPA repository with its
// entity, and a few classes carrying no markers.
func Shop() []Named {
	controller := NewClass("shop.orders.OrderController").Annotate(A(springWeb + "RestController"))
	controller.Method("list", Descriptor("java.util.List")).
		Annotate(A(springWeb+"GetMapping", Strs("value", "/orders"))).Aload(0).AReturn()

	storefront := NewClass("shop.web.Storefront")
	storefront.Method("orders", Descriptor("void")).
		Aload(0).GetField("shop.web.Storefront", "rest", restTemplate).
		Ldc("/orders").
		InvokeVirtual(restTemplate, "getForObject", "(Ljava/lang/String;Ljava/lang/Class;[Ljava/lang/Object;)Ljava/lang/Object;").
		Pop().Return()

	publisher := NewClass("shop.orders.OrderPublisher")
	publisher.Method("publish", Descriptor("void", "java.lang.Object")).
		Aload(0).GetField("shop.orders.OrderPublisher", "jms", jmsTemplate).
		Ldc("orders-queue").Aload(1).
		InvokeVirtual(jmsTemplate, "convertAndSend", "(Ljava/lang/String;Ljava/lang/Object;)V").
		Return()

	entity := NewClass("shop.orders.Order").Annotate(
		A("jakarta.persistence.Entity"),
		A("jakarta.persistence.Table", Str("name", "orders")),
	)
	repo := NewInterface("shop.orders.OrderRepository", "org.springframework.data.repository.CrudRepository").
		Signature("Ljava/lang/Object;Lorg/springframework/data/repository/CrudRepository<Lshop/orders/Order;Ljava/lang/Long;>;")

	out := []Named{
		{"shop/orders/OrderController.class", controller.Bytes()},
		{"shop/web/Storefront.class", storefront.Bytes()},
		{"shop/orders/OrderPublisher.class", publisher.Bytes()},
		{"shop/orders/Order.class", entity.Bytes()},
		{"shop/orders/OrderRepository.class", repo.Bytes()},
	}
	for _, name := range []string{"Money", "Clock", "Ids", "Strings"} {
		c := NewClass("shop.util." + name)
		c.Method("help", Descriptor("void")).Return()
		out = append(out, Named{"shop/util/" + name + ".class", c.Bytes()})
	}
	return out
}
