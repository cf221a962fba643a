package marker

// Annotation and type names recognized by the default rules
const (
	springWeb = "org.springframework.web.bind.annotation."

	annController     = "org.springframework.stereotype.Controller"
	annRestController = springWeb + "RestController"
	annRequestMapping = springWeb + "RequestMapping"

	annFeignClient       = "org.springframework.cloud.openfeign.FeignClient"
	annFeignClientLegacy = "org.springframework.cloud.netflix.feign.FeignClient"

	annJmsListener    = "org.springframework.jms.annotation.JmsListener"
	annJmsListeners   = "org.springframework.jms.annotation.JmsListeners"
	annKafkaListener  = "org.springframework.kafka.annotation.KafkaListener"
	annKafkaHandler   = "org.springframework.kafka.annotation.KafkaHandler"
	annRabbitListener = "org.springframework.amqp.rabbit.annotation.RabbitListener"
	annRabbitHandler  = "org.springframework.amqp.rabbit.annotation.RabbitHandler"

	annRepository           = "org.springframework.stereotype.Repository"
	annRepositoryDefinition = "org.springframework.data.repository.RepositoryDefinition"
	annMongoDocument        = "org.springframework.data.mongodb.core.mapping.Document"
	annRelationalTable      = "org.springframework.data.relational.core.mapping.Table"

	annScheduled = "org.springframework.scheduling.annotation.Scheduled"
	annSchedules = "org.springframework.scheduling.annotation.Schedules"

	annSpringBootTest          = "org.springframework.boot.test.context.SpringBootTest"
	annConfigurationProperties = "org.springframework.boot.context.properties.ConfigurationProperties"
)

// persistence annotation packages, both namespaces
var persistencePackages = []string{"javax.persistence.", "jakarta.persistence."}

// JAX-RS annotation packages, both namespaces
var jaxrsPackages = []string{"javax.ws.rs.", "jakarta.ws.rs."}

// DefaultRules returns the built-in rule table. The returned slice is a fresh
// copy; callers may append their own rules.
func DefaultRules() []Rule {
	return []Rule{
		springMVCRule(),
		jaxrsRule(),
		feignClientRule(),
		restTemplateRule(),
		wsServerEndpointRule(),
		wsHandlerRule(),
		wsClientRule(),
		jmsListenerRule(),
		kafkaListenerRule(),
		rabbitListenerRule(),
		templateSendRule(),
		springDataRepositoryRule(),
		repositoryAnnotationRule(),
		jpaEntityRule(),
		mongoDocumentRule(),
		tableOnlyRule(),
		scheduledRule(),
	}
}

func qualified(pkgs []string, simple string) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p + simple
	}
	return out
}

func one(attrs Attrs) []Attrs { return []Attrs{attrs} }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
