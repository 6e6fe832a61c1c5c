package queue

// Queue topology. Each stage has a durable work queue bound to a direct
// exchange, plus a dead-letter exchange/queue pair receiving messages whose
// retry budget is exhausted. Names are shared with the producing services
// and must stay stable.
const (
	OCRQueue               = "sentra.ocr.queue"
	KBBuildQueue           = "sentra.kb_build.queue"
	OCRDeadLetterQueue     = "sentra.dlq.ocr"
	KBBuildDeadLetterQueue = "sentra.dlq.kb_build"

	OCRExchange               = "sentra.ocr.exchange"
	KBBuildExchange           = "sentra.kb_build.exchange"
	OCRDeadLetterExchange     = "sentra.dlx.ocr"
	KBBuildDeadLetterExchange = "sentra.dlx.kb_build"

	OCRRoutingKey     = "ocr"
	KBBuildRoutingKey = "kb_build"
)

type binding struct {
	exchange   string
	routingKey string
}

// bindings routes (exchange, routing key) pairs to their bound queue,
// mirroring a direct-exchange binding table.
var bindings = map[binding]string{
	{OCRExchange, OCRRoutingKey}:                   OCRQueue,
	{KBBuildExchange, KBBuildRoutingKey}:           KBBuildQueue,
	{OCRDeadLetterExchange, OCRRoutingKey}:         OCRDeadLetterQueue,
	{KBBuildDeadLetterExchange, KBBuildRoutingKey}: KBBuildDeadLetterQueue,
}

// QueueFor resolves the queue bound to an exchange and routing key.
func QueueFor(exchange, routingKey string) (string, bool) {
	q, ok := bindings[binding{exchange, routingKey}]
	return q, ok
}
