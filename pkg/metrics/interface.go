package metrics

// Collector receives broker events as they happen. Implementations must not
// call back into the broker.
type Collector interface {
	// Exchange metrics
	RecordExchangePublish(exchangeName, exchangeKind string)
	RecordExchangeReturn(exchangeName string)

	// Queue metrics
	RecordQueuePublish(queueName string)
	RecordQueueDelivery(queueName string, manualAck bool)
	SetQueueDepth(queueName string, depth int)

	// Acknowledgement metrics
	RecordAck(queueName string)
	RecordNack(queueName string, requeue bool)
	RecordReject(queueName string, requeue bool)
	RecordDeadLetter(queueName, exchangeName string)

	// Session-level metrics
	RecordChannelOpen()
	RecordChannelClose()
}

var (
	_ Collector = NoOp{}
	_ Collector = (*PrometheusCollector)(nil)
	_ Collector = (*Recorder)(nil)
)

// NoOp discards every event.
type NoOp struct{}

func (NoOp) RecordExchangePublish(string, string) {}
func (NoOp) RecordExchangeReturn(string)          {}
func (NoOp) RecordQueuePublish(string)            {}
func (NoOp) RecordQueueDelivery(string, bool)     {}
func (NoOp) SetQueueDepth(string, int)            {}
func (NoOp) RecordAck(string)                     {}
func (NoOp) RecordNack(string, bool)              {}
func (NoOp) RecordReject(string, bool)            {}
func (NoOp) RecordDeadLetter(string, string)      {}
func (NoOp) RecordChannelOpen()                   {}
func (NoOp) RecordChannelClose()                  {}
