package management

type QueueDTO struct {
	Name string `json:"name" yaml:"name"`

	// Message counts (RabbitMQ compatible field names)
	Messages        int `json:"messages" yaml:"messages"` // Ready
	MessagesUnacked int `json:"messages_unacked" yaml:"messages_unacked"`
	MessagesTotal   int `json:"messages_total" yaml:"messages_total"` // Ready + Unacked

	Consumers int `json:"consumers" yaml:"consumers"`

	Durable    bool           `json:"durable" yaml:"durable"`
	AutoDelete bool           `json:"auto_delete" yaml:"auto_delete"`
	Exclusive  bool           `json:"exclusive" yaml:"exclusive"`
	Arguments  map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`

	// DLX configuration (extracted for convenience)
	DeadLetterExchange   *string `json:"x-dead-letter-exchange,omitempty" yaml:"dead_letter_exchange,omitempty"`
	DeadLetterRoutingKey *string `json:"x-dead-letter-routing-key,omitempty" yaml:"dead_letter_routing_key,omitempty"`
}

type ExchangeDTO struct {
	Name       string         `json:"name" yaml:"name"`
	Type       string         `json:"type" yaml:"type"`
	Durable    bool           `json:"durable" yaml:"durable"`
	AutoDelete bool           `json:"auto_delete" yaml:"auto_delete"`
	Internal   bool           `json:"internal" yaml:"internal"`
	Arguments  map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Bindings   int            `json:"bindings" yaml:"bindings"`
}

type BindingDTO struct {
	Source          string         `json:"source" yaml:"source"`
	Destination     string         `json:"destination" yaml:"destination"`
	DestinationType string         `json:"destination_type" yaml:"destination_type"`
	RoutingKey      string         `json:"routing_key" yaml:"routing_key"`
	Arguments       map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

type ConsumerDTO struct {
	ConsumerTag   string         `json:"consumer_tag" yaml:"consumer_tag"`
	QueueName     string         `json:"queue_name" yaml:"queue_name"`
	ChannelNumber uint16         `json:"channel" yaml:"channel"`
	AckRequired   bool           `json:"ack_required" yaml:"ack_required"`
	Exclusive     bool           `json:"exclusive" yaml:"exclusive"`
	Active        bool           `json:"active" yaml:"active"`
	Arguments     map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

type ChannelDTO struct {
	Number          uint16 `json:"number" yaml:"number"`
	State           string `json:"state" yaml:"state"`
	Consumers       int    `json:"consumers" yaml:"consumers"`
	LastDeliveryTag uint64 `json:"last_delivery_tag" yaml:"last_delivery_tag"`
	UnackedCount    int    `json:"messages_unacknowledged" yaml:"messages_unacknowledged"`
	AckedCount      int    `json:"messages_acknowledged" yaml:"messages_acknowledged"`
	NackedCount     int    `json:"messages_nacked" yaml:"messages_nacked"`
	RejectedCount   int    `json:"messages_rejected" yaml:"messages_rejected"`
}

type OverviewObjectTotals struct {
	Channels  int `json:"channels" yaml:"channels"`
	Exchanges int `json:"exchanges" yaml:"exchanges"`
	Queues    int `json:"queues" yaml:"queues"`
	Consumers int `json:"consumers" yaml:"consumers"`
	Bindings  int `json:"bindings" yaml:"bindings"`
}

type OverviewMessageStats struct {
	MessagesReady   int `json:"messages_ready" yaml:"messages_ready"`                   // Sum of all queue depths
	MessagesUnacked int `json:"messages_unacknowledged" yaml:"messages_unacknowledged"` // Sum of pending tags
	MessagesTotal   int `json:"messages_total" yaml:"messages_total"`                   // Ready + Unacked

	QueueStats []QueueMessageBreakdown `json:"queue_stats" yaml:"queue_stats"`
}

type QueueMessageBreakdown struct {
	QueueName       string `json:"name" yaml:"name"`
	MessagesReady   int    `json:"messages" yaml:"messages"`
	MessagesUnacked int    `json:"messages_unacknowledged" yaml:"messages_unacknowledged"`
}

type OverviewDTO struct {
	Status       string               `json:"status" yaml:"status"`
	ObjectTotals OverviewObjectTotals `json:"object_totals" yaml:"object_totals"`
	MessageStats OverviewMessageStats `json:"message_stats" yaml:"message_stats"`
}
