package broker

import (
	"time"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Properties mirrors the basic content header of a message.
type Properties struct {
	ContentType     string
	ContentEncoding string
	Headers         amqp091.Table
	DeliveryMode    amqp.DeliveryMode
	Priority        uint8
	CorrelationId   string
	ReplyTo         string
	Expiration      string
	MessageId       string
	Timestamp       time.Time
	Type            string
	UserId          string
	AppId           string
}

// PropertiesFromPublishing copies the header fields of an amqp091 publishing.
func PropertiesFromPublishing(p amqp091.Publishing) Properties {
	return Properties{
		ContentType:     p.ContentType,
		ContentEncoding: p.ContentEncoding,
		Headers:         cloneTable(p.Headers),
		DeliveryMode:    amqp.DeliveryMode(p.DeliveryMode),
		Priority:        p.Priority,
		CorrelationId:   p.CorrelationId,
		ReplyTo:         p.ReplyTo,
		Expiration:      p.Expiration,
		MessageId:       p.MessageId,
		Timestamp:       p.Timestamp,
		Type:            p.Type,
		UserId:          p.UserId,
		AppId:           p.AppId,
	}
}

func (p Properties) clone() Properties {
	p.Headers = cloneTable(p.Headers)
	return p
}

type Message struct {
	ID          string
	EnqueuedAt  time.Time
	Body        []byte
	Properties  Properties
	Exchange    string
	RoutingKey  string
	Redelivered bool
}

func NewMessage(body []byte, props Properties, exchange, routingKey string) *Message {
	return &Message{
		ID:         GenerateMessageId(),
		EnqueuedAt: time.Now().UTC(),
		Body:       body,
		Properties: props.clone(),
		Exchange:   exchange,
		RoutingKey: routingKey,
	}
}

func GenerateMessageId() string {
	return uuid.New().String()
}

// clone returns a copy that shares no mutable state with m.
func (m *Message) clone() *Message {
	c := *m
	c.Properties = m.Properties.clone()
	if m.Body != nil {
		c.Body = make([]byte, len(m.Body))
		copy(c.Body, m.Body)
	}
	return &c
}

func cloneTable(in amqp091.Table) amqp091.Table {
	if in == nil {
		return nil
	}
	out := make(amqp091.Table, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case amqp091.Table:
		return cloneTable(t)
	case map[string]interface{}:
		return map[string]interface{}(cloneTable(amqp091.Table(t)))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
