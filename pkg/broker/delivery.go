package broker

import (
	amqp091 "github.com/rabbitmq/amqp091-go"
)

// DeliveryInfo describes how a message reached its consumer.
type DeliveryInfo struct {
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
	Queue       string
	// MessageCount is the number of messages left in the queue after a get.
	MessageCount uint32
	// Channel is nil for deliveries taken with the legacy pop shape.
	Channel *Channel
}

// Delivery is the (info, properties, body) triple handed to consumers and
// returned by Pop and Get.
type Delivery struct {
	Info       DeliveryInfo
	Properties Properties
	Body       []byte
}

// DeliveryHandler receives pushed deliveries. It runs synchronously inside
// the publish that triggered it.
type DeliveryHandler func(d *Delivery)

func newDelivery(msg *Message, info DeliveryInfo) *Delivery {
	info.Redelivered = msg.Redelivered
	info.Exchange = msg.Exchange
	info.RoutingKey = msg.RoutingKey
	return &Delivery{
		Info:       info,
		Properties: msg.Properties.clone(),
		Body:       msg.Body,
	}
}

// ToAMQP converts the delivery into the shape the amqp091 client produces.
// Ack, Nack and Reject on the result settle the tag on the delivering channel.
func (d *Delivery) ToAMQP() amqp091.Delivery {
	out := amqp091.Delivery{
		Headers:         cloneTable(d.Properties.Headers),
		ContentType:     d.Properties.ContentType,
		ContentEncoding: d.Properties.ContentEncoding,
		DeliveryMode:    uint8(d.Properties.DeliveryMode),
		Priority:        d.Properties.Priority,
		CorrelationId:   d.Properties.CorrelationId,
		ReplyTo:         d.Properties.ReplyTo,
		Expiration:      d.Properties.Expiration,
		MessageId:       d.Properties.MessageId,
		Timestamp:       d.Properties.Timestamp,
		Type:            d.Properties.Type,
		UserId:          d.Properties.UserId,
		AppId:           d.Properties.AppId,
		ConsumerTag:     d.Info.ConsumerTag,
		MessageCount:    d.Info.MessageCount,
		DeliveryTag:     d.Info.DeliveryTag,
		Redelivered:     d.Info.Redelivered,
		Exchange:        d.Info.Exchange,
		RoutingKey:      d.Info.RoutingKey,
		Body:            d.Body,
	}
	if d.Info.Channel != nil {
		out.Acknowledger = d.Info.Channel
	}
	return out
}

func newReturn(msg *Message) amqp091.Return {
	p := msg.Properties
	return amqp091.Return{
		ReplyCode:       uint16(amqp091.NoRoute),
		ReplyText:       "NO_ROUTE",
		Exchange:        msg.Exchange,
		RoutingKey:      msg.RoutingKey,
		ContentType:     p.ContentType,
		ContentEncoding: p.ContentEncoding,
		Headers:         cloneTable(p.Headers),
		DeliveryMode:    uint8(p.DeliveryMode),
		Priority:        p.Priority,
		CorrelationId:   p.CorrelationId,
		ReplyTo:         p.ReplyTo,
		Expiration:      p.Expiration,
		MessageId:       p.MessageId,
		Timestamp:       p.Timestamp,
		Type:            p.Type,
		UserId:          p.UserId,
		AppId:           p.AppId,
		Body:            msg.Body,
	}
}
