package broker

import (
	amqp091 "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	Tag       string
	ManualAck bool
	Exclusive bool
	Arguments amqp091.Table

	queue   *Queue
	channel *Channel
	handler DeliveryHandler
	active  bool
}

func (c *Consumer) Queue() *Queue     { return c.queue }
func (c *Consumer) Channel() *Channel { return c.channel }
func (c *Consumer) Active() bool      { return c.active }

// Cancel stops deliveries to the consumer. Cancelling twice is a no-op.
func (c *Consumer) Cancel() {
	c.queue.removeConsumer(c)
}
