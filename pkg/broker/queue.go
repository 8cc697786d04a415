package broker

import (
	"fmt"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/andrelcunha/ottermock/pkg/routing"
	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const generatedQueuePrefix = "amq.gen-"

func generateQueueName() string {
	return generatedQueuePrefix + uuid.New().String()
}

type Queue struct {
	name    string
	opts    QueueOptions
	channel *Channel
	session *Session

	messages  []*Message
	consumers []*Consumer
	next      int
	flushing  bool
	deleted   bool
}

func newQueue(ch *Channel, name string, opts QueueOptions) *Queue {
	opts.Arguments = cloneTable(opts.Arguments)
	return &Queue{
		name:    name,
		opts:    opts,
		channel: ch,
		session: ch.session,
	}
}

func (q *Queue) Name() string                             { return q.name }
func (q *Queue) DestinationKind() routing.DestinationKind { return routing.QueueDestination }
func (q *Queue) Durable() bool                            { return q.opts.Durable }
func (q *Queue) Exclusive() bool                          { return q.opts.Exclusive }
func (q *Queue) AutoDelete() bool                         { return q.opts.AutoDelete }
func (q *Queue) Arguments() amqp091.Table                 { return cloneTable(q.opts.Arguments) }
func (q *Queue) Channel() *Channel                        { return q.channel }
func (q *Queue) IsDeleted() bool                          { return q.deleted }

func (q *Queue) String() string {
	return fmt.Sprintf("queue(%q)", q.name)
}

func (q *Queue) deletedError() error {
	return errors.NewDeletedResourceError(errors.KindQueue, q.name)
}

// Publish appends a message as if it came through the default exchange. The
// routing key defaults to the queue name.
func (q *Queue) Publish(body []byte, opts PublishOptions) error {
	if q.deleted {
		return q.deletedError()
	}
	q.enqueue(NewMessage(body, opts.Properties, DEFAULT_EXCHANGE, bindingKey(BindOptions{RoutingKey: opts.RoutingKey}, q.name)))
	return nil
}

func (q *Queue) enqueue(msg *Message) {
	if q.deleted {
		log.Debug().Str("queue", q.name).Str("id", msg.ID).Msg("Dropping message for deleted queue")
		return
	}
	q.messages = append(q.messages, msg)
	q.session.metrics.RecordQueuePublish(q.name)
	q.session.metrics.SetQueueDepth(q.name, len(q.messages))
	q.flush()
}

func (q *Queue) shift() *Message {
	if len(q.messages) == 0 {
		return nil
	}
	msg := q.messages[0]
	q.messages[0] = nil
	q.messages = q.messages[1:]
	q.session.metrics.SetQueueDepth(q.name, len(q.messages))
	return msg
}

// flush hands buffered messages to consumers until either runs out. A
// handler that publishes back into the queue appends to the buffer and the
// running flush picks it up.
func (q *Queue) flush() {
	if q.flushing {
		return
	}
	q.flushing = true
	defer func() { q.flushing = false }()

	for !q.deleted && len(q.messages) > 0 && len(q.consumers) > 0 {
		c := q.nextConsumer()
		q.deliver(c, q.shift())
	}
}

func (q *Queue) nextConsumer() *Consumer {
	if q.next >= len(q.consumers) {
		q.next = 0
	}
	c := q.consumers[q.next]
	q.next++
	return c
}

func (q *Queue) deliver(c *Consumer, msg *Message) {
	ch := c.channel
	tag := ch.deliveries.nextTag()
	if c.ManualAck {
		ch.deliveries.track(tag, c.Tag, q, msg)
	}
	q.session.metrics.RecordQueueDelivery(q.name, c.ManualAck)
	log.Debug().Str("queue", q.name).Str("consumer", c.Tag).Uint64("delivery_tag", tag).Msg("Delivering message")

	c.handler(newDelivery(msg, DeliveryInfo{
		ConsumerTag: c.Tag,
		DeliveryTag: tag,
		Queue:       q.name,
		Channel:     ch,
	}))
}

// Subscribe registers handler as a consumer on the queue's channel and
// drains the buffer to it.
func (q *Queue) Subscribe(handler DeliveryHandler, opts ConsumeOptions) (*Consumer, error) {
	return q.subscribe(q.channel, handler, opts)
}

func (q *Queue) subscribe(ch *Channel, handler DeliveryHandler, opts ConsumeOptions) (*Consumer, error) {
	if q.deleted {
		return nil, q.deletedError()
	}
	if err := ch.ensureOpen(amqp.BASIC, uint16(amqp.BASIC_CONSUME)); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.NewInvalidArgumentError("handler", "consumer handler is nil")
	}

	tag := opts.ConsumerTag
	if tag == "" {
		tag = ch.GenerateConsumerTag("")
	}
	if _, exists := ch.consumers[tag]; exists {
		return nil, errors.NewChannelError(fmt.Sprintf("consumer tag '%s' already in use on channel %d", tag, ch.id), uint16(amqp.NOT_ALLOWED), uint16(amqp.BASIC), uint16(amqp.BASIC_CONSUME))
	}
	for _, existing := range q.consumers {
		if existing.Exclusive || opts.Exclusive {
			return nil, errors.NewChannelError(fmt.Sprintf("queue '%s' in exclusive use", q.name), uint16(amqp.ACCESS_REFUSED), uint16(amqp.BASIC), uint16(amqp.BASIC_CONSUME))
		}
	}

	c := &Consumer{
		Tag:       tag,
		ManualAck: opts.ManualAck,
		Exclusive: opts.Exclusive,
		Arguments: cloneTable(opts.Arguments),
		queue:     q,
		channel:   ch,
		handler:   handler,
		active:    true,
	}
	q.consumers = append(q.consumers, c)
	ch.consumers[tag] = c
	log.Debug().Str("queue", q.name).Str("consumer", tag).Bool("manual_ack", opts.ManualAck).Msg("Consumer registered")

	q.flush()
	return c, nil
}

// Cancel removes the consumer registered under consumerTag.
func (q *Queue) Cancel(consumerTag string) bool {
	for _, c := range q.consumers {
		if c.Tag == consumerTag {
			q.removeConsumer(c)
			return true
		}
	}
	return false
}

func (q *Queue) removeConsumer(c *Consumer) {
	for i, existing := range q.consumers {
		if existing != c {
			continue
		}
		q.consumers = append(q.consumers[:i:i], q.consumers[i+1:]...)
		if i < q.next {
			q.next--
		}
		break
	}
	if owned, ok := c.channel.consumers[c.Tag]; ok && owned == c {
		delete(c.channel.consumers, c.Tag)
	}
	if c.active {
		c.active = false
		log.Debug().Str("queue", q.name).Str("consumer", c.Tag).Msg("Consumer cancelled")
	}
}

// Pop removes the oldest message. It returns nil when the queue is empty.
// With the legacy pop option the delivery carries no channel bookkeeping.
func (q *Queue) Pop() (*Delivery, error) {
	if q.session.opts.LegacyPop {
		if q.deleted {
			return nil, q.deletedError()
		}
		log.Warn().Bool("deprecated", true).Str("queue", q.name).Msg("Legacy pop is deprecated, disable LegacyPop to get tracked deliveries")
		msg := q.shift()
		if msg == nil {
			return nil, nil
		}
		return newDelivery(msg, DeliveryInfo{Queue: q.name, MessageCount: uint32(len(q.messages))}), nil
	}
	return q.Get(GetOptions{})
}

// Get removes the oldest message through the queue's channel. With ManualAck
// the delivery is tracked as pending on that channel.
func (q *Queue) Get(opts GetOptions) (*Delivery, error) {
	return q.get(q.channel, opts)
}

func (q *Queue) get(ch *Channel, opts GetOptions) (*Delivery, error) {
	if q.deleted {
		return nil, q.deletedError()
	}
	if err := ch.ensureOpen(amqp.BASIC, uint16(amqp.BASIC_GET)); err != nil {
		return nil, err
	}
	msg := q.shift()
	if msg == nil {
		return nil, nil
	}
	tag := ch.deliveries.nextTag()
	if opts.ManualAck {
		ch.deliveries.track(tag, "", q, msg)
	}
	q.session.metrics.RecordQueueDelivery(q.name, opts.ManualAck)
	return newDelivery(msg, DeliveryInfo{
		DeliveryTag:  tag,
		Queue:        q.name,
		MessageCount: uint32(len(q.messages)),
		Channel:      ch,
	}), nil
}

// Bind adds the queue to an exchange's table. The binding key defaults to
// the queue name.
func (q *Queue) Bind(exchange ExchangeRef, opts BindOptions) error {
	if q.deleted {
		return q.deletedError()
	}
	x, err := exchange.resolve(q.session)
	if err != nil {
		return err
	}
	return x.AddRoute(bindingKey(opts, q.name), q, opts.Arguments)
}

func (q *Queue) Unbind(exchange ExchangeRef, opts BindOptions) error {
	if q.deleted {
		return q.deletedError()
	}
	x, err := exchange.resolve(q.session)
	if err != nil {
		return err
	}
	_, err = x.RemoveRoute(bindingKey(opts, q.name), q)
	return err
}

func (q *Queue) BoundTo(exchange ExchangeRef, opts BindOptions) (bool, error) {
	if q.deleted {
		return false, q.deletedError()
	}
	x, err := exchange.resolve(q.session)
	if err != nil {
		return false, err
	}
	return x.RoutesTo(q, opts), nil
}

// Purge drops every buffered message and reports how many were dropped.
// Consumers stay registered.
func (q *Queue) Purge() (int, error) {
	if q.deleted {
		return 0, q.deletedError()
	}
	n := len(q.messages)
	q.messages = nil
	q.session.metrics.SetQueueDepth(q.name, 0)
	log.Debug().Str("queue", q.name).Int("count", n).Msg("Purged queue")
	return n, nil
}

// Delete cancels consumers, removes every binding to the queue and drops it
// from the registry. Later operations fail with DeletedResourceError.
func (q *Queue) Delete() error {
	if q.deleted {
		return q.deletedError()
	}
	q.deleted = true
	for _, c := range append([]*Consumer(nil), q.consumers...) {
		q.removeConsumer(c)
	}
	dropped := len(q.messages)
	q.messages = nil
	q.session.removeBindingsTo(q)
	if existing, ok := q.session.FindQueue(q.name); ok && existing == q {
		q.session.DeregisterQueue(q.name)
	}
	q.session.metrics.SetQueueDepth(q.name, 0)
	log.Debug().Str("queue", q.name).Int("dropped", dropped).Msg("Deleted queue")
	return nil
}

func (q *Queue) MessageCount() int  { return len(q.messages) }
func (q *Queue) ConsumerCount() int { return len(q.consumers) }

// Consumers returns the registered consumers in dispatch order.
func (q *Queue) Consumers() []*Consumer {
	return append([]*Consumer(nil), q.consumers...)
}

// Messages returns a copy of the buffer, oldest first.
func (q *Queue) Messages() []Message {
	out := make([]Message, 0, len(q.messages))
	for _, m := range q.messages {
		out = append(out, *m.clone())
	}
	return out
}

// requeue puts a settled message back at the tail, marked redelivered.
func (q *Queue) requeue(msg Message) {
	m := msg.clone()
	m.Redelivered = true
	q.enqueue(m)
}
