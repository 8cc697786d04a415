package broker

import (
	"fmt"
	"sort"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

type ChannelStatus string

const (
	ChannelOpening ChannelStatus = "opening"
	ChannelOpen    ChannelStatus = "open"
	ChannelClosed  ChannelStatus = "closed"
)

const defaultConsumerTagPrefix = "amq.ctag"

var _ amqp091.Acknowledger = (*Channel)(nil)

type Channel struct {
	id      uint16
	session *Session
	status  ChannelStatus

	deliveries     *ChannelDeliveryState
	consumers      map[string]*Consumer
	returnHandlers []func(amqp091.Return)
}

func newChannel(s *Session, id uint16) *Channel {
	return &Channel{
		id:         id,
		session:    s,
		status:     ChannelOpening,
		deliveries: newChannelDeliveryState(),
		consumers:  make(map[string]*Consumer),
	}
}

func (ch *Channel) ID() uint16            { return ch.id }
func (ch *Channel) Session() *Session     { return ch.session }
func (ch *Channel) Status() ChannelStatus { return ch.status }
func (ch *Channel) IsOpen() bool          { return ch.status == ChannelOpen }
func (ch *Channel) IsClosed() bool        { return ch.status == ChannelClosed }

func (ch *Channel) String() string {
	return fmt.Sprintf("channel(%d, %s)", ch.id, ch.status)
}

func (ch *Channel) Open() *Channel {
	if ch.status != ChannelOpen {
		ch.status = ChannelOpen
		ch.session.metrics.RecordChannelOpen()
	}
	return ch
}

// Close cancels the consumers registered through the channel and puts its
// unacknowledged deliveries back on their queues. Settled records stay
// readable.
func (ch *Channel) Close() error {
	if ch.status == ChannelClosed {
		return nil
	}
	for _, c := range ch.consumerList() {
		c.queue.removeConsumer(c)
	}
	wasOpen := ch.status == ChannelOpen
	ch.status = ChannelClosed
	for _, rec := range ch.deliveries.release() {
		if rec.queue.deleted {
			continue
		}
		log.Debug().Uint64("delivery_tag", rec.DeliveryTag).Str("queue", rec.QueueName).Msg("Requeuing unacked message on channel close")
		rec.queue.requeue(rec.Message)
	}
	if wasOpen {
		ch.session.metrics.RecordChannelClose()
	}
	log.Debug().Uint16("channel", ch.id).Msg("Channel closed")
	return nil
}

func (ch *Channel) consumerList() []*Consumer {
	out := make([]*Consumer, 0, len(ch.consumers))
	for _, c := range ch.consumers {
		out = append(out, c)
	}
	return out
}

func (ch *Channel) ensureOpen(class amqp.TypeClass, method uint16) error {
	if ch.status != ChannelOpen {
		return errors.NewChannelError(fmt.Sprintf("channel %d is %s", ch.id, ch.status), uint16(amqp.CHANNEL_ERROR), uint16(class), method)
	}
	return nil
}

// Exchange declares an exchange or returns the registered one with the same
// name. Redeclaring with a different explicit kind fails with 406.
func (ch *Channel) Exchange(name string, opts ExchangeOptions) (*Exchange, error) {
	if err := ch.ensureOpen(amqp.EXCHANGE, uint16(amqp.EXCHANGE_DECLARE)); err != nil {
		return nil, err
	}
	if x, ok := ch.session.FindExchange(name); ok {
		if opts.Kind != "" && opts.Kind != x.kind {
			return nil, errors.NewChannelError(
				fmt.Sprintf("inequivalent arg 'type' for exchange '%s': received '%s' but current is '%s'", name, opts.Kind, x.kind),
				uint16(amqp.PRECONDITION_FAILED), uint16(amqp.EXCHANGE), uint16(amqp.EXCHANGE_DECLARE))
		}
		return x, nil
	}
	kind, err := amqp.ParseExchangeKind(string(opts.Kind))
	if err != nil {
		return nil, errors.NewInvalidArgumentError("exchange kind", err.Error())
	}
	x, err := newExchange(ch.session, ch, name, kind, opts)
	if err != nil {
		return nil, err
	}
	ch.session.RegisterExchange(x)
	log.Debug().Str("exchange", name).Str("kind", string(kind)).Msg("Exchange declared")
	return x, nil
}

func (ch *Channel) Direct(name string, opts ExchangeOptions) (*Exchange, error) {
	opts.Kind = amqp.DIRECT
	return ch.Exchange(name, opts)
}

func (ch *Channel) Fanout(name string, opts ExchangeOptions) (*Exchange, error) {
	opts.Kind = amqp.FANOUT
	return ch.Exchange(name, opts)
}

func (ch *Channel) Topic(name string, opts ExchangeOptions) (*Exchange, error) {
	opts.Kind = amqp.TOPIC
	return ch.Exchange(name, opts)
}

func (ch *Channel) Headers(name string, opts ExchangeOptions) (*Exchange, error) {
	opts.Kind = amqp.HEADERS
	return ch.Exchange(name, opts)
}

// DefaultExchange returns the nameless direct exchange.
func (ch *Channel) DefaultExchange() *Exchange {
	x, _ := ch.session.FindExchange(DEFAULT_EXCHANGE)
	return x
}

// Queue declares a queue or returns the registered one with the same name.
// An empty name gets a generated one.
func (ch *Channel) Queue(name string, opts QueueOptions) (*Queue, error) {
	if err := ch.ensureOpen(amqp.QUEUE, uint16(amqp.QUEUE_DECLARE)); err != nil {
		return nil, err
	}
	if name != "" {
		if q, ok := ch.session.FindQueue(name); ok {
			return q, nil
		}
	} else {
		name = generateQueueName()
	}
	q := newQueue(ch, name, opts)
	ch.session.RegisterQueue(q)
	log.Debug().Str("queue", name).Msg("Queue declared")
	return q, nil
}

// TemporaryQueue declares an exclusive queue with a generated name.
func (ch *Channel) TemporaryQueue(opts QueueOptions) (*Queue, error) {
	opts.Exclusive = true
	return ch.Queue("", opts)
}

// BasicPublish resolves the exchange and publishes with routingKey. Unknown
// exchange names are declared as direct exchanges on the fly.
func (ch *Channel) BasicPublish(body []byte, exchange ExchangeRef, routingKey string, opts PublishOptions) error {
	if err := ch.ensureOpen(amqp.BASIC, uint16(amqp.BASIC_PUBLISH)); err != nil {
		return err
	}
	var x *Exchange
	if exchange.IsHandle() {
		var err error
		if x, err = exchange.resolve(ch.session); err != nil {
			return err
		}
	} else if found, ok := ch.session.FindExchange(exchange.Name()); ok {
		x = found
	} else {
		var err error
		if x, err = ch.Direct(exchange.Name(), ExchangeOptions{}); err != nil {
			return err
		}
	}
	opts.RoutingKey = routingKey
	return x.publish(body, opts, ch)
}

// Consume subscribes handler to the named queue on this channel.
func (ch *Channel) Consume(queueName string, handler DeliveryHandler, opts ConsumeOptions) (*Consumer, error) {
	q, err := ch.findQueue(queueName)
	if err != nil {
		return nil, err
	}
	return q.subscribe(ch, handler, opts)
}

// Cancel removes a consumer registered through this channel. Unknown tags
// are ignored.
func (ch *Channel) Cancel(consumerTag string) error {
	if err := ch.ensureOpen(amqp.BASIC, uint16(amqp.BASIC_CANCEL)); err != nil {
		return err
	}
	if c, ok := ch.consumers[consumerTag]; ok {
		c.queue.removeConsumer(c)
	}
	return nil
}

// Get fetches the oldest message of the named queue through this channel.
func (ch *Channel) Get(queueName string, opts GetOptions) (*Delivery, error) {
	q, err := ch.findQueue(queueName)
	if err != nil {
		return nil, err
	}
	return q.get(ch, opts)
}

func (ch *Channel) findQueue(name string) (*Queue, error) {
	q, ok := ch.session.FindQueue(name)
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindQueue, name)
	}
	return q, nil
}

func (ch *Channel) QueueBind(queueName, routingKey, exchangeName string, args amqp091.Table) error {
	q, err := ch.findQueue(queueName)
	if err != nil {
		return err
	}
	return q.Bind(ByName(exchangeName), BindOptions{RoutingKey: routingKey, Arguments: args})
}

func (ch *Channel) QueueUnbind(queueName, routingKey, exchangeName string) error {
	q, err := ch.findQueue(queueName)
	if err != nil {
		return err
	}
	return q.Unbind(ByName(exchangeName), BindOptions{RoutingKey: routingKey})
}

// ExchangeBind routes messages from source to destination under routingKey.
func (ch *Channel) ExchangeBind(destination, routingKey, source string, args amqp091.Table) error {
	dst, err := ByName(destination).resolve(ch.session)
	if err != nil {
		return err
	}
	return dst.Bind(ByName(source), BindOptions{RoutingKey: routingKey, Arguments: args})
}

func (ch *Channel) ExchangeUnbind(destination, routingKey, source string) error {
	dst, err := ByName(destination).resolve(ch.session)
	if err != nil {
		return err
	}
	return dst.Unbind(ByName(source), BindOptions{RoutingKey: routingKey})
}

func (ch *Channel) ExchangeDelete(name string) error {
	x, err := ByName(name).resolve(ch.session)
	if err != nil {
		return err
	}
	return x.Delete()
}

// QueueDelete deletes the named queue and returns how many messages it held.
func (ch *Channel) QueueDelete(name string) (int, error) {
	q, err := ch.findQueue(name)
	if err != nil {
		return 0, err
	}
	n := q.MessageCount()
	return n, q.Delete()
}

func (ch *Channel) QueuePurge(name string) (int, error) {
	q, err := ch.findQueue(name)
	if err != nil {
		return 0, err
	}
	return q.Purge()
}

// Ack acknowledges a pending delivery. With multiple every pending tag up to
// and including tag is acknowledged. Unknown tags are ignored.
func (ch *Channel) Ack(tag uint64, multiple bool) error {
	if err := ch.ensureOpen(amqp.BASIC, uint16(amqp.BASIC_ACK)); err != nil {
		return err
	}
	for _, rec := range ch.deliveries.settle(tag, multiple, amqp.ACKED) {
		ch.session.metrics.RecordAck(rec.QueueName)
		log.Debug().Uint64("delivery_tag", rec.DeliveryTag).Uint16("channel", ch.id).Msg("Ack")
	}
	return nil
}

// Nack negatively acknowledges pending deliveries. Requeued messages go back
// to their queue marked redelivered; the rest are dead-lettered when the
// queue names a dead-letter exchange, otherwise discarded.
func (ch *Channel) Nack(tag uint64, multiple, requeue bool) error {
	if err := ch.ensureOpen(amqp.BASIC, uint16(amqp.BASIC_NACK)); err != nil {
		return err
	}
	for _, rec := range ch.deliveries.settle(tag, multiple, amqp.NACKED) {
		ch.session.metrics.RecordNack(rec.QueueName, requeue)
		ch.dispose(rec, requeue)
	}
	return nil
}

// Reject settles a single pending delivery like Nack without multiple.
func (ch *Channel) Reject(tag uint64, requeue bool) error {
	if err := ch.ensureOpen(amqp.BASIC, uint16(amqp.BASIC_REJECT)); err != nil {
		return err
	}
	for _, rec := range ch.deliveries.settle(tag, false, amqp.REJECTED) {
		ch.session.metrics.RecordReject(rec.QueueName, requeue)
		ch.dispose(rec, requeue)
	}
	return nil
}

func (ch *Channel) dispose(rec *DeliveryRecord, requeue bool) {
	if requeue {
		if rec.queue.deleted {
			log.Debug().Uint64("delivery_tag", rec.DeliveryTag).Str("queue", rec.QueueName).Msg("Requeue target deleted, discarding message")
			return
		}
		log.Debug().Uint64("delivery_tag", rec.DeliveryTag).Uint16("channel", ch.id).Msg("Requeuing message")
		rec.queue.requeue(rec.Message)
		return
	}
	if err := ch.session.deadLetterer.DeadLetter(rec.Message, rec.queue, amqp.REASON_REJECTED); err != nil {
		log.Error().Err(err).Uint64("delivery_tag", rec.DeliveryTag).Str("queue", rec.QueueName).Msg("Failed to dead-letter message")
	}
}

// AckState reports the bucket tag currently lives in.
func (ch *Channel) AckState(tag uint64) (amqp.AckState, bool) {
	return ch.deliveries.state(tag)
}

// Tags lists the tags in state in ascending order.
func (ch *Channel) Tags(state amqp.AckState) []uint64 {
	return ch.deliveries.tags(state)
}

// LastDeliveryTag is the highest tag the channel has issued.
func (ch *Channel) LastDeliveryTag() uint64 { return ch.deliveries.LastDeliveryTag }

// Consumers returns the consumers registered through the channel, ordered by tag.
func (ch *Channel) Consumers() []*Consumer {
	out := ch.consumerList()
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

func (ch *Channel) Pending() map[uint64]DeliveryRecord  { return ch.deliveries.snapshot(amqp.PENDING) }
func (ch *Channel) Acked() map[uint64]DeliveryRecord    { return ch.deliveries.snapshot(amqp.ACKED) }
func (ch *Channel) Nacked() map[uint64]DeliveryRecord   { return ch.deliveries.snapshot(amqp.NACKED) }
func (ch *Channel) Rejected() map[uint64]DeliveryRecord { return ch.deliveries.snapshot(amqp.REJECTED) }

// NotifyReturn registers a handler for mandatory messages published through
// this channel that reached no queue.
func (ch *Channel) NotifyReturn(fn func(amqp091.Return)) {
	ch.returnHandlers = append(ch.returnHandlers, fn)
}

func (ch *Channel) notifyReturn(ret amqp091.Return) bool {
	for _, fn := range ch.returnHandlers {
		fn(ret)
	}
	return len(ch.returnHandlers) > 0
}

// ConfirmSelect is accepted for client compatibility and does nothing.
func (ch *Channel) ConfirmSelect() error {
	return nil
}

// Qos is accepted for client compatibility and does nothing.
func (ch *Channel) Qos(prefetchCount int) error {
	return nil
}

// WaitForConfirms always succeeds since publishes complete synchronously.
func (ch *Channel) WaitForConfirms() bool {
	return true
}

func (ch *Channel) GenerateConsumerTag(prefix string) string {
	if prefix == "" {
		prefix = defaultConsumerTagPrefix
	}
	return prefix + "-" + uuid.New().String()
}
