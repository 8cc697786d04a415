package broker

import (
	"testing"
	"time"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/metrics"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dlxFixture struct {
	session *Session
	channel *Channel
	work    *Queue
	dead    *Queue
}

func newDLXFixture(t *testing.T, workArgs amqp091.Table, deadKey string, mutate ...func(*SessionOptions)) dlxFixture {
	t.Helper()
	s, ch := newSession(t, mutate...)
	dlx := declareExchange(t, ch, "dlx", ExchangeOptions{Kind: amqp.DIRECT})
	dead := declareQueue(t, ch, "dead")
	bindQueue(t, dead, dlx, deadKey)
	work := declareQueueWithArgs(t, ch, "work", QueueOptions{Arguments: workArgs})
	return dlxFixture{session: s, channel: ch, work: work, dead: dead}
}

func (f dlxFixture) getAndSettle(t *testing.T, settle func(tag uint64) error) {
	t.Helper()
	d, err := f.work.Get(GetOptions{ManualAck: true})
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NoError(t, settle(d.Info.DeliveryTag))
}

func TestDeadLetter_RejectRoutesToDLX(t *testing.T) {
	f := newDLXFixture(t, amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "dlx"}, "work")
	require.NoError(t, f.channel.BasicPublish([]byte("poison"), ByName(""), "work", PublishOptions{
		Properties: Properties{Headers: amqp091.Table{"trace": "abc"}},
	}))

	f.getAndSettle(t, func(tag uint64) error { return f.channel.Reject(tag, false) })

	assert.Zero(t, f.work.MessageCount())
	require.Equal(t, 1, f.dead.MessageCount())
	msg := f.dead.Messages()[0]
	assert.Equal(t, "poison", string(msg.Body))
	assert.Equal(t, "dlx", msg.Exchange)
	assert.Equal(t, "work", msg.RoutingKey)

	headers := msg.Properties.Headers
	assert.Equal(t, "abc", headers["trace"])
	assert.Equal(t, "work", headers[amqp.HEADER_X_FIRST_DEATH_QUEUE])
	assert.Equal(t, "rejected", headers[amqp.HEADER_X_FIRST_DEATH_REASON])
	assert.Equal(t, "", headers[amqp.HEADER_X_FIRST_DEATH_EXCHANGE])

	deaths, ok := headers[amqp.HEADER_X_DEATH].([]interface{})
	require.True(t, ok)
	require.Len(t, deaths, 1)
	death := deaths[0].(amqp091.Table)
	assert.Equal(t, int64(1), death["count"])
	assert.Equal(t, "rejected", death["reason"])
	assert.Equal(t, "work", death["queue"])
	assert.Equal(t, "", death["exchange"])
	assert.Equal(t, []interface{}{"work"}, death["routing-keys"])
	assert.WithinDuration(t, time.Now(), death["time"].(time.Time), time.Minute)
}

func TestDeadLetter_NackRoutesToDLX(t *testing.T) {
	f := newDLXFixture(t, amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "dlx"}, "work")
	publishN(t, f.work, "a", "b")
	for i := 0; i < 2; i++ {
		_, err := f.work.Get(GetOptions{ManualAck: true})
		require.NoError(t, err)
	}

	require.NoError(t, f.channel.Nack(2, true, false))

	assert.Equal(t, []string{"a", "b"}, messageBodies(f.dead.Messages()))
}

func TestDeadLetter_RoutingKeyOverride(t *testing.T) {
	f := newDLXFixture(t, amqp091.Table{
		amqp.ARG_DEAD_LETTER_EXCHANGE:    "dlx",
		amqp.ARG_DEAD_LETTER_ROUTING_KEY: "parked",
	}, "parked")
	publishN(t, f.work, "m")

	f.getAndSettle(t, func(tag uint64) error { return f.channel.Reject(tag, false) })

	require.Equal(t, 1, f.dead.MessageCount())
	msg := f.dead.Messages()[0]
	assert.Equal(t, "parked", msg.RoutingKey)
	death := msg.Properties.Headers[amqp.HEADER_X_DEATH].([]interface{})[0].(amqp091.Table)
	assert.Equal(t, []interface{}{"work"}, death["routing-keys"], "x-death keeps the original key")
}

func TestDeadLetter_RequeueSkipsDLX(t *testing.T) {
	f := newDLXFixture(t, amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "dlx"}, "work")
	publishN(t, f.work, "m")

	f.getAndSettle(t, func(tag uint64) error { return f.channel.Reject(tag, true) })

	assert.Zero(t, f.dead.MessageCount())
	assert.Equal(t, 1, f.work.MessageCount())
	assert.Nil(t, f.work.Messages()[0].Properties.Headers[amqp.HEADER_X_DEATH])
}

func TestDeadLetter_AckSkipsDLX(t *testing.T) {
	f := newDLXFixture(t, amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "dlx"}, "work")
	publishN(t, f.work, "m")

	f.getAndSettle(t, func(tag uint64) error { return f.channel.Ack(tag, false) })

	assert.Zero(t, f.dead.MessageCount())
	assert.Zero(t, f.work.MessageCount())
}

func TestDeadLetter_RepeatedDeathIncrementsCount(t *testing.T) {
	_, ch := newSession(t)
	retry := declareExchange(t, ch, "retry", ExchangeOptions{Kind: amqp.FANOUT})
	work := declareQueueWithArgs(t, ch, "work", QueueOptions{Arguments: amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "retry"}})
	bindQueue(t, work, retry, "")
	publishN(t, work, "m")

	for i := 0; i < 3; i++ {
		d, err := work.Get(GetOptions{ManualAck: true})
		require.NoError(t, err)
		require.NoError(t, ch.Reject(d.Info.DeliveryTag, false))
	}

	require.Equal(t, 1, work.MessageCount())
	headers := work.Messages()[0].Properties.Headers
	deaths := headers[amqp.HEADER_X_DEATH].([]interface{})
	require.Len(t, deaths, 1)
	death := deaths[0].(amqp091.Table)
	assert.Equal(t, int64(3), death["count"])
	assert.Equal(t, "retry", death["exchange"])
	assert.Equal(t, "", headers[amqp.HEADER_X_FIRST_DEATH_EXCHANGE], "first death headers are never overwritten")
}

func TestDeadLetter_RejectLoopStopsAtCycleLimit(t *testing.T) {
	rec := metrics.NewRecorder()
	_, ch := newSession(t, func(o *SessionOptions) {
		o.Metrics = rec
		o.MaxDeadLetterCycles = 5
	})
	retry := declareExchange(t, ch, "retry", ExchangeOptions{Kind: amqp.FANOUT})
	work := declareQueueWithArgs(t, ch, "work", QueueOptions{Arguments: amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "retry"}})
	bindQueue(t, work, retry, "")
	received := 0
	_, err := work.Subscribe(func(d *Delivery) {
		received++
		require.NoError(t, ch.Reject(d.Info.DeliveryTag, false))
	}, ConsumeOptions{ManualAck: true})
	require.NoError(t, err)

	publishN(t, work, "m")

	assert.Equal(t, 6, received)
	assert.Equal(t, 5, rec.DeadLetters("work"))
	assert.Zero(t, work.MessageCount())
}

func TestDeadLetter_MissingExchangeDiscards(t *testing.T) {
	_, ch := newSession(t)
	work := declareQueueWithArgs(t, ch, "work", QueueOptions{Arguments: amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "nowhere"}})
	publishN(t, work, "m")

	d, err := work.Get(GetOptions{ManualAck: true})
	require.NoError(t, err)

	require.NoError(t, ch.Reject(d.Info.DeliveryTag, false))
	assert.Zero(t, work.MessageCount())
}

func TestDeadLetter_Disabled(t *testing.T) {
	f := newDLXFixture(t, amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "dlx"}, "work",
		func(o *SessionOptions) { o.EnableDLX = false })
	publishN(t, f.work, "m")

	f.getAndSettle(t, func(tag uint64) error { return f.channel.Reject(tag, false) })

	assert.Zero(t, f.dead.MessageCount())
	assert.Zero(t, f.work.MessageCount())
}

func TestDeadLetter_RecordsMetrics(t *testing.T) {
	rec := metrics.NewRecorder()
	f := newDLXFixture(t, amqp091.Table{amqp.ARG_DEAD_LETTER_EXCHANGE: "dlx"}, "work",
		func(o *SessionOptions) { o.Metrics = rec })
	publishN(t, f.work, "m")

	f.getAndSettle(t, func(tag uint64) error { return f.channel.Reject(tag, false) })

	assert.Equal(t, 1, rec.Rejects("work"))
	assert.Equal(t, 1, rec.DeadLetters("work"))
	assert.Equal(t, 1, rec.ExchangePublishes("dlx"))
	assert.Equal(t, 1, rec.QueuePublishes("dead"))
}

func TestAddXDeathHeader_DistinctReasonsStack(t *testing.T) {
	headers := addXDeathHeader(nil, "work", "rejected", "ex", "k1")
	headers = addXDeathHeader(headers, "work", "expired", "ex", "k2")
	headers = addXDeathHeader(headers, "work", "rejected", "ex", "k3")

	deaths := headers[amqp.HEADER_X_DEATH].([]interface{})
	require.Len(t, deaths, 2)
	newest := deaths[0].(amqp091.Table)
	assert.Equal(t, "rejected", newest["reason"])
	assert.Equal(t, int64(2), newest["count"])
	assert.Equal(t, []interface{}{"k3"}, newest["routing-keys"])
	assert.Equal(t, "expired", deaths[1].(amqp091.Table)["reason"])
	assert.Equal(t, "rejected", headers[amqp.HEADER_X_FIRST_DEATH_REASON])
}

func messageBodies(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Body))
	}
	return out
}
