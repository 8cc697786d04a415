package broker

import (
	"strings"
	"testing"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishN(t *testing.T, q *Queue, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		require.NoError(t, q.Publish([]byte(p), PublishOptions{}))
	}
}

func TestChannel_AckStateMachine(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	_, got := collect(t, q, ConsumeOptions{ManualAck: true})
	publishN(t, q, "1", "2", "3")
	require.Len(t, *got, 3)

	assert.Equal(t, []uint64{1, 2, 3}, ch.Tags(amqp.PENDING))

	require.NoError(t, ch.Ack(2, false))
	assert.Equal(t, []uint64{1, 3}, ch.Tags(amqp.PENDING))
	assert.Equal(t, []uint64{2}, ch.Tags(amqp.ACKED))

	require.NoError(t, ch.Ack(3, true))
	assert.Empty(t, ch.Tags(amqp.PENDING))
	assert.Equal(t, []uint64{1, 2, 3}, ch.Tags(amqp.ACKED))

	// settling twice or settling an unknown tag changes nothing
	require.NoError(t, ch.Nack(2, false, false))
	require.NoError(t, ch.Reject(99, false))
	state, ok := ch.AckState(2)
	require.True(t, ok)
	assert.Equal(t, amqp.ACKED, state)
	_, ok = ch.AckState(99)
	assert.False(t, ok)
}

func TestChannel_EveryTagLivesInOneState(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	_, got := collect(t, q, ConsumeOptions{ManualAck: true})
	publishN(t, q, "1", "2", "3", "4")
	require.Len(t, *got, 4)

	require.NoError(t, ch.Ack(1, false))
	require.NoError(t, ch.Nack(2, false, false))
	require.NoError(t, ch.Reject(3, false))

	seen := map[uint64]int{}
	for _, state := range amqp.AckStates {
		for _, tag := range ch.Tags(state) {
			seen[tag]++
		}
	}
	assert.Equal(t, map[uint64]int{1: 1, 2: 1, 3: 1, 4: 1}, seen)
	assert.Len(t, ch.Pending(), 1)
	assert.Len(t, ch.Acked(), 1)
	assert.Len(t, ch.Nacked(), 1)
	assert.Len(t, ch.Rejected(), 1)

	rec := ch.Rejected()[3]
	assert.Equal(t, "jobs", rec.QueueName)
	assert.Equal(t, "3", string(rec.Message.Body))
	assert.Equal(t, amqp.REJECTED, rec.State)
}

func TestChannel_AutoAckDeliveriesAreNotTracked(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	_, got := collect(t, q, ConsumeOptions{})
	publishN(t, q, "1", "2")

	require.Len(t, *got, 2)
	assert.Equal(t, uint64(2), (*got)[1].Info.DeliveryTag)
	assert.Empty(t, ch.Pending())
}

func TestChannel_MultipleAckSkipsSettledTags(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	_, got := collect(t, q, ConsumeOptions{ManualAck: true})
	publishN(t, q, "1", "2", "3", "4")
	require.Len(t, *got, 4)

	require.NoError(t, ch.Reject(2, false))
	require.NoError(t, ch.Ack(3, true))

	assert.Equal(t, []uint64{1, 3}, ch.Tags(amqp.ACKED))
	assert.Equal(t, []uint64{2}, ch.Tags(amqp.REJECTED))
	assert.Equal(t, []uint64{4}, ch.Tags(amqp.PENDING))
}

func TestChannel_NackRequeueRedelivers(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	_, got := collect(t, q, ConsumeOptions{ManualAck: true})
	publishN(t, q, "retry me")
	require.Len(t, *got, 1)
	first := (*got)[0]
	assert.False(t, first.Info.Redelivered)

	require.NoError(t, ch.Nack(first.Info.DeliveryTag, false, true))

	require.Len(t, *got, 2)
	again := (*got)[1]
	assert.Equal(t, "retry me", string(again.Body))
	assert.True(t, again.Info.Redelivered)
	assert.Equal(t, uint64(2), again.Info.DeliveryTag)
	assert.Equal(t, []uint64{1}, ch.Tags(amqp.NACKED))
	assert.Equal(t, []uint64{2}, ch.Tags(amqp.PENDING))
}

func TestChannel_RejectRequeueGoesToTail(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	publishN(t, q, "a", "b")

	d, err := q.Get(GetOptions{ManualAck: true})
	require.NoError(t, err)
	require.NoError(t, ch.Reject(d.Info.DeliveryTag, true))

	msgs := q.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", string(msgs[0].Body))
	assert.Equal(t, "a", string(msgs[1].Body))
	assert.True(t, msgs[1].Redelivered)

	_, err = q.Get(GetOptions{})
	require.NoError(t, err)
	redelivered, err := q.Get(GetOptions{})
	require.NoError(t, err)
	assert.True(t, redelivered.Info.Redelivered)
}

func TestChannel_NackWithoutRequeueDiscards(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	publishN(t, q, "a")

	d, err := q.Get(GetOptions{ManualAck: true})
	require.NoError(t, err)
	require.NoError(t, ch.Nack(d.Info.DeliveryTag, false, false))

	assert.Zero(t, q.MessageCount())
}

func TestChannel_MultipleNack(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	publishN(t, q, "a", "b", "c")
	for i := 0; i < 3; i++ {
		_, err := q.Get(GetOptions{ManualAck: true})
		require.NoError(t, err)
	}

	require.NoError(t, ch.Nack(2, true, true))

	assert.Equal(t, []uint64{1, 2}, ch.Tags(amqp.NACKED))
	assert.Equal(t, []uint64{3}, ch.Tags(amqp.PENDING))
	msgs := q.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", string(msgs[0].Body), "requeued in tag order")
	assert.Equal(t, "b", string(msgs[1].Body))
}

func TestChannel_DeliveryToAMQPAcknowledger(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	_, got := collect(t, q, ConsumeOptions{ManualAck: true, ConsumerTag: "ctag"})
	require.NoError(t, q.Publish([]byte("m"), PublishOptions{Properties: Properties{ContentType: "text/plain", DeliveryMode: amqp.PERSISTENT}}))
	publishN(t, q, "n", "o")
	require.Len(t, *got, 3)

	d := (*got)[0].ToAMQP()
	assert.Equal(t, "ctag", d.ConsumerTag)
	assert.Equal(t, "text/plain", d.ContentType)
	assert.Equal(t, uint8(2), d.DeliveryMode)
	assert.Equal(t, "jobs", d.RoutingKey)
	assert.Equal(t, []byte("m"), d.Body)

	require.NoError(t, d.Ack(false))
	require.NoError(t, (*got)[1].ToAMQP().Nack(false, false))
	require.NoError(t, (*got)[2].ToAMQP().Reject(false))

	assert.Equal(t, []uint64{1}, ch.Tags(amqp.ACKED))
	assert.Equal(t, []uint64{2}, ch.Tags(amqp.NACKED))
	assert.Equal(t, []uint64{3}, ch.Tags(amqp.REJECTED))
}

func TestChannel_ConsumeThroughAnotherChannel(t *testing.T) {
	s, owner := newSession(t)
	q := declareQueue(t, owner, "jobs")
	other, err := s.CreateChannel()
	require.NoError(t, err)

	var got []*Delivery
	_, err = other.Consume("jobs", func(d *Delivery) { got = append(got, d) }, ConsumeOptions{ManualAck: true})
	require.NoError(t, err)
	publishN(t, q, "m")

	require.Len(t, got, 1)
	assert.Same(t, other, got[0].Info.Channel)
	assert.Equal(t, []uint64{1}, other.Tags(amqp.PENDING))
	assert.Empty(t, owner.Tags(amqp.PENDING))

	require.NoError(t, other.Ack(1, false))
	assert.Equal(t, []uint64{1}, other.Tags(amqp.ACKED))
}

func TestChannel_ConsumeAndGetByName(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	publishN(t, q, "a")

	d, err := ch.Get("jobs", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a", string(d.Body))

	_, err = ch.Get("missing", GetOptions{})
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = ch.Consume("missing", func(*Delivery) {}, ConsumeOptions{})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestChannel_CancelByTag(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	c, got := collect(t, q, ConsumeOptions{})

	require.NoError(t, ch.Cancel(c.Tag))
	require.NoError(t, ch.Cancel("unknown"))
	publishN(t, q, "m")

	assert.Empty(t, *got)
	assert.False(t, c.Active())
}

func TestChannel_GeneratedConsumerTags(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")

	c, _ := collect(t, q, ConsumeOptions{})

	assert.True(t, strings.HasPrefix(c.Tag, "amq.ctag-"), c.Tag)
	assert.True(t, strings.HasPrefix(ch.GenerateConsumerTag("worker"), "worker-"))
	assert.NotEqual(t, ch.GenerateConsumerTag(""), ch.GenerateConsumerTag(""))
}

func TestChannel_CloseCancelsConsumersAndRequeuesPending(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	c, got := collect(t, q, ConsumeOptions{ManualAck: true})
	publishN(t, q, "a", "b", "c")
	require.Len(t, *got, 3)
	require.NoError(t, ch.Ack(2, false))

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	assert.True(t, ch.IsClosed())
	assert.False(t, c.Active())
	assert.Zero(t, q.ConsumerCount())
	assert.Empty(t, ch.Tags(amqp.PENDING))
	assert.Equal(t, []uint64{2}, ch.Tags(amqp.ACKED), "settled records stay readable")

	msgs := q.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"a", "c"}, messageBodies(msgs))
	assert.True(t, msgs[0].Redelivered)

	publishN(t, q, "n")
	assert.Len(t, *got, 3)
	assert.Equal(t, 3, q.MessageCount())
}

func TestChannel_WithChannelReturnsUnackedMessages(t *testing.T) {
	s, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")

	err := s.WithChannel(func(scoped *Channel) error {
		_, err := scoped.Consume("jobs", func(*Delivery) {}, ConsumeOptions{ManualAck: true})
		require.NoError(t, err)
		return q.Publish([]byte("work"), PublishOptions{})
	})

	require.NoError(t, err)
	assert.Equal(t, 1, q.MessageCount())
}

func TestChannel_CloseDiscardsPendingOfDeletedQueue(t *testing.T) {
	_, ch := newSession(t)
	q := declareQueue(t, ch, "jobs")
	publishN(t, q, "m")
	_, err := q.Get(GetOptions{ManualAck: true})
	require.NoError(t, err)
	require.NoError(t, q.Delete())

	require.NoError(t, ch.Close())

	assert.Empty(t, ch.Tags(amqp.PENDING))
	assert.Zero(t, q.MessageCount())
}

func TestChannel_ClosedChannelRejectsOperations(t *testing.T) {
	_, ch := newSession(t)
	declareQueue(t, ch, "jobs")
	require.NoError(t, ch.Close())

	_, qErr := ch.Queue("other", QueueOptions{})
	_, xErr := ch.Exchange("x", ExchangeOptions{})
	_, getErr := ch.Get("jobs", GetOptions{})
	checks := map[string]error{
		"ack":     ch.Ack(1, false),
		"nack":    ch.Nack(1, false, true),
		"reject":  ch.Reject(1, false),
		"cancel":  ch.Cancel("tag"),
		"publish": ch.BasicPublish([]byte("m"), ByName(""), "jobs", PublishOptions{}),
		"queue":   qErr,
		"exch":    xErr,
		"get":     getErr,
	}
	for name, err := range checks {
		t.Run(name, func(t *testing.T) {
			var chErr *errors.ChannelError
			require.ErrorAs(t, err, &chErr)
			assert.Equal(t, uint16(amqp.CHANNEL_ERROR), chErr.ReplyCode())
		})
	}
}

func TestChannel_BasicPublishDeclaresUnknownExchange(t *testing.T) {
	s, ch := newSession(t)

	require.NoError(t, ch.BasicPublish([]byte("m"), ByName("implicit"), "k", PublishOptions{}))

	x, ok := s.FindExchange("implicit")
	require.True(t, ok)
	assert.Equal(t, amqp.DIRECT, x.Kind())
}

func TestChannel_NamedPassthroughs(t *testing.T) {
	s, ch := newSession(t)
	declareExchange(t, ch, "source", ExchangeOptions{Kind: amqp.TOPIC})
	declareExchange(t, ch, "dest", ExchangeOptions{Kind: amqp.FANOUT})
	q := declareQueue(t, ch, "jobs")

	require.NoError(t, ch.ExchangeBind("dest", "a.#", "source", nil))
	require.NoError(t, ch.QueueBind("jobs", "", "dest", nil))
	require.NoError(t, ch.BasicPublish([]byte("m"), ByName("source"), "a.b", PublishOptions{}))
	assert.Equal(t, 1, q.MessageCount())

	require.NoError(t, ch.ExchangeUnbind("dest", "a.#", "source"))
	require.NoError(t, ch.BasicPublish([]byte("m"), ByName("source"), "a.b", PublishOptions{}))
	assert.Equal(t, 1, q.MessageCount())

	n, err := ch.QueuePurge("jobs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	publishN(t, q, "x", "y")
	require.NoError(t, ch.QueueUnbind("jobs", "", "dest"))
	n, err = ch.QueueDelete("jobs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, s.QueueExists("jobs"))

	require.NoError(t, ch.ExchangeDelete("dest"))
	assert.False(t, s.ExchangeExists("dest"))
	assert.ErrorIs(t, ch.ExchangeDelete("dest"), errors.ErrNotFound)
	assert.ErrorIs(t, ch.ExchangeBind("missing", "k", "source", nil), errors.ErrNotFound)
	_, err = ch.QueueDelete("jobs")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestChannel_CompatibilityNoOps(t *testing.T) {
	_, ch := newSession(t)

	assert.NoError(t, ch.ConfirmSelect())
	assert.NoError(t, ch.Qos(10))
	assert.True(t, ch.WaitForConfirms())
}
