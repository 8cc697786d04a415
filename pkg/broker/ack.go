package broker

import (
	"sort"

	"github.com/andrelcunha/ottermock/pkg/amqp"
)

// DeliveryRecord is one entry of a channel's acknowledgement table.
type DeliveryRecord struct {
	DeliveryTag uint64
	ConsumerTag string
	QueueName   string
	Message     Message
	State       amqp.AckState

	queue *Queue
}

// ChannelDeliveryState tracks delivery tags issued by one channel. Every tag
// lives in exactly one state; only pending tags move.
type ChannelDeliveryState struct {
	LastDeliveryTag uint64
	records         map[uint64]*DeliveryRecord
}

func newChannelDeliveryState() *ChannelDeliveryState {
	return &ChannelDeliveryState{records: make(map[uint64]*DeliveryRecord)}
}

func (s *ChannelDeliveryState) nextTag() uint64 {
	s.LastDeliveryTag++
	return s.LastDeliveryTag
}

func (s *ChannelDeliveryState) track(tag uint64, consumerTag string, q *Queue, msg *Message) {
	s.records[tag] = &DeliveryRecord{
		DeliveryTag: tag,
		ConsumerTag: consumerTag,
		QueueName:   q.Name(),
		Message:     *msg.clone(),
		State:       amqp.PENDING,
		queue:       q,
	}
}

// settle moves the selected pending tags to state and returns them in tag
// order. With multiple every pending tag up to and including tag is selected.
// Unknown or already settled tags are ignored.
func (s *ChannelDeliveryState) settle(tag uint64, multiple bool, state amqp.AckState) []*DeliveryRecord {
	var selected []*DeliveryRecord
	if multiple {
		for t, rec := range s.records {
			if t <= tag && rec.State == amqp.PENDING {
				selected = append(selected, rec)
			}
		}
		sort.Slice(selected, func(i, j int) bool {
			return selected[i].DeliveryTag < selected[j].DeliveryTag
		})
	} else if rec, ok := s.records[tag]; ok && rec.State == amqp.PENDING {
		selected = append(selected, rec)
	}

	for _, rec := range selected {
		rec.State = state
	}
	return selected
}

// release drops every pending record and returns them in tag order.
func (s *ChannelDeliveryState) release() []*DeliveryRecord {
	var out []*DeliveryRecord
	for t, rec := range s.records {
		if rec.State == amqp.PENDING {
			out = append(out, rec)
			delete(s.records, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveryTag < out[j].DeliveryTag })
	return out
}

func (s *ChannelDeliveryState) state(tag uint64) (amqp.AckState, bool) {
	rec, ok := s.records[tag]
	if !ok {
		return "", false
	}
	return rec.State, true
}

func (s *ChannelDeliveryState) tags(state amqp.AckState) []uint64 {
	var out []uint64
	for t, rec := range s.records {
		if rec.State == state {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *ChannelDeliveryState) snapshot(state amqp.AckState) map[uint64]DeliveryRecord {
	out := make(map[uint64]DeliveryRecord)
	for t, rec := range s.records {
		if rec.State == state {
			c := *rec
			c.Message = *rec.Message.clone()
			out[t] = c
		}
	}
	return out
}
