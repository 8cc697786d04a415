package management

import (
	"fmt"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/andrelcunha/ottermock/pkg/broker"
)

// ListQueues returns every registered queue ordered by name.
func (s *Service) ListQueues() []QueueDTO {
	unacked := s.unackedByQueue()
	names := s.session.QueueNames()
	dtos := make([]QueueDTO, 0, len(names))
	for _, name := range names {
		if q, ok := s.session.FindQueue(name); ok {
			dtos = append(dtos, queueToDTO(q, unacked[name]))
		}
	}
	return dtos
}

func (s *Service) GetQueue(name string) (*QueueDTO, error) {
	q, ok := s.session.FindQueue(name)
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindQueue, name)
	}
	dto := queueToDTO(q, s.unackedByQueue()[name])
	return &dto, nil
}

// DeleteQueue deletes the named queue. Missing queues are not an error.
func (s *Service) DeleteQueue(name string, ifUnused, ifEmpty bool) error {
	q, ok := s.session.FindQueue(name)
	if !ok {
		return nil // Idempotent delete
	}
	if ifUnused && q.ConsumerCount() > 0 {
		return errors.NewChannelError(
			fmt.Sprintf("queue '%s' has %d consumers, cannot delete (if-unused)", name, q.ConsumerCount()),
			uint16(amqp.PRECONDITION_FAILED), uint16(amqp.QUEUE), uint16(amqp.QUEUE_DELETE))
	}
	if ifEmpty && q.MessageCount() > 0 {
		return errors.NewChannelError(
			fmt.Sprintf("queue '%s' has %d messages, cannot delete (if-empty)", name, q.MessageCount()),
			uint16(amqp.PRECONDITION_FAILED), uint16(amqp.QUEUE), uint16(amqp.QUEUE_DELETE))
	}
	return q.Delete()
}

func (s *Service) PurgeQueue(name string) (int, error) {
	q, ok := s.session.FindQueue(name)
	if !ok {
		return 0, errors.NewNotFoundError(errors.KindQueue, name)
	}
	return q.Purge()
}

func queueToDTO(q *broker.Queue, unackedCount int) QueueDTO {
	ready := q.MessageCount()
	args := q.Arguments()
	dto := QueueDTO{
		Name:            q.Name(),
		Messages:        ready,
		MessagesUnacked: unackedCount,
		MessagesTotal:   ready + unackedCount,
		Consumers:       q.ConsumerCount(),
		Durable:         q.Durable(),
		AutoDelete:      q.AutoDelete(),
		Exclusive:       q.Exclusive(),
		Arguments:       args,
	}

	// Extract DLX configuration
	if dlx, ok := args[amqp.ARG_DEAD_LETTER_EXCHANGE].(string); ok {
		dto.DeadLetterExchange = &dlx
	}
	if dlrk, ok := args[amqp.ARG_DEAD_LETTER_ROUTING_KEY].(string); ok {
		dto.DeadLetterRoutingKey = &dlrk
	}
	return dto
}
