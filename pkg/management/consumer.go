package management

import (
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/andrelcunha/ottermock/pkg/broker"
)

// ListConsumers lists consumers of every queue, queues ordered by name and
// consumers in dispatch order.
func (s *Service) ListConsumers() []ConsumerDTO {
	var dtos []ConsumerDTO
	for _, name := range s.session.QueueNames() {
		if q, ok := s.session.FindQueue(name); ok {
			for _, c := range q.Consumers() {
				dtos = append(dtos, consumerToDTO(q.Name(), c))
			}
		}
	}
	return dtos
}

func (s *Service) ListQueueConsumers(queueName string) ([]ConsumerDTO, error) {
	q, ok := s.session.FindQueue(queueName)
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindQueue, queueName)
	}
	var dtos []ConsumerDTO
	for _, c := range q.Consumers() {
		dtos = append(dtos, consumerToDTO(queueName, c))
	}
	return dtos, nil
}

func consumerToDTO(queueName string, c *broker.Consumer) ConsumerDTO {
	var number uint16
	if ch := c.Channel(); ch != nil {
		number = ch.ID()
	}
	return ConsumerDTO{
		ConsumerTag:   c.Tag,
		QueueName:     queueName,
		ChannelNumber: number,
		AckRequired:   c.ManualAck,
		Exclusive:     c.Exclusive,
		Active:        c.Active(),
		Arguments:     c.Arguments,
	}
}
