package management

import (
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/andrelcunha/ottermock/pkg/broker"
	"github.com/andrelcunha/ottermock/pkg/routing"
)

// ListBindings lists the bindings of every exchange, sources ordered by name
// and each source's bindings in insertion order.
func (s *Service) ListBindings() []BindingDTO {
	dtos := make([]BindingDTO, 0)
	for _, name := range s.session.ExchangeNames() {
		if x, ok := s.session.FindExchange(name); ok {
			dtos = appendExchangeBindings(dtos, x)
		}
	}
	return dtos
}

// ListExchangeBindings lists the bindings whose source is the named exchange.
func (s *Service) ListExchangeBindings(name string) ([]BindingDTO, error) {
	x, ok := s.session.FindExchange(name)
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindExchange, name)
	}
	return appendExchangeBindings(make([]BindingDTO, 0), x), nil
}

// ListQueueBindings lists the bindings whose destination is the named queue.
func (s *Service) ListQueueBindings(name string) ([]BindingDTO, error) {
	if _, ok := s.session.FindQueue(name); !ok {
		return nil, errors.NewNotFoundError(errors.KindQueue, name)
	}
	var out []BindingDTO
	for _, b := range s.ListBindings() {
		if b.DestinationType == string(routing.QueueDestination) && b.Destination == name {
			out = append(out, b)
		}
	}
	return out, nil
}

func appendExchangeBindings(dtos []BindingDTO, x *broker.Exchange) []BindingDTO {
	for _, b := range x.Bindings() {
		dtos = append(dtos, BindingDTO{
			Source:          x.Name(),
			Destination:     b.Destination.Name(),
			DestinationType: string(b.Destination.DestinationKind()),
			RoutingKey:      b.Key,
			Arguments:       b.Args,
		})
	}
	return dtos
}
