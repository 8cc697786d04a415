package management

import (
	"fmt"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/andrelcunha/ottermock/pkg/broker"
)

// ListExchanges returns every registered exchange ordered by name.
func (s *Service) ListExchanges() []ExchangeDTO {
	names := s.session.ExchangeNames()
	dtos := make([]ExchangeDTO, 0, len(names))
	for _, name := range names {
		if x, ok := s.session.FindExchange(name); ok {
			dtos = append(dtos, exchangeToDTO(x))
		}
	}
	return dtos
}

func (s *Service) GetExchange(name string) (*ExchangeDTO, error) {
	x, ok := s.session.FindExchange(name)
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindExchange, name)
	}
	dto := exchangeToDTO(x)
	return &dto, nil
}

// DeleteExchange deletes the named exchange. Missing exchanges are not an
// error.
func (s *Service) DeleteExchange(name string, ifUnused bool) error {
	x, ok := s.session.FindExchange(name)
	if !ok {
		return nil // Idempotent delete
	}
	if ifUnused && len(x.Bindings()) > 0 {
		return errors.NewChannelError(
			fmt.Sprintf("exchange '%s' has active bindings", name),
			uint16(amqp.PRECONDITION_FAILED), uint16(amqp.EXCHANGE), uint16(amqp.EXCHANGE_DELETE))
	}
	return x.Delete()
}

func exchangeToDTO(x *broker.Exchange) ExchangeDTO {
	return ExchangeDTO{
		Name:       x.Name(),
		Type:       string(x.Kind()),
		Durable:    x.Durable(),
		AutoDelete: x.AutoDelete(),
		Internal:   x.Internal(),
		Arguments:  x.Arguments(),
		Bindings:   len(x.Bindings()),
	}
}
