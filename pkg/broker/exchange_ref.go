package broker

import (
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
)

// ExchangeRef names an exchange either by registry name or by handle.
type ExchangeRef struct {
	name   string
	handle *Exchange
}

// ByName refers to an exchange through the session registry.
func ByName(name string) ExchangeRef {
	return ExchangeRef{name: name}
}

// Handle refers to an exchange directly, bypassing the registry.
func Handle(x *Exchange) ExchangeRef {
	return ExchangeRef{handle: x}
}

func (r ExchangeRef) Name() string {
	if r.handle != nil {
		return r.handle.Name()
	}
	return r.name
}

func (r ExchangeRef) IsHandle() bool {
	return r.handle != nil
}

// resolve returns the referenced exchange. Names missing from the registry
// yield NotFoundError; deleted handles yield DeletedResourceError.
func (r ExchangeRef) resolve(s *Session) (*Exchange, error) {
	if r.handle != nil {
		if r.handle.deleted {
			return nil, errors.NewDeletedResourceError(errors.KindExchange, r.handle.name)
		}
		return r.handle, nil
	}
	x, ok := s.FindExchange(r.name)
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindExchange, r.name)
	}
	return x, nil
}
