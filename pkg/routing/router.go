package routing

import (
	"fmt"
	"regexp"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Router computes the destination set of a publish from an exchange's table.
// Each destination appears at most once, in first-seen order.
type Router interface {
	Kind() amqp.ExchangeKind
	Route(table *Table, routingKey string, headers amqp091.Table) []Destination
}

func NewRouter(kind amqp.ExchangeKind) (Router, error) {
	switch kind {
	case amqp.DIRECT:
		return directRouter{}, nil
	case amqp.FANOUT:
		return fanoutRouter{}, nil
	case amqp.TOPIC:
		return &topicRouter{patterns: make(map[string]*regexp.Regexp)}, nil
	case amqp.HEADERS:
		return headersRouter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exchange kind: %s", kind)
	}
}

type destinationSet struct {
	seen map[Destination]struct{}
	list []Destination
}

func (s *destinationSet) add(d Destination) {
	if s.seen == nil {
		s.seen = make(map[Destination]struct{})
	}
	if _, ok := s.seen[d]; ok {
		return
	}
	s.seen[d] = struct{}{}
	s.list = append(s.list, d)
}

type directRouter struct{}

func (directRouter) Kind() amqp.ExchangeKind { return amqp.DIRECT }

func (directRouter) Route(table *Table, routingKey string, _ amqp091.Table) []Destination {
	var set destinationSet
	for _, b := range table.bindings[routingKey] {
		set.add(b.Destination)
	}
	return set.list
}

type fanoutRouter struct{}

func (fanoutRouter) Kind() amqp.ExchangeKind { return amqp.FANOUT }

func (fanoutRouter) Route(table *Table, _ string, _ amqp091.Table) []Destination {
	var set destinationSet
	for _, key := range table.keys {
		for _, b := range table.bindings[key] {
			set.add(b.Destination)
		}
	}
	return set.list
}

type topicRouter struct {
	patterns map[string]*regexp.Regexp
}

func (*topicRouter) Kind() amqp.ExchangeKind { return amqp.TOPIC }

func (r *topicRouter) Route(table *Table, routingKey string, _ amqp091.Table) []Destination {
	var set destinationSet
	// Wildcard routing keys are compiled per publish and never cached.
	var keyPattern *regexp.Regexp
	if HasWildcard(routingKey) {
		keyPattern = CompileTopic(routingKey)
	}
	for _, key := range table.keys {
		if !r.matches(routingKey, key, keyPattern) {
			continue
		}
		for _, b := range table.bindings[key] {
			set.add(b.Destination)
		}
	}
	return set.list
}

func (r *topicRouter) matches(routingKey, bindingKey string, keyPattern *regexp.Regexp) bool {
	if r.compile(bindingKey).MatchString(routingKey) {
		return true
	}
	return keyPattern != nil && !HasWildcard(bindingKey) && keyPattern.MatchString(bindingKey)
}

// compile returns the cached pattern of a binding key.
func (r *topicRouter) compile(bindingKey string) *regexp.Regexp {
	if re, ok := r.patterns[bindingKey]; ok {
		return re
	}
	re := CompileTopic(bindingKey)
	r.patterns[bindingKey] = re
	return re
}

// headersRouter ignores the routing key and matches message headers against
// each binding's arguments.
type headersRouter struct{}

func (headersRouter) Kind() amqp.ExchangeKind { return amqp.HEADERS }

func (headersRouter) Route(table *Table, _ string, headers amqp091.Table) []Destination {
	var set destinationSet
	for _, key := range table.keys {
		for _, b := range table.bindings[key] {
			if MatchHeaders(b.Args, headers) {
				set.add(b.Destination)
			}
		}
	}
	return set.list
}
