package management

import (
	"github.com/andrelcunha/ottermock/pkg/broker"
)

// SessionProvider is the part of a session that inspection needs.
type SessionProvider interface {
	Status() broker.SessionStatus
	ExchangeNames() []string
	QueueNames() []string
	FindExchange(name string) (*broker.Exchange, bool)
	FindQueue(name string) (*broker.Queue, bool)
	Channels() []*broker.Channel
}

// Service exposes read views and a few administrative operations over a
// session, the way a management UI would see the broker.
type Service struct {
	session SessionProvider
}

func NewService(s SessionProvider) *Service {
	return &Service{session: s}
}

// unackedByQueue counts pending deliveries per queue across open channels.
func (s *Service) unackedByQueue() map[string]int {
	counts := make(map[string]int)
	for _, ch := range s.session.Channels() {
		if !ch.IsOpen() {
			continue
		}
		for _, rec := range ch.Pending() {
			counts[rec.QueueName]++
		}
	}
	return counts
}
