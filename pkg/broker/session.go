package broker

import (
	"fmt"
	"math"
	"sort"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/andrelcunha/ottermock/pkg/metrics"
	"github.com/andrelcunha/ottermock/pkg/routing"
	"github.com/rs/zerolog/log"
)

type SessionStatus string

const (
	StatusNotConnected SessionStatus = "not_connected"
	StatusConnected    SessionStatus = "connected"
	StatusClosing      SessionStatus = "closing"
	StatusClosed       SessionStatus = "closed"
)

// Session stands in for a broker connection. It owns the registry of
// exchanges and queues shared by all of its channels. A Session is not safe
// for concurrent use.
type Session struct {
	opts         SessionOptions
	metrics      metrics.Collector
	deadLetterer DeadLetterer
	status       SessionStatus

	channels  map[uint16]*Channel
	exchanges map[string]*Exchange
	queues    map[string]*Queue
}

func NewSession(opts SessionOptions) *Session {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOp{}
	}
	if opts.ChannelMax == 0 {
		opts.ChannelMax = math.MaxUint16
	}
	if opts.MaxDeadLetterCycles <= 0 {
		opts.MaxDeadLetterCycles = defaultMaxDeadLetterCycles
	}
	s := &Session{
		opts:      opts,
		metrics:   opts.Metrics,
		status:    StatusNotConnected,
		channels:  make(map[uint16]*Channel),
		exchanges: make(map[string]*Exchange),
		queues:    make(map[string]*Queue),
	}
	if opts.EnableDLX {
		s.deadLetterer = &DeadLetter{session: s}
	} else {
		s.deadLetterer = NoOpDeadLetterer{}
	}
	s.createMandatoryExchanges()
	return s
}

func (s *Session) createMandatoryExchanges() {
	for _, m := range mandatoryExchanges {
		x, err := newExchange(s, nil, m.Name, m.Kind, ExchangeOptions{Durable: true})
		if err != nil {
			log.Error().Err(err).Str("exchange", m.Name).Msg("Failed to create mandatory exchange")
			continue
		}
		s.RegisterExchange(x)
	}
}

func (s *Session) Options() SessionOptions     { return s.opts }
func (s *Session) Metrics() metrics.Collector  { return s.metrics }
func (s *Session) Status() SessionStatus       { return s.status }
func (s *Session) IsConnected() bool           { return s.status == StatusConnected }
func (s *Session) IsClosed() bool              { return s.status == StatusClosed }
func (s *Session) IsClosing() bool             { return s.status == StatusClosing }

func (s *Session) Start() *Session {
	s.status = StatusConnected
	log.Debug().Msg("Session started")
	return s
}

// Close closes every channel, then marks the session closed.
func (s *Session) Close() error {
	if s.status == StatusClosed {
		return nil
	}
	s.status = StatusClosing
	ids := make([]int, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		if err := s.channels[uint16(id)].Close(); err != nil {
			log.Error().Err(err).Int("channel", id).Msg("Failed to close channel")
		}
	}
	s.status = StatusClosed
	log.Debug().Msg("Session closed")
	return nil
}

func (s *Session) Stop() error {
	return s.Close()
}

// CreateChannel opens a channel on the lowest free id.
func (s *Session) CreateChannel() (*Channel, error) {
	for id := uint16(1); id <= s.opts.ChannelMax; id++ {
		if ch, ok := s.channels[id]; !ok || ch.IsClosed() {
			return s.openChannel(id), nil
		}
		if id == math.MaxUint16 {
			break
		}
	}
	return nil, errors.NewConnectionError(
		fmt.Sprintf("no free channel ids (channel_max=%d)", s.opts.ChannelMax),
		uint16(amqp.NOT_ALLOWED), uint16(amqp.CHANNEL), uint16(amqp.CHANNEL_OPEN))
}

// Channel returns the open channel with id, opening a fresh one when the id
// is unused or its channel was closed. Id 0 is reserved.
func (s *Session) Channel(id uint16) (*Channel, error) {
	if id == 0 {
		return nil, errors.NewInvalidArgumentError("channel id", "channel number 0 is reserved in the protocol and cannot be used")
	}
	if id > s.opts.ChannelMax {
		return nil, errors.NewInvalidArgumentError("channel id", fmt.Sprintf("%d exceeds channel_max %d", id, s.opts.ChannelMax))
	}
	if ch, ok := s.channels[id]; ok && ch.IsOpen() {
		return ch, nil
	}
	return s.openChannel(id), nil
}

// Channels lists every channel the session has opened, closed ones included,
// ordered by id.
func (s *Session) Channels() []*Channel {
	out := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Session) openChannel(id uint16) *Channel {
	ch := newChannel(s, id).Open()
	s.channels[id] = ch
	log.Debug().Uint16("channel", id).Msg("Channel opened")
	return ch
}

// WithChannel runs fn on a fresh channel and closes it on every exit path,
// panics included.
func (s *Session) WithChannel(fn func(ch *Channel) error) error {
	ch, err := s.CreateChannel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return fn(ch)
}

// WithChannelID is WithChannel for a caller-chosen id.
func (s *Session) WithChannelID(id uint16, fn func(ch *Channel) error) error {
	ch, err := s.Channel(id)
	if err != nil {
		return err
	}
	defer ch.Close()
	return fn(ch)
}

func (s *Session) FindExchange(name string) (*Exchange, bool) {
	x, ok := s.exchanges[name]
	return x, ok
}

func (s *Session) RegisterExchange(x *Exchange) *Exchange {
	s.exchanges[x.name] = x
	return x
}

func (s *Session) DeregisterExchange(name string) {
	delete(s.exchanges, name)
}

func (s *Session) ExchangeExists(name string) bool {
	_, ok := s.exchanges[name]
	return ok
}

func (s *Session) FindQueue(name string) (*Queue, bool) {
	q, ok := s.queues[name]
	return q, ok
}

func (s *Session) RegisterQueue(q *Queue) *Queue {
	s.queues[q.name] = q
	return q
}

func (s *Session) DeregisterQueue(name string) {
	delete(s.queues, name)
}

func (s *Session) QueueExists(name string) bool {
	_, ok := s.queues[name]
	return ok
}

func (s *Session) ExchangeNames() []string {
	names := make([]string, 0, len(s.exchanges))
	for name := range s.exchanges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) QueueNames() []string {
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// removeBindingsTo drops every binding that targets dest from every
// registered exchange.
func (s *Session) removeBindingsTo(dest routing.Destination) {
	for _, x := range s.exchanges {
		if n := x.table.RemoveDestination(dest); n > 0 {
			log.Debug().Str("exchange", x.name).Str("destination", dest.Name()).Int("bindings", n).Msg("Removed bindings")
		}
	}
}
