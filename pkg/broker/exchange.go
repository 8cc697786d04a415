package broker

import (
	"fmt"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/andrelcunha/ottermock/pkg/routing"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	DEFAULT_EXCHANGE  = ""
	MANDATORY_DIRECT  = "amq.direct"
	MANDATORY_FANOUT  = "amq.fanout"
	MANDATORY_TOPIC   = "amq.topic"
	MANDATORY_HEADERS = "amq.headers"
)

type MandatoryExchange struct {
	Name string
	Kind amqp.ExchangeKind
}

var mandatoryExchanges = []MandatoryExchange{
	{Name: DEFAULT_EXCHANGE, Kind: amqp.DIRECT},
	{Name: MANDATORY_DIRECT, Kind: amqp.DIRECT},
	{Name: MANDATORY_FANOUT, Kind: amqp.FANOUT},
	{Name: MANDATORY_TOPIC, Kind: amqp.TOPIC},
	{Name: MANDATORY_HEADERS, Kind: amqp.HEADERS},
}

func isMandatoryExchange(name string) bool {
	for _, m := range mandatoryExchanges {
		if m.Name == name {
			return true
		}
	}
	return false
}

type Exchange struct {
	name    string
	kind    amqp.ExchangeKind
	opts    ExchangeOptions
	router  routing.Router
	table   *routing.Table
	session *Session
	channel *Channel
	deleted bool

	returnHandlers []func(amqp091.Return)
}

func newExchange(s *Session, ch *Channel, name string, kind amqp.ExchangeKind, opts ExchangeOptions) (*Exchange, error) {
	router, err := routing.NewRouter(kind)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("exchange kind", err.Error())
	}
	opts.Kind = kind
	opts.Arguments = cloneTable(opts.Arguments)
	return &Exchange{
		name:    name,
		kind:    kind,
		opts:    opts,
		router:  router,
		table:   routing.NewTable(),
		session: s,
		channel: ch,
	}, nil
}

func (e *Exchange) Name() string                             { return e.name }
func (e *Exchange) DestinationKind() routing.DestinationKind { return routing.ExchangeDestination }
func (e *Exchange) Kind() amqp.ExchangeKind                  { return e.kind }
func (e *Exchange) Durable() bool                            { return e.opts.Durable }
func (e *Exchange) AutoDelete() bool                         { return e.opts.AutoDelete }
func (e *Exchange) Internal() bool                           { return e.opts.Internal }
func (e *Exchange) Arguments() amqp091.Table                 { return cloneTable(e.opts.Arguments) }
func (e *Exchange) IsDeleted() bool                          { return e.deleted }

// Channel returns the declaring channel, or nil for exchanges the session
// creates itself.
func (e *Exchange) Channel() *Channel { return e.channel }

func (e *Exchange) String() string {
	return fmt.Sprintf("exchange(%q, %s)", e.name, e.kind)
}

// OnReturn registers a handler for mandatory messages that reached no queue.
func (e *Exchange) OnReturn(fn func(amqp091.Return)) {
	e.returnHandlers = append(e.returnHandlers, fn)
}

// Publish routes body through the exchange. Every destination is resolved
// before any queue is touched, so a failing publish enqueues nothing.
func (e *Exchange) Publish(body []byte, opts PublishOptions) error {
	return e.publish(body, opts, e.channel)
}

type route struct {
	queue    *Queue
	exchange string
}

func (e *Exchange) publish(body []byte, opts PublishOptions, via *Channel) error {
	routes, err := e.resolve(opts.RoutingKey, opts.Properties.Headers, make(map[*Exchange]bool))
	if err != nil {
		return err
	}
	e.session.metrics.RecordExchangePublish(e.name, string(e.kind))
	log.Debug().Str("exchange", e.name).Str("routing_key", opts.RoutingKey).Int("queues", len(routes)).Msg("Publishing message")

	if len(routes) == 0 {
		if opts.Mandatory {
			e.returnMessage(NewMessage(body, opts.Properties, e.name, opts.RoutingKey), via)
		}
		return nil
	}
	for _, r := range routes {
		r.queue.enqueue(NewMessage(body, opts.Properties, r.exchange, opts.RoutingKey))
	}
	return nil
}

// resolve walks the binding graph and returns every queue reached, tagged with
// the exchange that selected it. path guards against binding cycles.
func (e *Exchange) resolve(routingKey string, headers amqp091.Table, path map[*Exchange]bool) ([]route, error) {
	if e.deleted {
		return nil, errors.NewDeletedResourceError(errors.KindExchange, e.name)
	}
	path[e] = true
	defer delete(path, e)

	dests := e.router.Route(e.table, routingKey, headers)
	if e.name == DEFAULT_EXCHANGE {
		if q, ok := e.session.FindQueue(routingKey); ok && !containsDestination(dests, q) {
			dests = append(dests, q)
		}
	}

	var routes []route
	for _, d := range dests {
		switch dest := d.(type) {
		case *Queue:
			if dest.deleted {
				return nil, errors.NewDeletedResourceError(errors.KindQueue, dest.name)
			}
			routes = append(routes, route{queue: dest, exchange: e.name})
		case *Exchange:
			if path[dest] {
				log.Debug().Str("exchange", e.name).Str("destination", dest.name).Msg("Skipping exchange binding cycle")
				continue
			}
			sub, err := dest.resolve(routingKey, headers, path)
			if err != nil {
				return nil, err
			}
			routes = append(routes, sub...)
		default:
			log.Warn().Str("exchange", e.name).Str("destination", d.Name()).Msg("Unknown destination type")
		}
	}
	return routes, nil
}

func containsDestination(dests []routing.Destination, d routing.Destination) bool {
	for _, x := range dests {
		if routing.SameDestination(x, d) {
			return true
		}
	}
	return false
}

func (e *Exchange) returnMessage(msg *Message, via *Channel) {
	ret := newReturn(msg)
	e.session.metrics.RecordExchangeReturn(e.name)

	handled := false
	for _, fn := range e.returnHandlers {
		fn(ret)
		handled = true
	}
	if via != nil && via.notifyReturn(ret) {
		handled = true
	}
	if !handled {
		log.Warn().Str("exchange", e.name).Str("routing_key", msg.RoutingKey).Msg("Mandatory message returned with no return handler")
	}
}

// AddRoute appends a binding. The same destination may be bound several
// times under one key.
func (e *Exchange) AddRoute(key string, dest routing.Destination, args amqp091.Table) error {
	if e.deleted {
		return errors.NewDeletedResourceError(errors.KindExchange, e.name)
	}
	if e.kind == amqp.HEADERS && !routing.ValidMatchMode(args) {
		return errors.NewInvalidArgumentError(amqp.ARG_X_MATCH, fmt.Sprintf("%v", args[amqp.ARG_X_MATCH]))
	}
	e.table.Add(key, dest, args)
	log.Debug().Str("exchange", e.name).Str("destination", dest.Name()).Str("routing_key", key).Msg("Route added")
	return nil
}

// RemoveRoute removes one binding of dest under key and reports whether one
// was found.
func (e *Exchange) RemoveRoute(key string, dest routing.Destination) (bool, error) {
	if e.deleted {
		return false, errors.NewDeletedResourceError(errors.KindExchange, e.name)
	}
	removed := e.table.Remove(key, dest)
	if removed {
		log.Debug().Str("exchange", e.name).Str("destination", dest.Name()).Str("routing_key", key).Msg("Route removed")
	}
	return removed, nil
}

// RoutesTo reports whether dest is bound under the key from opts, which
// defaults to the destination's name.
func (e *Exchange) RoutesTo(dest routing.Destination, opts BindOptions) bool {
	return e.table.Contains(bindingKey(opts, dest.Name()), dest)
}

// Deprecated: use RoutesTo.
func (e *Exchange) HasBinding(dest routing.Destination, opts BindOptions) bool {
	log.Warn().Bool("deprecated", true).Str("exchange", e.name).Msg("HasBinding is deprecated, use RoutesTo")
	return e.RoutesTo(dest, opts)
}

func (e *Exchange) Bindings() []routing.Binding {
	return e.table.All()
}

// Bind makes e a destination of source. The binding key defaults to e's name.
func (e *Exchange) Bind(source ExchangeRef, opts BindOptions) error {
	if e.deleted {
		return errors.NewDeletedResourceError(errors.KindExchange, e.name)
	}
	src, err := source.resolve(e.session)
	if err != nil {
		return err
	}
	return src.AddRoute(bindingKey(opts, e.name), e, opts.Arguments)
}

func (e *Exchange) Unbind(source ExchangeRef, opts BindOptions) error {
	if e.deleted {
		return errors.NewDeletedResourceError(errors.KindExchange, e.name)
	}
	src, err := source.resolve(e.session)
	if err != nil {
		return err
	}
	_, err = src.RemoveRoute(bindingKey(opts, e.name), e)
	return err
}

func (e *Exchange) BoundTo(source ExchangeRef, opts BindOptions) (bool, error) {
	if e.deleted {
		return false, errors.NewDeletedResourceError(errors.KindExchange, e.name)
	}
	src, err := source.resolve(e.session)
	if err != nil {
		return false, err
	}
	return src.RoutesTo(e, opts), nil
}

// Delete marks the exchange deleted, drops it from the registry and removes
// every binding that targets it.
func (e *Exchange) Delete() error {
	if e.deleted {
		return errors.NewDeletedResourceError(errors.KindExchange, e.name)
	}
	if isMandatoryExchange(e.name) {
		return errors.NewChannelError(fmt.Sprintf("cannot delete mandatory exchange '%s'", e.name), uint16(amqp.ACCESS_REFUSED), uint16(amqp.EXCHANGE), uint16(amqp.EXCHANGE_DELETE))
	}
	e.deleted = true
	if x, ok := e.session.FindExchange(e.name); ok && x == e {
		e.session.DeregisterExchange(e.name)
	}
	e.session.removeBindingsTo(e)
	log.Debug().Str("exchange", e.name).Msg("Deleted exchange")
	return nil
}

func bindingKey(opts BindOptions, fallback string) string {
	if opts.RoutingKey != "" {
		return opts.RoutingKey
	}
	return fallback
}
