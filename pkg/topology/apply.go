package topology

import (
	"fmt"
	"io"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/broker"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type QueueReport struct {
	Messages int      `yaml:"messages"`
	Bodies   []string `yaml:"bodies,omitempty"`
}

type ConsumerReport struct {
	Tag      string   `yaml:"tag"`
	Queue    string   `yaml:"queue"`
	Received []string `yaml:"received,omitempty"`
}

type ReturnReport struct {
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	ReplyCode  uint16 `yaml:"reply_code"`
	Body       string `yaml:"body"`
}

// PopReport is one message taken by a pop step. Legacy pops carry tag 0.
type PopReport struct {
	Queue       string `yaml:"queue"`
	DeliveryTag uint64 `yaml:"delivery_tag"`
	Redelivered bool   `yaml:"redelivered,omitempty"`
	Body        string `yaml:"body"`
}

// Report is the state left behind by Apply.
type Report struct {
	Queues    map[string]QueueReport `yaml:"queues"`
	Consumers []ConsumerReport       `yaml:"consumers,omitempty"`
	Returns   []ReturnReport         `yaml:"returns,omitempty"`
	Pops      []PopReport            `yaml:"pops,omitempty"`
	Acks      map[amqp.AckState]int  `yaml:"acks,omitempty"`
}

// Write renders the report as YAML.
func (r *Report) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// Apply declares the topology on ch, registers its consumers, runs the
// publishes and pops, and reports what every declared queue holds afterwards. Apply
// stops at the first failing step.
func (t *Topology) Apply(ch *broker.Channel) (*Report, error) {
	report := &Report{Queues: make(map[string]QueueReport)}
	ch.NotifyReturn(func(ret amqp091.Return) {
		report.Returns = append(report.Returns, ReturnReport{
			Exchange:   ret.Exchange,
			RoutingKey: ret.RoutingKey,
			ReplyCode:  ret.ReplyCode,
			Body:       string(ret.Body),
		})
	})

	for _, x := range t.Exchanges {
		kind, err := amqp.ParseExchangeKind(x.Type)
		if err != nil {
			return nil, err
		}
		if _, err := ch.Exchange(x.Name, broker.ExchangeOptions{
			Kind:       kind,
			Durable:    x.Durable,
			AutoDelete: x.AutoDelete,
			Internal:   x.Internal,
			Arguments:  x.Args,
		}); err != nil {
			return nil, fmt.Errorf("failed to declare exchange %q: %w", x.Name, err)
		}
	}

	queues := make([]*broker.Queue, 0, len(t.Queues))
	for _, q := range t.Queues {
		declared, err := ch.Queue(q.Name, broker.QueueOptions{
			Durable:    q.Durable,
			Exclusive:  q.Exclusive,
			AutoDelete: q.AutoDelete,
			Arguments:  q.Args,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to declare queue %q: %w", q.Name, err)
		}
		queues = append(queues, declared)
	}

	for _, b := range t.ExchangeBindings {
		if err := ch.ExchangeBind(b.Destination, b.RoutingKey, b.Source, b.Args); err != nil {
			return nil, fmt.Errorf("failed to bind exchange %q to %q: %w", b.Destination, b.Source, err)
		}
	}
	for _, b := range t.QueueBindings {
		if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, b.Args); err != nil {
			return nil, fmt.Errorf("failed to bind queue %q to %q: %w", b.Queue, b.Exchange, err)
		}
	}

	report.Consumers = make([]ConsumerReport, len(t.Consumers))
	for i, c := range t.Consumers {
		if err := subscribe(ch, c, &report.Consumers[i]); err != nil {
			return nil, err
		}
	}

	for _, p := range t.Publishes {
		count := p.Count
		if count == 0 {
			count = 1
		}
		opts := broker.PublishOptions{
			Mandatory:  p.Mandatory,
			Properties: broker.Properties{ContentType: p.ContentType, Headers: p.Headers},
		}
		for n := 0; n < count; n++ {
			if err := ch.BasicPublish([]byte(p.Body), broker.ByName(p.Exchange), p.RoutingKey, opts); err != nil {
				return nil, fmt.Errorf("failed to publish to %q: %w", p.Exchange, err)
			}
		}
	}

	for _, p := range t.Pops {
		popped, err := pop(ch, p)
		if err != nil {
			return nil, err
		}
		report.Pops = append(report.Pops, popped...)
	}

	for _, q := range queues {
		if q.IsDeleted() {
			continue
		}
		qr := QueueReport{Messages: q.MessageCount()}
		for _, m := range q.Messages() {
			qr.Bodies = append(qr.Bodies, string(m.Body))
		}
		report.Queues[q.Name()] = qr
	}
	report.Acks = make(map[amqp.AckState]int)
	for _, state := range amqp.AckStates {
		if n := len(ch.Tags(state)); n > 0 {
			report.Acks[state] = n
		}
	}
	log.Debug().Int("queues", len(report.Queues)).Int("returns", len(report.Returns)).Msg("Topology applied")
	return report, nil
}

func subscribe(ch *broker.Channel, c Consumer, out *ConsumerReport) error {
	manual := c.Action != ActionNone
	consumer, err := ch.Consume(c.Queue, func(d *broker.Delivery) {
		out.Received = append(out.Received, string(d.Body))
		if err := settle(ch, c, d.Info.DeliveryTag); err != nil {
			log.Error().Err(err).Str("queue", c.Queue).Uint64("delivery_tag", d.Info.DeliveryTag).Msg("Failed to settle delivery")
		}
	}, broker.ConsumeOptions{ConsumerTag: c.Tag, ManualAck: manual})
	if err != nil {
		return fmt.Errorf("failed to consume from %q: %w", c.Queue, err)
	}
	out.Tag = consumer.Tag
	out.Queue = c.Queue
	return nil
}

func settle(ch *broker.Channel, c Consumer, tag uint64) error {
	switch c.Action {
	case ActionAck:
		return ch.Ack(tag, false)
	case ActionNack:
		return ch.Nack(tag, false, c.Requeue)
	case ActionReject:
		return ch.Reject(tag, c.Requeue)
	}
	return nil
}

func pop(ch *broker.Channel, p Pop) ([]PopReport, error) {
	q, ok := ch.Session().FindQueue(p.Queue)
	if !ok {
		return nil, fmt.Errorf("failed to pop from %q: queue not found", p.Queue)
	}
	count := p.Count
	if count == 0 {
		count = 1
	}
	var out []PopReport
	for n := 0; n < count; n++ {
		d, err := q.Pop()
		if err != nil {
			return nil, fmt.Errorf("failed to pop from %q: %w", p.Queue, err)
		}
		if d == nil {
			break
		}
		out = append(out, PopReport{
			Queue:       p.Queue,
			DeliveryTag: d.Info.DeliveryTag,
			Redelivered: d.Info.Redelivered,
			Body:        string(d.Body),
		})
	}
	return out, nil
}
