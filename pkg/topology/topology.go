package topology

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"gopkg.in/yaml.v3"
)

// Exchange declares an exchange. Type defaults to direct.
type Exchange struct {
	Name       string        `yaml:"name"`
	Type       string        `yaml:"type,omitempty"`
	Durable    bool          `yaml:"durable,omitempty"`
	AutoDelete bool          `yaml:"auto_delete,omitempty"`
	Internal   bool          `yaml:"internal,omitempty"`
	Args       amqp091.Table `yaml:"args,omitempty"`
}

// Queue declares a queue. An empty name gets a generated one.
type Queue struct {
	Name       string        `yaml:"name"`
	Durable    bool          `yaml:"durable,omitempty"`
	Exclusive  bool          `yaml:"exclusive,omitempty"`
	AutoDelete bool          `yaml:"auto_delete,omitempty"`
	Args       amqp091.Table `yaml:"args,omitempty"`
}

// QueueBinding binds a queue to an exchange.
type QueueBinding struct {
	Queue      string        `yaml:"queue"`
	Exchange   string        `yaml:"exchange"`
	RoutingKey string        `yaml:"routing_key,omitempty"`
	Args       amqp091.Table `yaml:"args,omitempty"`
}

// ExchangeBinding routes messages from Source into Destination.
type ExchangeBinding struct {
	Destination string        `yaml:"destination"`
	Source      string        `yaml:"source"`
	RoutingKey  string        `yaml:"routing_key,omitempty"`
	Args        amqp091.Table `yaml:"args,omitempty"`
}

// Consumer subscribes to a queue and settles every delivery with Action.
type Consumer struct {
	Queue   string `yaml:"queue"`
	Tag     string `yaml:"tag,omitempty"`
	Action  Action `yaml:"action,omitempty"`
	Requeue bool   `yaml:"requeue,omitempty"`
}

// Publish sends Body Count times (at least once).
type Publish struct {
	Exchange    string        `yaml:"exchange"`
	RoutingKey  string        `yaml:"routing_key,omitempty"`
	Body        string        `yaml:"body"`
	Count       int           `yaml:"count,omitempty"`
	Mandatory   bool          `yaml:"mandatory,omitempty"`
	ContentType string        `yaml:"content_type,omitempty"`
	Headers     amqp091.Table `yaml:"headers,omitempty"`
}

// Pop takes up to Count messages (at least one) from Queue after the
// publishes ran. It stops early when the queue runs dry.
type Pop struct {
	Queue string `yaml:"queue"`
	Count int    `yaml:"count,omitempty"`
}

type Action string

const (
	ActionNone   Action = ""
	ActionAck    Action = "ack"
	ActionNack   Action = "nack"
	ActionReject Action = "reject"
)

// Topology is a scenario: what to declare, how to wire it and what to send.
type Topology struct {
	Exchanges        []Exchange        `yaml:"exchanges,omitempty"`
	Queues           []Queue           `yaml:"queues,omitempty"`
	ExchangeBindings []ExchangeBinding `yaml:"exchange_bindings,omitempty"`
	QueueBindings    []QueueBinding    `yaml:"queue_bindings,omitempty"`
	Consumers        []Consumer        `yaml:"consumers,omitempty"`
	Publishes        []Publish         `yaml:"publish,omitempty"`
	Pops             []Pop             `yaml:"pops,omitempty"`
}

// Load decodes a topology from YAML. Unknown fields are rejected.
func Load(r io.Reader) (*Topology, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Topology
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("topology is empty")
		}
		return nil, fmt.Errorf("failed to decode topology: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func LoadFile(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open topology file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks references that YAML decoding cannot.
func (t *Topology) Validate() error {
	var errs []error
	for i, x := range t.Exchanges {
		if _, err := amqp.ParseExchangeKind(x.Type); err != nil {
			errs = append(errs, fmt.Errorf("exchanges[%d] %q: %w", i, x.Name, err))
		}
	}
	for i, b := range t.QueueBindings {
		if b.Queue == "" {
			errs = append(errs, fmt.Errorf("queue_bindings[%d]: queue is required", i))
		}
	}
	for i, b := range t.ExchangeBindings {
		if b.Destination == "" || b.Source == "" {
			errs = append(errs, fmt.Errorf("exchange_bindings[%d]: source and destination are required", i))
		}
	}
	for i, c := range t.Consumers {
		if c.Queue == "" {
			errs = append(errs, fmt.Errorf("consumers[%d]: queue is required", i))
		}
		switch c.Action {
		case ActionNone, ActionAck:
		case ActionNack, ActionReject:
			// a lone consumer that requeues would receive the same message forever
			if c.Requeue {
				errs = append(errs, fmt.Errorf("consumers[%d]: requeue is not supported for %s", i, c.Action))
			}
		default:
			errs = append(errs, fmt.Errorf("consumers[%d]: unknown action %q", i, c.Action))
		}
	}
	for i, p := range t.Publishes {
		if p.Count < 0 {
			errs = append(errs, fmt.Errorf("publish[%d]: count must not be negative", i))
		}
	}
	for i, p := range t.Pops {
		if p.Queue == "" {
			errs = append(errs, fmt.Errorf("pops[%d]: queue is required", i))
		}
		if p.Count < 0 {
			errs = append(errs, fmt.Errorf("pops[%d]: count must not be negative", i))
		}
	}
	return errors.Join(errs...)
}
