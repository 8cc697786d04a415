package broker

import (
	"fmt"

	"github.com/andrelcunha/ottermock/config"
	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/metrics"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

const defaultMaxDeadLetterCycles = 100

// SessionOptions is fixed for the lifetime of a session.
type SessionOptions struct {
	// LegacyPop makes Queue.Pop return deliveries without channel
	// bookkeeping and log a deprecation warning.
	LegacyPop bool
	// EnableDLX routes rejected messages to the queue's dead-letter exchange.
	EnableDLX bool
	// MaxDeadLetterCycles caps how often one message may be dead-lettered
	// from the same queue for the same reason. Past the cap it is discarded.
	// 0 means the default of 100.
	MaxDeadLetterCycles int
	// ChannelMax is the highest channel id a session hands out. 0 means 65535.
	ChannelMax uint16
	Metrics    metrics.Collector
}

func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		EnableDLX:           true,
		MaxDeadLetterCycles: defaultMaxDeadLetterCycles,
		ChannelMax:          2048,
		Metrics:             metrics.NoOp{},
	}
}

// SessionOptionsFromConfig maps loaded configuration onto session options.
// When metrics are enabled a Prometheus collector with a private registry is
// attached.
func SessionOptionsFromConfig(cfg *config.Config) (SessionOptions, error) {
	opts := DefaultSessionOptions()
	if cfg == nil {
		return opts, nil
	}
	opts.LegacyPop = cfg.LegacyPop
	opts.EnableDLX = cfg.EnableDLX
	opts.MaxDeadLetterCycles = cfg.MaxDeadLetterCycles
	opts.ChannelMax = cfg.ChannelMax
	if cfg.EnableMetrics {
		collector, err := metrics.NewPrometheusCollector(cfg.MetricsNamespace, nil)
		if err != nil {
			return opts, fmt.Errorf("failed to create metrics collector: %w", err)
		}
		opts.Metrics = collector
	}
	return opts, nil
}

type ExchangeOptions struct {
	// Kind defaults to direct on first declaration. On redeclaration an empty
	// kind accepts whatever the existing exchange uses.
	Kind       amqp.ExchangeKind
	Durable    bool
	AutoDelete bool
	Internal   bool
	Arguments  amqp091.Table
}

type QueueOptions struct {
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	Arguments  amqp091.Table
}

// BindOptions selects the binding key. An empty RoutingKey means the name of
// the bound destination.
type BindOptions struct {
	RoutingKey string
	Arguments  amqp091.Table
}

type PublishOptions struct {
	RoutingKey string
	Mandatory  bool
	Properties Properties
}

type ConsumeOptions struct {
	ConsumerTag string
	ManualAck   bool
	Exclusive   bool
	Arguments   amqp091.Table
}

type GetOptions struct {
	ManualAck bool
}
