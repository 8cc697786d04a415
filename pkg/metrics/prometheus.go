package metrics

import (
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const (
	outcomeAck    = "ack"
	outcomeNack   = "nack"
	outcomeReject = "reject"
)

// PrometheusCollector exports broker events as Prometheus counters and gauges.
type PrometheusCollector struct {
	gatherer prometheus.Gatherer

	exchangePublished *prometheus.CounterVec
	exchangeReturned  *prometheus.CounterVec
	queuePublished    *prometheus.CounterVec
	queueDelivered    *prometheus.CounterVec
	queueDepth        *prometheus.GaugeVec
	acknowledgements  *prometheus.CounterVec
	deadLettered      *prometheus.CounterVec
	channelsOpen      prometheus.Gauge
}

// NewPrometheusCollector registers its metrics on reg. When reg is nil a
// private registry is created, so several collectors can coexist in tests.
func NewPrometheusCollector(namespace string, reg *prometheus.Registry) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &PrometheusCollector{
		gatherer: reg,
		exchangePublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "published_total",
			Help:      "Messages published to an exchange.",
		}, []string{"exchange", "kind"}),
		exchangeReturned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "returned_total",
			Help:      "Mandatory messages returned as unroutable.",
		}, []string{"exchange"}),
		queuePublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "published_total",
			Help:      "Messages appended to a queue.",
		}, []string{"queue"}),
		queueDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "delivered_total",
			Help:      "Messages handed to consumers or fetched with get.",
		}, []string{"queue", "manual_ack"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Messages waiting in a queue.",
		}, []string{"queue"}),
		acknowledgements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "acknowledgements_total",
			Help:      "Settled deliveries by outcome.",
		}, []string{"queue", "outcome", "requeue"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dead_lettered_total",
			Help:      "Messages republished to a dead-letter exchange.",
		}, []string{"queue", "exchange"}),
		channelsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "channels_open",
			Help:      "Channels currently open.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.exchangePublished,
		c.exchangeReturned,
		c.queuePublished,
		c.queueDelivered,
		c.queueDepth,
		c.acknowledgements,
		c.deadLettered,
		c.channelsOpen,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

func (c *PrometheusCollector) RecordExchangePublish(exchangeName, exchangeKind string) {
	c.exchangePublished.WithLabelValues(exchangeName, exchangeKind).Inc()
}

func (c *PrometheusCollector) RecordExchangeReturn(exchangeName string) {
	c.exchangeReturned.WithLabelValues(exchangeName).Inc()
}

func (c *PrometheusCollector) RecordQueuePublish(queueName string) {
	c.queuePublished.WithLabelValues(queueName).Inc()
}

func (c *PrometheusCollector) RecordQueueDelivery(queueName string, manualAck bool) {
	c.queueDelivered.WithLabelValues(queueName, strconv.FormatBool(manualAck)).Inc()
}

func (c *PrometheusCollector) SetQueueDepth(queueName string, depth int) {
	c.queueDepth.WithLabelValues(queueName).Set(float64(depth))
}

func (c *PrometheusCollector) RecordAck(queueName string) {
	c.acknowledgements.WithLabelValues(queueName, outcomeAck, "false").Inc()
}

func (c *PrometheusCollector) RecordNack(queueName string, requeue bool) {
	c.acknowledgements.WithLabelValues(queueName, outcomeNack, strconv.FormatBool(requeue)).Inc()
}

func (c *PrometheusCollector) RecordReject(queueName string, requeue bool) {
	c.acknowledgements.WithLabelValues(queueName, outcomeReject, strconv.FormatBool(requeue)).Inc()
}

func (c *PrometheusCollector) RecordDeadLetter(queueName, exchangeName string) {
	c.deadLettered.WithLabelValues(queueName, exchangeName).Inc()
}

func (c *PrometheusCollector) RecordChannelOpen() {
	c.channelsOpen.Inc()
}

func (c *PrometheusCollector) RecordChannelClose() {
	c.channelsOpen.Dec()
}

// WriteText dumps every gathered family in the text exposition format.
func (c *PrometheusCollector) WriteText(w io.Writer) error {
	families, err := c.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
