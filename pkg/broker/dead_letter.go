package broker

import (
	"time"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

type DeadLetterer interface {
	DeadLetter(msg Message, queue *Queue, reason string) error
}

type NoOpDeadLetterer struct{}

func (NoOpDeadLetterer) DeadLetter(msg Message, queue *Queue, reason string) error {
	log.Debug().Str("queue", queue.Name()).Str("id", msg.ID).Msg("Dead-lettering disabled, discarding message")
	return nil
}

type DeadLetter struct {
	session *Session
}

// DeadLetter republishes msg to the queue's x-dead-letter-exchange. Queues
// without one discard the message, as does a missing exchange.
func (dl *DeadLetter) DeadLetter(msg Message, queue *Queue, reason string) error {
	dlxName, ok := queue.opts.Arguments[amqp.ARG_DEAD_LETTER_EXCHANGE].(string)
	if !ok {
		log.Debug().Str("queue", queue.name).Str("id", msg.ID).Msg("No dead-letter exchange, discarding message")
		return nil
	}
	dlx, ok := dl.session.FindExchange(dlxName)
	if !ok {
		log.Warn().Str("queue", queue.name).Str("dlx", dlxName).Msg("Dead-letter exchange not found, discarding message")
		return nil
	}

	if n := deathCount(msg.Properties.Headers, queue.name, reason); n >= int64(dl.session.opts.MaxDeadLetterCycles) {
		log.Warn().Str("queue", queue.name).Str("dlx", dlxName).Int64("deaths", n).Msg("Dead-letter cycle limit reached, discarding message")
		return nil
	}

	// 1. Add x-death header
	props := msg.Properties.clone()
	props.Headers = addXDeathHeader(props.Headers, queue.name, reason, msg.Exchange, msg.RoutingKey)

	// 2. Determine routing key
	dlk := msg.RoutingKey
	if rk, ok := queue.opts.Arguments[amqp.ARG_DEAD_LETTER_ROUTING_KEY].(string); ok && rk != "" {
		dlk = rk
	}

	// 3. Publish to DLX
	dl.session.metrics.RecordDeadLetter(queue.name, dlxName)
	log.Debug().Str("queue", queue.name).Str("dlx", dlxName).Str("routing_key", dlk).Msg("Dead-lettering message")
	return dlx.publish(msg.Body, PublishOptions{RoutingKey: dlk, Properties: props}, nil)
}

// deathCount is the x-death count recorded for queue and reason.
func deathCount(headers amqp091.Table, queue, reason string) int64 {
	deaths, _ := headers[amqp.HEADER_X_DEATH].([]interface{})
	for _, d := range deaths {
		death, ok := d.(amqp091.Table)
		if !ok || death["queue"] != queue || death["reason"] != reason {
			continue
		}
		n, _ := death["count"].(int64)
		return n
	}
	return 0
}

// addXDeathHeader records a death in the x-death list. Repeated deaths for the
// same queue and reason bump the count and move the entry to the front.
func addXDeathHeader(headers amqp091.Table, queue, reason, exchange, routingKey string) amqp091.Table {
	if headers == nil {
		headers = amqp091.Table{}
	}

	death := amqp091.Table{
		"count":        int64(1),
		"reason":       reason,
		"queue":        queue,
		"exchange":     exchange,
		"routing-keys": []interface{}{routingKey},
		"time":         time.Now().UTC(),
	}

	var deaths []interface{}
	if existing, ok := headers[amqp.HEADER_X_DEATH].([]interface{}); ok {
		deaths = existing
	}
	for i, d := range deaths {
		prev, ok := d.(amqp091.Table)
		if !ok || prev["queue"] != queue || prev["reason"] != reason {
			continue
		}
		if n, ok := prev["count"].(int64); ok {
			death["count"] = n + 1
		}
		deaths = append(deaths[:i:i], deaths[i+1:]...)
		break
	}
	headers[amqp.HEADER_X_DEATH] = append([]interface{}{death}, deaths...)

	if _, ok := headers[amqp.HEADER_X_FIRST_DEATH_QUEUE]; !ok {
		headers[amqp.HEADER_X_FIRST_DEATH_QUEUE] = queue
		headers[amqp.HEADER_X_FIRST_DEATH_REASON] = reason
		headers[amqp.HEADER_X_FIRST_DEATH_EXCHANGE] = exchange
	}
	return headers
}
