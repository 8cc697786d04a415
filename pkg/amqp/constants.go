package amqp

import (
	"fmt"
	"strings"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// ExchangeKind selects the routing strategy of an exchange.
type ExchangeKind string

const (
	DIRECT  ExchangeKind = amqp091.ExchangeDirect
	FANOUT  ExchangeKind = amqp091.ExchangeFanout
	TOPIC   ExchangeKind = amqp091.ExchangeTopic
	HEADERS ExchangeKind = amqp091.ExchangeHeaders
)

// ParseExchangeKind maps a textual kind onto ExchangeKind. An empty string
// means direct. "header" is accepted for headers.
func ParseExchangeKind(s string) (ExchangeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DIRECT):
		return DIRECT, nil
	case string(FANOUT):
		return FANOUT, nil
	case string(TOPIC):
		return TOPIC, nil
	case string(HEADERS), "header":
		return HEADERS, nil
	default:
		return "", fmt.Errorf("invalid exchange kind: %s", s)
	}
}

func (k ExchangeKind) String() string {
	return string(k)
}

type TypeClass int

// Class constants
const (
	CONNECTION TypeClass = 10
	CHANNEL    TypeClass = 20
	EXCHANGE   TypeClass = 40
	QUEUE      TypeClass = 50
	BASIC      TypeClass = 60
)

type ExchangeMethod int

const (
	EXCHANGE_DECLARE ExchangeMethod = 10
	EXCHANGE_DELETE  ExchangeMethod = 20
	EXCHANGE_BIND    ExchangeMethod = 30
	EXCHANGE_UNBIND  ExchangeMethod = 40
)

type QueueMethod int

const (
	QUEUE_DECLARE QueueMethod = 10
	QUEUE_BIND    QueueMethod = 20
	QUEUE_PURGE   QueueMethod = 30
	QUEUE_DELETE  QueueMethod = 40
	QUEUE_UNBIND  QueueMethod = 50
)

type ChannelMethod int

const (
	CHANNEL_OPEN  ChannelMethod = 10
	CHANNEL_CLOSE ChannelMethod = 40
)

type BasicMethod int

const (
	BASIC_CONSUME BasicMethod = 20
	BASIC_CANCEL  BasicMethod = 30
	BASIC_PUBLISH BasicMethod = 40
	BASIC_RETURN  BasicMethod = 50
	BASIC_DELIVER BasicMethod = 60
	BASIC_GET     BasicMethod = 70
	BASIC_ACK     BasicMethod = 80
	BASIC_REJECT  BasicMethod = 90
	BASIC_NACK    BasicMethod = 120
)

// AMQP Reply Codes as defined in AMQP 0-9-1 specification
type ReplyCode uint16

const (
	REPLY_SUCCESS       ReplyCode = 200
	NO_ROUTE            ReplyCode = amqp091.NoRoute
	NO_CONSUMERS        ReplyCode = amqp091.NoConsumers
	ACCESS_REFUSED      ReplyCode = amqp091.AccessRefused
	NOT_FOUND           ReplyCode = amqp091.NotFound
	RESOURCE_LOCKED     ReplyCode = amqp091.ResourceLocked
	PRECONDITION_FAILED ReplyCode = amqp091.PreconditionFailed
	COMMAND_INVALID     ReplyCode = amqp091.CommandInvalid
	CHANNEL_ERROR       ReplyCode = amqp091.ChannelError
	NOT_ALLOWED         ReplyCode = amqp091.NotAllowed
	NOT_IMPLEMENTED     ReplyCode = amqp091.NotImplemented
	INTERNAL_ERROR      ReplyCode = amqp091.InternalError
)

// ReplyText returns the default reply text for a given reply code
var ReplyText = map[ReplyCode]string{
	REPLY_SUCCESS:       "REPLY_SUCCESS",
	NO_ROUTE:            "NO_ROUTE",
	NO_CONSUMERS:        "NO_CONSUMERS",
	ACCESS_REFUSED:      "ACCESS_REFUSED",
	NOT_FOUND:           "NOT_FOUND",
	RESOURCE_LOCKED:     "RESOURCE_LOCKED",
	PRECONDITION_FAILED: "PRECONDITION_FAILED",
	COMMAND_INVALID:     "COMMAND_INVALID",
	CHANNEL_ERROR:       "CHANNEL_ERROR",
	NOT_ALLOWED:         "NOT_ALLOWED",
	NOT_IMPLEMENTED:     "NOT_IMPLEMENTED",
	INTERNAL_ERROR:      "INTERNAL_ERROR",
}

func (rc ReplyCode) String() string {
	if text, exists := ReplyText[rc]; exists {
		return text
	}
	return "UNKNOWN_REPLY_CODE"
}

func (rc ReplyCode) Format(reason string) string {
	return fmt.Sprintf("%s - %s", rc.String(), reason)
}

type DeliveryMode uint8

const (
	DEFAULT        DeliveryMode = 0 // It means the same as NON_PERSISTENT
	NON_PERSISTENT DeliveryMode = DeliveryMode(amqp091.Transient)
	PERSISTENT     DeliveryMode = DeliveryMode(amqp091.Persistent)
)

func (dm DeliveryMode) String() string {
	switch dm {
	case DEFAULT:
		return "default"
	case NON_PERSISTENT:
		return "non-persistent"
	case PERSISTENT:
		return "persistent"
	}
	return fmt.Sprintf("delivery-mode(%d)", uint8(dm))
}

// AckState is the acknowledgement bucket a delivery tag lives in.
type AckState string

const (
	PENDING  AckState = "pending"
	ACKED    AckState = "acked"
	NACKED   AckState = "nacked"
	REJECTED AckState = "rejected"
)

// AckStates lists every bucket in a stable order.
var AckStates = []AckState{PENDING, ACKED, NACKED, REJECTED}

// Queue and binding arguments understood by the simulator.
const (
	ARG_DEAD_LETTER_EXCHANGE    = "x-dead-letter-exchange"
	ARG_DEAD_LETTER_ROUTING_KEY = "x-dead-letter-routing-key"
	ARG_X_MATCH                 = "x-match"
)

// Dead-letter headers.
const (
	HEADER_X_DEATH                = "x-death"
	HEADER_X_FIRST_DEATH_QUEUE    = "x-first-death-queue"
	HEADER_X_FIRST_DEATH_REASON   = "x-first-death-reason"
	HEADER_X_FIRST_DEATH_EXCHANGE = "x-first-death-exchange"
)

// Dead-letter reasons.
const (
	REASON_REJECTED = "rejected"
)
