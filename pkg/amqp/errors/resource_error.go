package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/andrelcunha/ottermock/pkg/amqp"
)

var (
	ErrNotFound        = stderrors.New("not found")
	ErrInvalidArgument = stderrors.New("invalid argument")
	ErrDeleted         = stderrors.New("resource deleted")
)

// Resource kinds carried by NotFoundError and DeletedResourceError.
const (
	KindExchange = "exchange"
	KindQueue    = "queue"
	KindChannel  = "channel"
)

// NotFoundError reports a by-name lookup that the registry could not satisfy.
type NotFoundError struct {
	Kind string
	Name string
}

func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s '%s'", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) ReplyText() string {
	return amqp.NOT_FOUND.Format(e.Error())
}

func (e *NotFoundError) ReplyCode() uint16 {
	return uint16(amqp.NOT_FOUND)
}

func (e *NotFoundError) ClassID() uint16 {
	return classOf(e.Kind)
}

func (e *NotFoundError) MethodID() uint16 {
	return 0
}

// InvalidArgumentError reports a malformed call, such as a reserved channel id.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func NewInvalidArgumentError(argument, reason string) *InvalidArgumentError {
	return &InvalidArgumentError{Argument: argument, Reason: reason}
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Argument, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func (e *InvalidArgumentError) ReplyText() string {
	return amqp.COMMAND_INVALID.Format(e.Error())
}

func (e *InvalidArgumentError) ReplyCode() uint16 {
	return uint16(amqp.COMMAND_INVALID)
}

func (e *InvalidArgumentError) ClassID() uint16 {
	return 0
}

func (e *InvalidArgumentError) MethodID() uint16 {
	return 0
}

// DeletedResourceError reports an operation on a queue or exchange that has
// already been deleted.
type DeletedResourceError struct {
	Kind string
	Name string
}

func NewDeletedResourceError(kind, name string) *DeletedResourceError {
	return &DeletedResourceError{Kind: kind, Name: name}
}

func (e *DeletedResourceError) Error() string {
	return fmt.Sprintf("%s '%s' was deleted", e.Kind, e.Name)
}

func (e *DeletedResourceError) Is(target error) bool {
	return target == ErrDeleted
}

func (e *DeletedResourceError) ReplyText() string {
	return amqp.NOT_FOUND.Format(e.Error())
}

func (e *DeletedResourceError) ReplyCode() uint16 {
	return uint16(amqp.NOT_FOUND)
}

func (e *DeletedResourceError) ClassID() uint16 {
	return classOf(e.Kind)
}

func (e *DeletedResourceError) MethodID() uint16 {
	return 0
}

func classOf(kind string) uint16 {
	switch kind {
	case KindExchange:
		return uint16(amqp.EXCHANGE)
	case KindQueue:
		return uint16(amqp.QUEUE)
	case KindChannel:
		return uint16(amqp.CHANNEL)
	}
	return 0
}
