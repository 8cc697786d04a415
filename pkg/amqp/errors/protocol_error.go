package errors

import "fmt"

// replyFields carries the reply code and the class/method pair that raised it.
type replyFields struct {
	code     uint16
	text     string
	classID  uint16
	methodID uint16
}

func (e *replyFields) ReplyText() string {
	return e.text
}

func (e *replyFields) ReplyCode() uint16 {
	return e.code
}

func (e *replyFields) ClassID() uint16 {
	return e.classID
}

func (e *replyFields) MethodID() uint16 {
	return e.methodID
}

// ChannelError is a soft error: it invalidates the channel that raised it
// but leaves the session running.
type ChannelError struct {
	replyFields
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("AMQP Channel Error %d: %s", e.code, e.text)
}

func NewChannelError(text string, code, classID, methodID uint16) AMQPError {
	return &ChannelError{replyFields{
		text:     text,
		code:     code,
		classID:  classID,
		methodID: methodID,
	}}
}

type ConnectionError struct {
	replyFields
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("AMQP Connection Error %d: %s", e.code, e.text)
}

func NewConnectionError(text string, code, classID, methodID uint16) AMQPError {
	return &ConnectionError{replyFields{
		text:     text,
		code:     code,
		classID:  classID,
		methodID: methodID,
	}}
}
