package chainindex

import (
	"fmt"

	"github.com/pkg/errors"
)

// BatchError error interface used by chainindex
type BatchError interface {
	//Code code of the error
	Code() string
	//Message readable message of the error
	Message() string
	//Error error interface
	Error() string
	//StackTrace stack trace from where the error was created
	StackTrace() errors.StackTrace
	//Unwrap the underlying cause if any
	Unwrap() error
}

type batchErr struct {
	code  string
	msg   string
	cause error
	stack error
}

func (err *batchErr) Code() string {
	return err.code
}

func (err *batchErr) Message() string {
	return err.msg
}

func (err *batchErr) Error() string {
	return fmt.Sprintf("batch err, code:%v, message:%v", err.code, err.msg)
}

func (err *batchErr) StackTrace() errors.StackTrace {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if st, ok := err.stack.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

func (err *batchErr) Unwrap() error {
	return err.cause
}

//NewBatchError new instance. A trailing error argument is recorded as the
//cause and appended to the message.
func NewBatchError(code string, msg string, args ...interface{}) BatchError {
	var cause error
	if len(args) > 0 {
		if e, ok := args[len(args)-1].(error); ok {
			cause = e
			args = args[:len(args)-1]
			msg = fmt.Sprintf(msg, args...) + fmt.Sprintf(", err:%v", e)
		} else {
			msg = fmt.Sprintf(msg, args...)
		}
	}
	return &batchErr{code: code, msg: msg, cause: cause, stack: errors.New(msg)}
}

const (
	//ErrCodeRetry a recoverable error that should be retried
	ErrCodeRetry = "retry"
	//ErrCodeStop the running import is requested to stop
	ErrCodeStop = "stop"
	//ErrCodeConcurrency duplicate run of the same importer detected
	ErrCodeConcurrency = "concurrency"
	//ErrCodeDbFail database access failed
	ErrCodeDbFail = "db_fail"
	//ErrCodeGeneral unclassified failure
	ErrCodeGeneral = "general"
	//ErrCodePayloadTooLarge the store rejected a whole batch payload
	ErrCodePayloadTooLarge = "payload_too_large"
	//ErrCodeEntityTooLarge the store rejected one oversized record, the error
	//message leads with the zero-based index of the offender within the batch
	ErrCodeEntityTooLarge = "entity_too_large"
)

//ErrCode code of an error if it is a BatchError, otherwise ErrCodeGeneral
func ErrCode(err error) string {
	if be, ok := err.(BatchError); ok {
		return be.Code()
	}
	return ErrCodeGeneral
}
