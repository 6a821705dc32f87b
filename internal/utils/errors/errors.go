package errors

import (
	ers "errors"
	"fmt"

	rpccode "google.golang.org/genproto/googleapis/rpc/code"
)

//ConsoleError Error with code.
type ConsoleError interface {
	Code() rpccode.Code
	Error() string
}

//UnknownError Unknown error
type UnknownError struct {
	Msg string
}

func (e *UnknownError) Error() string {
	return e.Msg
}

//Code Code of the error.
func (e *UnknownError) Code() rpccode.Code {
	return rpccode.Code_INTERNAL
}

//MalformedRequestError Error for malformed request
type MalformedRequestError struct {
	Status rpccode.Code
	Msg    string
}

func (mr *MalformedRequestError) Error() string {
	return mr.Msg
}

//Code Code of the error.
func (mr *MalformedRequestError) Code() rpccode.Code {
	return rpccode.Code_INVALID_ARGUMENT
}

//ValidationError Form input failed validation. Field is the JSON name of the offending field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

//Code Code of the error.
func (e *ValidationError) Code() rpccode.Code {
	return rpccode.Code_INVALID_ARGUMENT
}

//NotFoundError Requested record does not exist
type NotFoundError struct {
	Msg string
}

func (mr *NotFoundError) Error() string {
	return mr.Msg
}

//Code Code of the error.
func (mr *NotFoundError) Code() rpccode.Code {
	return rpccode.Code_NOT_FOUND
}

//UnauthenticatedError No identity is present. Redirect names the entry page.
type UnauthenticatedError struct {
	Msg      string
	Redirect string
}

func (e *UnauthenticatedError) Error() string {
	return e.Msg
}

//Code Code of the error.
func (e *UnauthenticatedError) Code() rpccode.Code {
	return rpccode.Code_UNAUTHENTICATED
}

//PermissionDeniedError Identity is known but its role may not perform the operation.
type PermissionDeniedError struct {
	Msg string
}

func (e *PermissionDeniedError) Error() string {
	return e.Msg
}

//Code Code of the error.
func (e *PermissionDeniedError) Code() rpccode.Code {
	return rpccode.Code_PERMISSION_DENIED
}

//FailedPreconditionError Operation is not allowed in the current state of the record.
type FailedPreconditionError struct {
	Msg string
}

func (e *FailedPreconditionError) Error() string {
	return e.Msg
}

//Code Code of the error.
func (e *FailedPreconditionError) Code() rpccode.Code {
	return rpccode.Code_FAILED_PRECONDITION
}

//RemoteFailureError A call to a remote collaborator has failed.
type RemoteFailureError struct {
	Op  string
	Err error
}

func (e *RemoteFailureError) Error() string {
	return fmt.Sprintf("%v failed: %v", e.Op, e.Err)
}

func (e *RemoteFailureError) Unwrap() error {
	return e.Err
}

//Code Code of the error.
func (e *RemoteFailureError) Code() rpccode.Code {
	return rpccode.Code_UNAVAILABLE
}

//Remote wraps err into RemoteFailureError unless it already carries a code.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded ConsoleError
	if ers.As(err, &coded) {
		return err
	}
	return &RemoteFailureError{Op: op, Err: err}
}
