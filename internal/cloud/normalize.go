package cloud

import (
	"errors"
	"fmt"
)

// UnknownErrorCode is the code used when a failure cannot be classified
const UnknownErrorCode = "UnknownError"

// ErrorKind is the provider-neutral category of a transport failure
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindDecryptionFailure
	KindInternalService
	KindInvalidParameter
	KindInvalidRequest
	KindResourceNotFound
	KindAccessDenied
)

func (k ErrorKind) String() string {
	switch k {
	case KindDecryptionFailure:
		return "DecryptionFailure"
	case KindInternalService:
		return "InternalServiceError"
	case KindInvalidParameter:
		return "InvalidParameter"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindResourceNotFound:
		return "ResourceNotFound"
	case KindAccessDenied:
		return "AccessDenied"
	default:
		return "Unknown"
	}
}

// TransportError is what provider transport layers return on failure
type TransportError struct {
	Kind    ErrorKind
	Code    string // provider error code, e.g. "ResourceNotFoundException"
	Message string // provider supplied message, may be empty
	Err     error
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Code)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MessageFunc maps a classified failure to the message shown to users.
// It receives the provider message and returns it unchanged for kinds it
// does not describe.
type MessageFunc func(kind ErrorKind, providerMessage string) string

// Normalize converts err into a ServiceError. Codes default to
// UnknownErrorCode; messages fall back to fallback when neither messages nor
// the provider supply one.
func Normalize(err error, messages MessageFunc, fallback string) ServiceError {
	out := ServiceError{ErrorCode: UnknownErrorCode}

	var te *TransportError
	switch {
	case err == nil:
	case errors.As(err, &te):
		if te.Code != "" {
			out.ErrorCode = te.Code
		}
		out.ErrorMessage = te.Message
		if messages != nil {
			out.ErrorMessage = messages(te.Kind, te.Message)
		}
	default:
		out.ErrorMessage = err.Error()
	}

	if out.ErrorMessage == "" {
		out.ErrorMessage = fallback
	}
	return out
}
