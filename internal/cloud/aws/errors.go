package aws

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/systmms/apivault/internal/cloud"
)

const accessDeniedCode = "AccessDeniedException"

// classify tags an SDK error with its provider-neutral kind
func classify(err error) error {
	var (
		decryption   *types.DecryptionFailure
		internal     *types.InternalServiceError
		invalidParam *types.InvalidParameterException
		invalidReq   *types.InvalidRequestException
		notFound     *types.ResourceNotFoundException
		apiErr       smithy.APIError
	)

	te := &cloud.TransportError{Kind: cloud.KindUnknown, Err: err}
	switch {
	case errors.As(err, &decryption):
		te.Kind, te.Code, te.Message = cloud.KindDecryptionFailure, decryption.ErrorCode(), decryption.ErrorMessage()
	case errors.As(err, &internal):
		te.Kind, te.Code, te.Message = cloud.KindInternalService, internal.ErrorCode(), internal.ErrorMessage()
	case errors.As(err, &invalidParam):
		te.Kind, te.Code, te.Message = cloud.KindInvalidParameter, invalidParam.ErrorCode(), invalidParam.ErrorMessage()
	case errors.As(err, &invalidReq):
		te.Kind, te.Code, te.Message = cloud.KindInvalidRequest, invalidReq.ErrorCode(), invalidReq.ErrorMessage()
	case errors.As(err, &notFound):
		te.Kind, te.Code, te.Message = cloud.KindResourceNotFound, notFound.ErrorCode(), notFound.ErrorMessage()
	case errors.As(err, &apiErr):
		te.Code, te.Message = apiErr.ErrorCode(), apiErr.ErrorMessage()
		if te.Code == accessDeniedCode {
			te.Kind = cloud.KindAccessDenied
		}
	default:
		te.Message = err.Error()
	}
	return te
}

// messageFor maps Secrets Manager failure kinds to stable user messages
func messageFor(kind cloud.ErrorKind, providerMessage string) string {
	switch kind {
	case cloud.KindDecryptionFailure:
		return "Secrets Manager can't decrypt the protected secret text using the provided KMS key."
	case cloud.KindInternalService:
		return "An error occurred on the server side."
	case cloud.KindInvalidParameter:
		return "The parameter name or value is invalid."
	case cloud.KindInvalidRequest:
		return "The request is invalid for the current state of the resource."
	case cloud.KindResourceNotFound:
		return "Secrets Manager can't find the specified resource."
	case cloud.KindAccessDenied, cloud.KindUnknown:
		return providerMessage
	default:
		return providerMessage
	}
}
