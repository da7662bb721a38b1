package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"voxd/internal/types"
)

// remoteErr builds a typed error the pipeline can map to a notification.
func remoteErr(kind types.ErrorKind, msg string, err error) error {
	return &types.RemoteError{Kind: kind, Message: msg, Err: err}
}

// classifyStatus maps a provider HTTP status to an error kind. Bad request
// is grouped with not found: both mean the model name was not usable.
func classifyStatus(status int) types.ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.KindRemoteAuth
	case http.StatusTooManyRequests:
		return types.KindRemoteQuotaExceeded
	case http.StatusBadRequest, http.StatusNotFound:
		return types.KindRemoteNotFound
	default:
		return types.KindRemoteTransport
	}
}

// kindMessage returns the user-facing message for provider failures that
// carry no better detail of their own.
func kindMessage(kind types.ErrorKind, model string) string {
	switch kind {
	case types.KindRemoteAuth:
		return "access denied, check the API key"
	case types.KindRemoteQuotaExceeded:
		return "request limit reached, try again later"
	case types.KindRemoteNotFound:
		return fmt.Sprintf("model %q not found or not available", model)
	default:
		return "request failed"
	}
}

// classifyTransportErr distinguishes deadline expiry from other failures on
// a round trip that produced no usable response.
func classifyTransportErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return remoteErr(types.KindRemoteTimeout, "no reply within the time limit", err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return remoteErr(types.KindRemoteTimeout, "no reply within the time limit", err)
	}
	return remoteErr(types.KindRemoteTransport, "network error, request did not complete", err)
}
