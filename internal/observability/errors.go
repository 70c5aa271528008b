package observability

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/baxromumarov/econ-indicators/internal/httpx"
	"github.com/baxromumarov/econ-indicators/internal/normalizer"
)

const (
	ErrorNetwork   = "network"
	ErrorParsing   = "parsing"
	ErrorNotFound  = "not_found"
	ErrorRateLimit = "rate_limit"
	ErrorStore     = "store"
	ErrorUnknown   = "unknown"
)

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		case fe.Status == http.StatusNotFound:
			return ErrorNotFound
		default:
			return ErrorNetwork
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	return ErrorUnknown
}

// ClassifySourceError buckets any error returned by a source.
func ClassifySourceError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if kind := ClassifyFetchError(err); kind != ErrorUnknown {
		return kind
	}
	if errors.Is(err, normalizer.ErrEmptyPayload) ||
		errors.Is(err, normalizer.ErrMalformedPayload) ||
		errors.Is(err, normalizer.ErrUnknownFormat) ||
		errors.Is(err, normalizer.ErrSchemaMismatch) {
		return ErrorParsing
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "decode failed") ||
		strings.Contains(msg, "unmarshal") ||
		strings.Contains(msg, "invalid character") {
		return ErrorParsing
	}
	return ErrorNetwork
}
