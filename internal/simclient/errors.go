package simclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rewired-gh/marketstate/internal/models"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport covers unreachable hosts, timeouts and non-2xx statuses.
	KindTransport
	// KindMalformed covers bodies that are not the expected JSON or number.
	KindMalformed
	// KindMissingField covers payloads lacking a required key.
	KindMissingField
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindMissingField:
		return "missing_field"
	default:
		return "unknown"
	}
}

// FetchError reports a failed endpoint fetch.
type FetchError struct {
	Endpoint string
	Kind     Kind
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func decodeError(endpoint string, err error) error {
	kind := KindMalformed
	if errors.Is(err, models.ErrMissingField) {
		kind = KindMissingField
	}
	return &FetchError{Endpoint: endpoint, Kind: kind, Err: err}
}
