package retry

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/icodeforyou/energiprice-go/types"
)

type Cause int

const (
	None Cause = iota
	Transient
	Permanent
	DataIncomplete
	Unclassified
	Interrupted
)

var causeNames = map[Cause]string{
	None:           "none",
	Transient:      "transient",
	Permanent:      "permanent",
	DataIncomplete: "data-incomplete",
	Unclassified:   "unclassified",
	Interrupted:    "interrupted",
}

func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c Cause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Classify maps a download error to the cause that drives the next attempt.
func Classify(err error) Cause {
	if err == nil {
		return None
	}
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	var te *types.TransportError
	if errors.As(err, &te) {
		return classifyStatus(te.StatusCode)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}
	return Unclassified
}

func classifyStatus(status int) Cause {
	switch {
	case status == 0,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return Transient
	case status >= http.StatusBadRequest:
		return Permanent
	default:
		return Unclassified
	}
}

// StatusCode returns the provider status carried by err, or 0.
func StatusCode(err error) int {
	var te *types.TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
