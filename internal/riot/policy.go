package riot

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrBadRequest   = errors.New("riot: bad request")
	ErrUnauthorized = errors.New("riot: unauthorized")
	ErrNotFound     = errors.New("riot: not found")
)

// StatusError is a permanent upstream failure.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("riot API returned %d for %s", e.StatusCode, e.URL)
}

// Action is what the client does with a response.
type Action int

const (
	ActionAccept Action = iota
	ActionRetry
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionRetry:
		return "retry"
	case ActionFail:
		return "fail"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Decision is one row of the retry table.
type Decision struct {
	Action Action
	Wait   time.Duration
	Err    error
}

// RetryPolicy maps a response status to a Decision:
//
//	200        accept
//	429        retry after Retry-After+pad, or RateLimitWait without the header
//	5xx        retry after ServerErrorWait
//	transport  retry after ServerErrorWait
//	400        fail, ErrBadRequest
//	401, 403   fail, ErrUnauthorized
//	404        fail, ErrNotFound
//	other      fail
type RetryPolicy struct {
	RateLimitWait   time.Duration
	RetryAfterPad   time.Duration
	ServerErrorWait time.Duration
}

// Decide classifies an HTTP response.
func (p RetryPolicy) Decide(status int, retryAfter string, url string) Decision {
	switch {
	case status == http.StatusOK:
		return Decision{Action: ActionAccept}
	case status == http.StatusTooManyRequests:
		return Decision{Action: ActionRetry, Wait: p.rateLimitWait(retryAfter)}
	case status >= 500:
		return Decision{Action: ActionRetry, Wait: p.ServerErrorWait}
	}

	statusErr := &StatusError{StatusCode: status, URL: url}
	var err error
	switch status {
	case http.StatusBadRequest:
		err = errors.Mark(statusErr, ErrBadRequest)
	case http.StatusUnauthorized, http.StatusForbidden:
		err = errors.Mark(statusErr, ErrUnauthorized)
	case http.StatusNotFound:
		err = errors.Mark(statusErr, ErrNotFound)
	default:
		err = statusErr
	}
	return Decision{Action: ActionFail, Err: err}
}

// DecideTransport classifies a request that never got a response.
func (p RetryPolicy) DecideTransport(err error) Decision {
	return Decision{Action: ActionRetry, Wait: p.ServerErrorWait, Err: err}
}

func (p RetryPolicy) rateLimitWait(retryAfter string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter))
	if err != nil || seconds < 0 {
		return p.RateLimitWait
	}
	return time.Duration(seconds)*time.Second + p.RetryAfterPad
}
