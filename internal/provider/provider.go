// Package provider defines the contract every upstream market-data adapter
// implements, the error taxonomy the engine acts on, and a shared HTTP client.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/navid-fn/twradar/internal/models"
)

// Descriptor is registered once at startup and never mutated.
type Descriptor struct {
	// Name identifies the provider in logs, health reports and Quotation.Source.
	Name string

	// Priority orders providers; lower is tried first.
	Priority int

	// Timeout is the per-attempt budget before the engine's global cap applies.
	Timeout time.Duration

	// MaxRetries is the provider's own retry allowance.
	MaxRetries int

	// RetryBaseDelay is the first backoff delay; it doubles on every retry.
	RetryBaseDelay time.Duration

	// RequestsPerSecond throttles outgoing requests. Zero disables throttling.
	RequestsPerSecond float64
}

// Provider wraps one upstream. GetPrice returns ErrNotFound (possibly wrapped)
// when the upstream has no data, and an *Error for transport or protocol faults.
type Provider interface {
	Descriptor() Descriptor
	GetPrice(ctx context.Context, symbol string, suffixes []string) (*models.Quotation, error)
	IsHealthy(ctx context.Context) bool
}

// DividendProvider is a Provider that also exposes dividend history.
type DividendProvider interface {
	Provider
	GetDividendHistory(ctx context.Context, symbol string, since time.Time) ([]models.DividendRecord, error)
}

// NameProvider can look up a localized security name on its own.
type NameProvider interface {
	GetName(ctx context.Context, symbol string) (string, error)
}

// ErrNotFound means the upstream answered but has no data for the symbol.
var ErrNotFound = errors.New("no data for symbol")

// Kind classifies provider failures.
type Kind int

const (
	KindTransport Kind = iota
	KindTimeout
	KindMalformed
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not-found errors of any origin.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// NewError builds a classified error.
func NewError(kind Kind, providerName, op string, err error) *Error {
	return &Error{Kind: kind, Provider: providerName, Op: op, Err: err}
}

// NotFound builds a not-found error carrying a reason.
func NotFound(providerName, op, reason string) *Error {
	return &Error{Kind: KindNotFound, Provider: providerName, Op: op, Err: errors.New(reason)}
}

// Malformed builds a schema-mismatch error.
func Malformed(providerName, op string, err error) *Error {
	return &Error{Kind: KindMalformed, Provider: providerName, Op: op, Err: err}
}

// IsNotFound reports whether err means "no data".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// KindOf classifies any error. Unclassified errors are transport failures,
// deadlines are timeouts.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

// IsRetryable reports whether a local retry may help.
// Timeouts, transport faults and malformed payloads qualify; cancellation does not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err) != KindNotFound
}

// IsFailure reports whether err counts against provider health.
func IsFailure(err error) bool {
	return IsRetryable(err)
}

// ClassifyStatus maps an HTTP status to a Kind. ok is false for 2xx.
func ClassifyStatus(code int) (kind Kind, ok bool) {
	switch {
	case code >= 200 && code < 300:
		return 0, false
	case code == http.StatusNotFound:
		return KindNotFound, true
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout, true
	default:
		return KindTransport, true
	}
}
