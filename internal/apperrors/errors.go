package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RetryableError indicates an error that might be resolved by retrying.
type RetryableError struct {
	Err error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps the given error as a RetryableError, adding a message.
func NewRetryable(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &RetryableError{Err: fmt.Errorf(format, allArgs...)}
}

// FatalError indicates an error that is unlikely to be resolved by retrying.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps the given error as a FatalError, adding a message.
func NewFatal(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &FatalError{Err: fmt.Errorf(format, allArgs...)}
}

// --- Standard Error Definitions ---

var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates failure during data validation.
	ErrValidation = errors.New("validation failed")
	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrNATS indicates a general NATS communication error.
	ErrNATS = errors.New("nats communication error")
	// ErrDuplicate indicates a unique constraint hit, e.g. a lead created by a concurrent run.
	ErrDuplicate = errors.New("duplicate resource")
	// ErrBadRequest indicates a malformed or invalid request from the client/caller.
	ErrBadRequest = errors.New("bad request")
	// ErrTimeout indicates a network call exceeded its deadline.
	ErrTimeout = errors.New("operation timeout")
	// ErrNetwork indicates a transport failure other than a timeout (dns, refused, reset).
	ErrNetwork = errors.New("network error")
	// ErrAPI indicates the Graph API answered with an error payload.
	ErrAPI = errors.New("api error")
	// ErrConfiguration indicates missing page, pixel or lead identifiers.
	ErrConfiguration = errors.New("configuration error")
)

// APIError carries the remote error object together with the request that produced it.
// Params never contain raw access tokens.
type APIError struct {
	Method     string
	URL        string
	Params     map[string]string
	StatusCode int
	Fields     map[string]interface{}
	Body       string
}

// Error renders url, params and every key of the remote error object in a stable order.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: url: %s", ErrAPI.Error(), e.URL)
	if len(e.Params) > 0 {
		b.WriteString(" params: ")
		b.WriteString(joinSorted(e.Params))
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status: %d", e.StatusCode)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s: %v", k, e.Fields[k])
		}
	} else if e.Body != "" {
		fmt.Fprintf(&b, " body: %s", e.Body)
	}
	return b.String()
}

// Unwrap lets errors.Is(err, ErrAPI) match.
func (e *APIError) Unwrap() error {
	return ErrAPI
}

func joinSorted(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, "&")
}

// --- Helper functions for checking ---

// IsRetryable checks if the error is a RetryableError or wraps one.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal checks if the error is a FatalError or wraps one.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// IsNotFoundError checks if the error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if the error is or wraps ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDatabaseError checks if the error is or wraps ErrDatabase.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsNATSError checks if the error is or wraps ErrNATS.
func IsNATSError(err error) bool {
	return errors.Is(err, ErrNATS)
}

// IsDuplicateError checks if the error is or wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsBadRequestError checks if the error is or wraps ErrBadRequest.
func IsBadRequestError(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsTimeoutError checks if the error is or wraps ErrTimeout.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNetworkError checks if the error is or wraps ErrNetwork.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsTransportError reports timeouts and network failures, the two retryable outbound conditions.
func IsTransportError(err error) bool {
	return IsTimeoutError(err) || IsNetworkError(err)
}

// IsAPIError checks if the error is or wraps ErrAPI.
func IsAPIError(err error) bool {
	return errors.Is(err, ErrAPI)
}

// IsConfigurationError checks if the error is or wraps ErrConfiguration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
