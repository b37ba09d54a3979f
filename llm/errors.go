package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCredential is returned by a client constructor when its API key is not configured.
	ErrMissingCredential = errors.New("missing API credential")

	ErrTransport = errors.New("transport error")
	ErrAuth      = errors.New("authentication error")
	ErrModel     = errors.New("model error")
)

type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindAuth
	KindModel
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrAuth
	case KindModel:
		return ErrModel
	default:
		return ErrTransport
	}
}

// CompletionError describes a completion call that could not be completed.
// It matches ErrTransport, ErrAuth or ErrModel under errors.Is.
type CompletionError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (status %d): %v", e.Provider, e.Kind.sentinel(), e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind.sentinel(), e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

func (e *CompletionError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func transportError(provider string, err error) error {
	return &CompletionError{Kind: KindTransport, Provider: provider, Err: err}
}

func modelError(provider string, err error) error {
	return &CompletionError{Kind: KindModel, Provider: provider, Err: err}
}

// statusError classifies a non-2xx HTTP answer from a completion service.
func statusError(provider string, statusCode int, err error) error {
	kind := KindModel
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		kind = KindAuth
	}
	return &CompletionError{Kind: kind, Provider: provider, StatusCode: statusCode, Err: err}
}
