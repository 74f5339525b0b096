package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NetworkError is a transport or connectivity failure: the request may or may
// not have reached the server.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RequestError is a non-2xx response. Status 0 means the request was rejected
// locally and never sent.
type RequestError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *RequestError) Error() string {
	var b strings.Builder
	if e.Status > 0 {
		fmt.Fprintf(&b, "request failed (%d): %s", e.Status, e.Message)
	} else {
		fmt.Fprintf(&b, "request rejected: %s", e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, strings.Join(e.Fields[k], ", "))
		}
	}
	return b.String()
}

// NotFoundError means the target id no longer exists server-side.
type NotFoundError struct {
	ID      string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("comment %s not found: %s", e.ID, e.Message)
	}
	return fmt.Sprintf("comment %s not found", e.ID)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRetryable reports whether err is worth retrying for an idempotent call.
func IsRetryable(err error) bool {
	if IsNetwork(err) {
		return true
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status >= 500
	}
	return false
}
