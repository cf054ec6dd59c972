package batch

import (
	"context"
	"fmt"
	"strings"
)

// Method is the operation of a batch entry.
type Method string

const (
	MethodInsert Method = "insert"
	MethodDelete Method = "delete"
	MethodGet    Method = "get"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodInsert, MethodDelete, MethodGet:
		return true
	default:
		return false
	}
}

// Entry is one operation of a batch, correlated by its caller-assigned id.
type Entry[T any] struct {
	BatchID int64
	Method  Method
	Item    T
}

// ItemError is one error reported for a batch entry.
type ItemError struct {
	Code    string
	Message string
}

// String renders the error as "code: message".
func (e ItemError) String() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Result is the outcome of one batch entry. An entry either succeeded and
// carries Value, or failed and carries Errors; never both.
type Result[R any] struct {
	BatchID int64
	Value   R
	Errors  []ItemError
}

// OK reports whether the entry succeeded.
func (r Result[R]) OK() bool {
	return len(r.Errors) == 0
}

// Err returns nil on success, otherwise an *ItemErrors.
func (r Result[R]) Err() error {
	if r.OK() {
		return nil
	}
	return &ItemErrors{BatchID: r.BatchID, Errors: r.Errors}
}

// FlatError concatenates all errors of the entry, "" on success.
func (r Result[R]) FlatError() string {
	return flatten(r.Errors)
}

// ItemErrors is the error form of a failed entry.
type ItemErrors struct {
	BatchID int64
	Errors  []ItemError
}

func (e *ItemErrors) Error() string {
	return fmt.Sprintf("batch entry %d: %s", e.BatchID, flatten(e.Errors))
}

// Response is a decoded batch response.
type Response[R any] struct {
	Kind    string
	Entries []Result[R]
}

// Submitter sends one batch request.
type Submitter[T, R any] interface {
	Submit(ctx context.Context, entries []Entry[T]) (*Response[R], error)
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc[T, R any] func(ctx context.Context, entries []Entry[T]) (*Response[R], error)

// Submit calls f.
func (f SubmitFunc[T, R]) Submit(ctx context.Context, entries []Entry[T]) (*Response[R], error) {
	return f(ctx, entries)
}

func flatten(errs []ItemError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}
