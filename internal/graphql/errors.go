package graphql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gql "github.com/hasura/go-graphql-client"
)

var errEmptyResult = errors.New("empty result")

// Kind classifies a failed operation.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork      // transport failure or non-2xx response
	KindServer       // the backend answered with GraphQL errors
	KindDecode       // response data did not match the expected shape
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error wraps a failed operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// hasura's client reports transport problems as GraphQL errors carrying one of
// these extension codes.
var transportCodes = map[string]struct{}{
	"request_error":     {},
	"json_encode_error": {},
}

var decodeCodes = map[string]struct{}{
	"json_decode_error":    {},
	"graphql_decode_error": {},
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	var errs gql.Errors
	if !errors.As(err, &errs) {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	kind := KindServer
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		code, _ := e.Extensions["code"].(string)
		if _, ok := transportCodes[code]; ok {
			kind = KindNetwork
		} else if _, ok := decodeCodes[code]; ok && kind != KindNetwork {
			kind = KindDecode
		}
		msgs = append(msgs, e.Message)
	}
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf("%s: %w", strings.Join(msgs, "; "), err)}
}
