// Package graphql talks to the todos GraphQL backend over HTTP.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gql "github.com/hasura/go-graphql-client"
)

// Options configures a Client.
type Options struct {
	Endpoint string
	Token    string            // sent as a bearer token when set
	Headers  map[string]string // extra headers on every request
	Timeout  time.Duration     // 0 means no local timeout
}

// Client executes prebuilt operations and decodes their data.
type Client struct {
	gql *gql.Client
	hc  *http.Client
}

// NewClient builds a Client for opts.Endpoint.
func NewClient(opts Options) *Client {
	hc := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if opts.Token != "" {
		headers["Authorization"] = "Bearer " + opts.Token
	}

	c := gql.NewClient(opts.Endpoint, hc)
	if len(headers) > 0 {
		c = c.WithRequestModifier(func(r *http.Request) {
			for k, v := range headers {
				r.Header.Set(k, v)
			}
		})
	}
	return &Client{gql: c, hc: hc}
}

// Do runs the named operation and decodes the response data into out.
func (c *Client) Do(ctx context.Context, op Operation, vars map[string]any, out any) error {
	raw, err := c.gql.ExecRaw(ctx, op.Query, vars, gql.OperationName(op.Name))
	if err != nil {
		return classify(op.Name, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindDecode, Op: op.Name, Err: fmt.Errorf("json unmarshal: %w", err)}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.hc.CloseIdleConnections()
}
