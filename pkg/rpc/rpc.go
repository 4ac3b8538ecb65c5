// Package rpc carries named remote calls with opaque byte payloads over
// ConnectRPC. Each operation is a unary procedure whose request and response
// are google.protobuf.BytesValue, so the payload encoding stays the caller's
// business.
package rpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the connect service every operation is registered under
const ServiceName = "auction.v1.AuctionRPC"

// Procedure returns the connect procedure path for op
func Procedure(op string) string {
	return "/" + ServiceName + "/" + op
}

// UnaryFunc handles one operation's payload and returns the reply payload
type UnaryFunc func(ctx context.Context, payload []byte) []byte

// NewHandler mounts fn as the connect handler for op
func NewHandler(op string, fn UnaryFunc, opts ...connect.HandlerOption) (string, http.Handler) {
	procedure := Procedure(op)
	handler := connect.NewUnaryHandler(
		procedure,
		func(ctx context.Context, req *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.BytesValue], error) {
			reply := fn(ctx, req.Msg.GetValue())
			return connect.NewResponse(wrapperspb.Bytes(reply)), nil
		},
		opts...,
	)
	return procedure, handler
}

// NewH2CClient returns an HTTP client speaking HTTP/2 without TLS
func NewH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

// Client calls operations on one server
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	opts       []connect.ClientOption
}

// NewClient creates a client for the server at baseURL
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
	}
}

// Call invokes op with payload and returns the reply payload. Errors are
// transport faults only; application failures travel inside the reply.
func (c *Client) Call(ctx context.Context, op string, payload []byte) ([]byte, error) {
	client := connect.NewClient[wrapperspb.BytesValue, wrapperspb.BytesValue](
		c.httpClient,
		c.baseURL+Procedure(op),
		c.opts...,
	)

	res, err := client.CallUnary(ctx, connect.NewRequest(wrapperspb.Bytes(payload)))
	if err != nil {
		var connectErr *connect.Error
		if errors.As(err, &connectErr) && connectErr.Code() == connect.CodeUnimplemented {
			return nil, fmt.Errorf("operation %q is not served by %s: %w", op, c.baseURL, err)
		}
		return nil, fmt.Errorf("call %s: %w", op, err)
	}
	return res.Msg.GetValue(), nil
}
