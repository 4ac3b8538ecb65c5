package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/rpc"
)

// Register mounts one connect procedure per dispatcher operation on mux
func (d *Dispatcher) Register(mux *http.ServeMux, opts ...connect.HandlerOption) {
	for _, op := range d.Operations() {
		op := op
		path, handler := rpc.NewHandler(op, func(ctx context.Context, payload []byte) []byte {
			return d.Dispatch(ctx, op, payload)
		}, opts...)
		mux.Handle(path, handler)
	}
}
