// Package sidecartest runs an in-memory gRPC server that answers Struct-bodied
// unary calls, for tests of sidecar clients.
package sidecartest

import (
	"context"
	"net"
	"testing"

	"github.com/eleven-am/voice-relay/internal/sidecar"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type HandlerFunc func(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error)

// NewServer starts a server for the lifetime of t and returns a client Config
// that dials it.
func NewServer(t *testing.T, handler HandlerFunc) sidecar.Config {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		req := new(structpb.Struct)
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		resp, err := handler(stream.Context(), method, req)
		if err != nil {
			return err
		}
		return stream.SendMsg(resp)
	}))

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		srv.Stop()
		_ = lis.Close()
	})

	return sidecar.Config{
		Address: "passthrough:///bufnet",
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	}
}
