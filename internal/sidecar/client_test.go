package sidecar_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eleven-am/voice-relay/internal/sidecar"
	"github.com/eleven-am/voice-relay/internal/sidecar/sidecartest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestDial_RequiresAddress(t *testing.T) {
	if _, err := sidecar.Dial(sidecar.Config{}, nil); !errors.Is(err, sidecar.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestInvoke_RoundTripWithToken(t *testing.T) {
	var gotMethod, gotAuth string
	cfg := sidecartest.NewServer(t, func(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
		gotMethod = method
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("authorization"); len(v) > 0 {
				gotAuth = v[0]
			}
		}
		return structpb.NewStruct(map[string]any{
			"echo":  sidecar.String(req, "text"),
			"count": 3,
		})
	})
	cfg.Token = "secret"

	client, err := sidecar.Dial(cfg, nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer client.Close()

	resp, err := client.Invoke(context.Background(), "/test.v1.Echo/Call", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Invoke error = %v", err)
	}
	if gotMethod != "/test.v1.Echo/Call" {
		t.Errorf("method = %q", gotMethod)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if sidecar.String(resp, "echo") != "hi" || sidecar.Number(resp, "count") != 3 {
		t.Errorf("response = %v", resp)
	}
	if stats := client.Stats(); stats.Calls != 1 || stats.Failures != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestInvoke_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	cfg := sidecartest.NewServer(t, func(context.Context, string, *structpb.Struct) (*structpb.Struct, error) {
		if calls.Add(1) < 3 {
			return nil, status.Error(codes.Unavailable, "warming up")
		}
		return structpb.NewStruct(map[string]any{"ok": true})
	})
	cfg.Backoff = sidecar.BackoffConfig{Initial: time.Millisecond, MaxAttempts: 5, MaxDelay: 5 * time.Millisecond}

	client, err := sidecar.Dial(cfg, nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer client.Close()

	if _, err := client.Invoke(context.Background(), "/test.v1.Echo/Call", nil); err != nil {
		t.Fatalf("Invoke error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestInvoke_DoesNotRetryOtherCodes(t *testing.T) {
	var calls atomic.Int32
	cfg := sidecartest.NewServer(t, func(context.Context, string, *structpb.Struct) (*structpb.Struct, error) {
		calls.Add(1)
		return nil, status.Error(codes.InvalidArgument, "bad audio")
	})

	client, err := sidecar.Dial(cfg, nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer client.Close()

	_, err = client.Invoke(context.Background(), "/test.v1.Echo/Call", nil)
	if status.Code(errors.Unwrap(err)) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
	if stats := client.Stats(); stats.Failures != 1 {
		t.Errorf("failures = %d, want 1", stats.Failures)
	}
}

func TestFieldHelpers_NilStruct(t *testing.T) {
	if sidecar.String(nil, "x") != "" || sidecar.Number(nil, "x") != 0 {
		t.Error("nil struct should yield zero values")
	}
}
