package transcription

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/eleven-am/voice-relay/internal/sidecar"
	"github.com/eleven-am/voice-relay/internal/sidecar/sidecartest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func dialTest(t *testing.T, handler sidecartest.HandlerFunc) *sidecar.Client {
	t.Helper()
	client, err := sidecar.Dial(sidecartest.NewServer(t, handler), nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_Transcribe(t *testing.T) {
	var req *structpb.Struct
	sc := dialTest(t, func(_ context.Context, method string, r *structpb.Struct) (*structpb.Struct, error) {
		if method != TranscribeMethod {
			t.Errorf("method = %q", method)
		}
		req = r
		return structpb.NewStruct(map[string]any{"text": "  namaste  ", "language": "hi"})
	})

	c := NewClient(sc, NewLanguages("kn"), nil)
	text, detected, err := c.Transcribe(context.Background(), []float32{0, 0.5, -0.5}, "hi")
	if err != nil {
		t.Fatalf("Transcribe error = %v", err)
	}
	if text != "namaste" || detected != "hi" {
		t.Errorf("got (%q, %q)", text, detected)
	}

	if got := sidecar.String(req, "language"); got != "hin" {
		t.Errorf("adapter = %q, want hin", got)
	}
	if got := sidecar.Number(req, "sample_rate"); got != 16000 {
		t.Errorf("sample_rate = %v", got)
	}
	pcm, err := base64.StdEncoding.DecodeString(sidecar.String(req, "audio"))
	if err != nil || len(pcm) != 6 {
		t.Errorf("audio payload len = %d err = %v", len(pcm), err)
	}
}

func TestClient_TranscribeDefaultsLanguage(t *testing.T) {
	var adapter string
	sc := dialTest(t, func(_ context.Context, _ string, r *structpb.Struct) (*structpb.Struct, error) {
		adapter = sidecar.String(r, "language")
		return structpb.NewStruct(map[string]any{"text": "ok"})
	})

	c := NewClient(sc, NewLanguages(""), nil)
	_, detected, err := c.Transcribe(context.Background(), []float32{0.1}, "auto")
	if err != nil {
		t.Fatalf("Transcribe error = %v", err)
	}
	if adapter != "kan" || detected != "kn" {
		t.Errorf("adapter = %q detected = %q", adapter, detected)
	}
}

func TestClient_TranscribeEmptyInputSkipsCall(t *testing.T) {
	called := false
	sc := dialTest(t, func(context.Context, string, *structpb.Struct) (*structpb.Struct, error) {
		called = true
		return &structpb.Struct{}, nil
	})

	text, _, err := NewClient(sc, NewLanguages("en"), nil).Transcribe(context.Background(), nil, "en")
	if err != nil || text != "" || called {
		t.Errorf("text=%q err=%v called=%v", text, err, called)
	}
}

func TestClient_TranscribeError(t *testing.T) {
	sc := dialTest(t, func(context.Context, string, *structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Internal, "adapter missing")
	})

	_, _, err := NewClient(sc, NewLanguages("en"), nil).Transcribe(context.Background(), []float32{0.1}, "en")
	if err == nil {
		t.Fatal("expected error")
	}
}
