package health

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServerReportsStatus(t *testing.T) {
	t.Parallel()

	srv, err := Listen("127.0.0.1:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Stop()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := Probe(ctx, srv.Addr(), ChatService)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v before SetServing", status)
	}

	srv.SetServing(true)
	for _, svc := range []string{"", ChatService} {
		status, err := Probe(ctx, srv.Addr(), svc)
		if err != nil {
			t.Fatalf("Probe(%q): %v", svc, err)
		}
		if status != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("Probe(%q) = %v", svc, status)
		}
	}
}

func TestProbeUnknownService(t *testing.T) {
	t.Parallel()

	srv, err := Listen("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Probe(ctx, srv.Addr(), "nope"); err == nil {
		t.Fatal("expected NotFound error for unregistered service")
	}
}

func TestProbeNoServer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := Probe(ctx, "127.0.0.1:1", ""); err == nil {
		t.Fatal("expected error without a server")
	}
}
