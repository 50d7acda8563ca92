package order

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"order-router/internal/order/api/http"
	xerrors "order-router/internal/xpkg/errors"
	"order-router/internal/xpkg/logger"
)

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"--port", "8080", "--migrate", "--config-path", "/etc/router.yaml"})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if p.serverParams.Port != 8080 || !p.serverParams.Migrate || p.configPath != "/etc/router.yaml" {
		t.Errorf("unexpected params %+v", p)
	}

	p, err = parseParams(nil)
	if err != nil || p.serverParams.Port != 3000 || p.configPath != "config.yaml" {
		t.Errorf("defaults = %+v, %v", p, err)
	}

	if _, err := parseParams([]string{"--help"}); !errors.Is(err, xerrors.ErrHelp) {
		t.Errorf("--help err = %v, want ErrHelp", err)
	}
	if _, err := parseParams([]string{"--port", "abc"}); !errors.Is(err, xerrors.ErrParseCmd) {
		t.Errorf("bad port err = %v, want ErrParseCmd", err)
	}
}

func TestValidateParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  host: localhost\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	p, _ := parseParams([]string{"--config-path", path})
	if err := validateParams(p); err != nil || p.cfg == nil {
		t.Fatalf("validateParams = %v", err)
	}

	p, _ = parseParams([]string{"--config-path", path, "--port", "70000"})
	if err := validateParams(p); err == nil {
		t.Error("expected port range error")
	}
}

type fakeServer struct {
	runErr  error
	stopped chan struct{}
	once    sync.Once
	mu      sync.Mutex
	stops   int
}

func newFakeServer(runErr error) *fakeServer {
	return &fakeServer{runErr: runErr, stopped: make(chan struct{})}
}

func (f *fakeServer) Run() error {
	if f.runErr != nil {
		return f.runErr
	}
	<-f.stopped
	return nil
}

func (f *fakeServer) Stop(context.Context) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.once.Do(func() { close(f.stopped) })
	return nil
}

func TestServe(t *testing.T) {
	boom := errors.New("listen: address in use")
	tests := []struct {
		name    string
		runErr  error
		cancel  bool
		wantErr error
	}{
		{name: "signal stops the server", cancel: true},
		{name: "run failure stops the server", runErr: boom, wantErr: boom},
		{name: "closed server exits cleanly", runErr: http.ErrServerClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			srv := newFakeServer(tt.runErr)

			done := make(chan error, 1)
			go func() { done <- serve(ctx, srv, logger.Discard()) }()
			if tt.cancel {
				cancel()
			}

			select {
			case err := <-done:
				if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
					t.Errorf("serve = %v, want %v", err, tt.wantErr)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("serve did not return")
			}

			srv.mu.Lock()
			defer srv.mu.Unlock()
			if srv.stops != 1 {
				t.Errorf("Stop called %d times, want 1", srv.stops)
			}
		})
	}
}
