package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat/internal/config"
)

func TestAppStartsAndStopsWithEachBackend(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.Default()
			cfg.Addr = "127.0.0.1:0"
			cfg.DatabasePath = filepath.Join(dir, "chat.db")
			cfg.MessageBackend = backend
			cfg.BadgerPath = filepath.Join(dir, "messages")
			cfg.MediaDir = filepath.Join(dir, "media")
			cfg.ShutdownTimeout = time.Second

			logger := zerolog.Nop()
			application, err := New(&cfg, &logger)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- application.Run(ctx) }()

			time.Sleep(50 * time.Millisecond)
			cancel()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("Run returned error: %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return after cancellation")
			}
		})
	}
}
