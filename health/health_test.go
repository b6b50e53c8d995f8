package health

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"mailnotify/internal/metrics"
)

func TestStartHealthServer(t *testing.T) {
	server, listener, err := StartHealthServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("StartHealthServer returned error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		_ = listener.Close()
	}()

	baseURL := "http://" + listener.Addr().String()

	resp, err := http.Get(baseURL + "/healthz")
	if err != nil {
		t.Fatalf("health request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", resp.StatusCode)
	}

	metrics.SendAttempts.WithLabelValues("relay").Inc()
	resp, err = http.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request error: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics failed: %v", err)
	}
	if !strings.Contains(string(body), `mailnotify_send_attempts_total{transport="relay"}`) {
		t.Fatalf("expected mailnotify metrics, got:\n%s", body)
	}
}

func TestStartHealthServerBadAddress(t *testing.T) {
	if _, _, err := StartHealthServer("256.0.0.1:bad"); err == nil {
		t.Fatalf("expected listen error")
	}
}
