package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/team-of-2/novelize/notes/store"
)

func TestServe_ProcessesContentAndSavesOnShutdown(t *testing.T) {
	t.Parallel()

	mem := afero.NewMemMapFs()
	a := newTestApp(mem, storyModel())
	a.cfg = defaultConfig()
	a.cfg.StoreDir = "/sessions"

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln, "panel") }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Post(base+"/content", "text/plain", strings.NewReader("Alice went to the market."))
	if err != nil {
		cancel()
		t.Fatalf("post content: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "went to the market") {
		cancel()
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}

	snap, err := store.NewFileStore(mem, "/sessions").Load(context.Background(), "panel")
	if err != nil {
		t.Fatalf("load saved session: %v", err)
	}
	if snap.Notes["Alice"].Summary != "went to the market" || snap.Version != 1 {
		t.Fatalf("snapshot=%+v", snap)
	}
}
