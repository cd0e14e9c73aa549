package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kleeedolinux/roomsync/socket/transport"
)

func dialWebSocket(t *testing.T, url string) *Client {
	t.Helper()

	c := NewClient(transport.NewWebSocketTransport(url))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := NewServer()
	joined := make(chan string, 1)
	srv.HandleFunc(EventConnect, func(s Socket, e *Envelope) {
		srv.Join(s.ID(), "r1")
		joined <- s.ID()
	})
	srv.HandleFunc("sum", func(s Socket, e *Envelope) {
		var a, b int
		e.Args.Decode(0, &a)
		e.Args.Decode(1, &b)
		e.Respond(a + b)
	})

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleHTTP))
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket"
	c := dialWebSocket(t, url)
	recv(t, joined)

	replies := make(chan Args, 1)
	if err := c.EmitWithAck("sum", func(a Args) { replies <- a }, 2, 40); err != nil {
		t.Fatal(err)
	}
	var sum int
	if err := recv(t, replies).Decode(0, &sum); err != nil {
		t.Fatal(err)
	}
	if sum != 42 {
		t.Fatalf("expected 42, got %d", sum)
	}

	pushed := make(chan string, 1)
	c.On("news", func(e *Envelope) {
		var s string
		e.Args.Decode(0, &s)
		pushed <- s
	})
	srv.To("r1").Emit("news", "hello")
	if got := recv(t, pushed); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestWebSocketConnectFails(t *testing.T) {
	c := NewClient(transport.NewWebSocketTransport("ws://127.0.0.1:1/socket"))
	if err := c.Connect(context.Background()); err == nil {
		c.Close()
		t.Fatal("expected dial error")
	}
	if c.IsConnected() {
		t.Fatal("client should not be connected")
	}
}
