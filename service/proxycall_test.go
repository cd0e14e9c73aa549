package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kleeedolinux/roomsync/socket"
)

func joinedLobby(t *testing.T, f *lobbyFixture) (*lobby, *fakeSocket) {
	t.Helper()
	rooms := &fakeRooms{}
	l := f.newLobby()
	c1 := newFakeSocket("c1", rooms)
	if err := l.ConnectToRoom(rooms, c1, "r1"); err != nil {
		t.Fatal(err)
	}
	return l, c1
}

func TestProxyCallAcknowledgesResult(t *testing.T) {
	f := newLobbyFixture(t)
	if err := f.typ.ProxyCall("start", func(ctx context.Context, self *lobby, args socket.Args) (interface{}, error) {
		return f.playerCount.Get(self.Service) > 0, nil
	}); err != nil {
		t.Fatal(err)
	}

	l, c1 := joinedLobby(t, f)
	f.playerCount.Set(l.Service, 2)

	values := awaitAck(t, c1.deliver(t, "proxyCall_Lobby_start"))
	if len(values) != 1 || values[0] != true {
		t.Fatalf("expected [true], got %v", values)
	}
}

func TestProxyCallWithoutValue(t *testing.T) {
	tests := []struct {
		name string
		fn   Method[*lobby]
	}{
		{"nil result", func(context.Context, *lobby, socket.Args) (interface{}, error) {
			return nil, nil
		}},
		{"error", func(context.Context, *lobby, socket.Args) (interface{}, error) {
			return "ignored", errors.New("boom")
		}},
		{"panic", func(context.Context, *lobby, socket.Args) (interface{}, error) {
			panic("boom")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLobbyFixture(t)
			if err := f.typ.ProxyCall("start", tt.fn); err != nil {
				t.Fatal(err)
			}
			_, c1 := joinedLobby(t, f)

			values := awaitAck(t, c1.deliver(t, "proxyCall_Lobby_start"))
			if len(values) != 0 {
				t.Fatalf("expected acknowledgement without value, got %v", values)
			}
		})
	}
}

func TestProxyCallFuncDecodesArgument(t *testing.T) {
	f := newLobbyFixture(t)
	err := ProxyCallFunc(f.typ, "addPlayers", func(ctx context.Context, self *lobby, n int) (int, error) {
		return f.playerCount.Update(self.Service, func(c int) int { return c + n }), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	l, c1 := joinedLobby(t, f)

	values := awaitAck(t, c1.deliver(t, "proxyCall_Lobby_addPlayers", 4))
	if len(values) != 1 || values[0] != 4 {
		t.Fatalf("expected [4], got %v", values)
	}
	if got := f.playerCount.Get(l.Service); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}

	values = awaitAck(t, c1.deliver(t, "proxyCall_Lobby_addPlayers", "not a number"))
	if len(values) != 0 {
		t.Fatalf("expected empty ack for bad argument, got %v", values)
	}
}

func TestProxyCallReregistrationReplaces(t *testing.T) {
	f := newLobbyFixture(t)
	f.typ.ProxyCall("start", func(context.Context, *lobby, socket.Args) (interface{}, error) {
		return "first", nil
	})
	f.typ.ProxyCall("start", func(context.Context, *lobby, socket.Args) (interface{}, error) {
		return "second", nil
	})

	_, c1 := joinedLobby(t, f)

	values := awaitAck(t, c1.deliver(t, "proxyCall_Lobby_start"))
	if len(values) != 1 || values[0] != "second" {
		t.Fatalf("expected [second], got %v", values)
	}
}

func TestProxyCallMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	f := newLobbyFixture(t, WithMetrics(m))
	f.typ.ProxyCall("fail", func(context.Context, *lobby, socket.Args) (interface{}, error) {
		return nil, errors.New("no")
	})

	_, c1 := joinedLobby(t, f)
	awaitAck(t, c1.deliver(t, "proxyCall_Lobby_fail"))

	// The acknowledgement is sent before the deferred metrics update.
	eventuallyTrue(t, func() bool {
		return testutil.ToFloat64(m.proxyCalls.WithLabelValues("Lobby", "fail", callStatusError)) == 1
	})
}
