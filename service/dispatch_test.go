package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kleeedolinux/roomsync/socket"
	"github.com/kleeedolinux/roomsync/socket/transport"
)

type counter struct {
	*Service

	mu   sync.Mutex
	seen []int
}

func (c *counter) pushed() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.seen...)
}

type counterFixture struct {
	count   Mirrored[int]
	counter *counter
	client  *socket.Client
}

func newCounterFixture(t *testing.T) *counterFixture {
	t.Helper()

	typ := MustDefine[*counter](NewRegistry(), "Counter")
	f := &counterFixture{count: MustMirror(typ, "count", 0)}

	if err := ProxyCallFunc(typ, "set", func(ctx context.Context, self *counter, n int) (int, error) {
		f.count.Set(self.Service, n)
		return n, nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := ProxyCallFunc(typ, "push", func(ctx context.Context, self *counter, n int) (int, error) {
		self.mu.Lock()
		defer self.mu.Unlock()
		self.seen = append(self.seen, n)
		return n, nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := typ.ProxyCallAsync("slow", func(ctx context.Context, self *counter, args socket.Args) (interface{}, error) {
		time.Sleep(20 * time.Millisecond)
		return "done", nil
	}); err != nil {
		t.Fatal(err)
	}

	f.counter = &counter{}
	f.counter.Service = typ.New(f.counter)

	srv := socket.NewServer()
	srv.HandleFunc(socket.EventConnect, func(s socket.Socket, _ *socket.Envelope) {
		srv.Join(s.ID(), "r1")
		if err := f.counter.ConnectToRoom(srv, s, "r1"); err != nil {
			t.Errorf("connect to room: %v", err)
		}
	})

	ct, st := transport.Pipe("a")
	srv.Accept(st)
	f.client = socket.NewClient(ct)
	if err := f.client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.client.Close() })
	return f
}

func waitArgs(t *testing.T, ch <-chan socket.Args) socket.Args {
	t.Helper()
	select {
	case a := <-ch:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for acknowledgement")
	}
	return nil
}

func TestProxyCallsRunInSendOrder(t *testing.T) {
	const n = 200

	f := newCounterFixture(t)
	acks := make(chan socket.Args, n)
	for i := 0; i < n; i++ {
		if err := f.client.EmitWithAck("proxyCall_Counter_push", func(a socket.Args) { acks <- a }, i); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		waitArgs(t, acks)
	}

	seen := f.counter.pushed()
	if len(seen) != n {
		t.Fatalf("expected %d calls, got %d", n, len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("call %d ran as %d: %v", i, v, seen[:i+1])
		}
	}
}

func TestPullAfterCallSeesItsWrite(t *testing.T) {
	f := newCounterFixture(t)

	for round := 1; round <= 50; round++ {
		pulled := make(chan socket.Args, 1)
		if err := f.client.EmitWithAck("proxyCall_Counter_set", func(socket.Args) {}, round); err != nil {
			t.Fatal(err)
		}
		if err := f.client.EmitWithAck("requestPropUpdate_Counter_count", func(a socket.Args) { pulled <- a }); err != nil {
			t.Fatal(err)
		}

		var got int
		if err := waitArgs(t, pulled).Decode(0, &got); err != nil {
			t.Fatal(err)
		}
		if got != round {
			t.Fatalf("round %d: pull returned stale %d", round, got)
		}
	}
}

func TestProxyCallAsyncDoesNotBlockDispatch(t *testing.T) {
	f := newCounterFixture(t)

	order := make(chan string, 2)
	if err := f.client.EmitWithAck("proxyCall_Counter_slow", func(socket.Args) { order <- "slow" }); err != nil {
		t.Fatal(err)
	}
	if err := f.client.EmitWithAck("proxyCall_Counter_push", func(socket.Args) { order <- "push" }, 1); err != nil {
		t.Fatal(err)
	}

	var got []string
	for len(got) < 2 {
		select {
		case name := <-order:
			got = append(got, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out with %v", got)
		}
	}
	if first, second := got[0], got[1]; first != "push" || second != "slow" {
		t.Fatalf("expected push before slow, got %s then %s", first, second)
	}
}
