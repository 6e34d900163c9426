package memory

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Cyber-Mitch/nilshard/api"
)

type recordingSink struct {
	mu          sync.Mutex
	completions []api.Completion
}

func (s *recordingSink) Complete(_ context.Context, comp api.Completion) error {
	s.mu.Lock()
	s.completions = append(s.completions, comp)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.completions))
	for i, c := range s.completions {
		out[i] = c.RequestID
	}
	return out
}

func testMessage(id string) api.AsyncMessage {
	return api.AsyncMessage{
		RequestID: id,
		Target:    api.Target{Shard: 1, Address: "0x00112233445566778899aabbccddeeff00112233"},
		Payload:   []byte("ping"),
	}
}

func TestManualDeliveryOrderIsCallerControlled(t *testing.T) {
	p := New()
	sink := &recordingSink{}
	p.Bind(sink)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := p.SendAsyncRequest(ctx, testMessage(id)); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}
	if got := p.PendingCompletions(); got != 3 {
		t.Fatalf("pending %d", got)
	}

	// Newest first, then oldest: completions need not respect dispatch order.
	if err := p.DeliverLast(ctx); err != nil {
		t.Fatalf("deliver last: %v", err)
	}
	if err := p.DeliverAll(ctx); err != nil {
		t.Fatalf("deliver all: %v", err)
	}
	got := sink.ids()
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order %v, want %v", got, want)
		}
	}
}

func TestAutoDeliver(t *testing.T) {
	p := NewWithConfig(Config{AutoDeliver: true})
	sink := &recordingSink{}
	p.Bind(sink)
	if err := p.SendAsyncRequest(context.Background(), testMessage("x")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := sink.ids(); len(got) != 1 || got[0] != "x" {
		t.Fatalf("completions %v", got)
	}
}

func TestHandlerDecidesOutcome(t *testing.T) {
	p := NewWithConfig(Config{
		Handler: func(msg api.AsyncMessage) api.Result {
			return api.Result{Success: false, Err: "remote rejected"}
		},
	})
	sink := &recordingSink{}
	p.Bind(sink)
	ctx := context.Background()
	if err := p.SendAsyncRequest(ctx, testMessage("r")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := p.DeliverNext(ctx); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sink.completions) != 1 || sink.completions[0].Success || sink.completions[0].Error != "remote rejected" {
		t.Fatalf("completion %+v", sink.completions)
	}
}

func TestDefaultDeployAssignsAddress(t *testing.T) {
	p := New()
	sink := &recordingSink{}
	p.Bind(sink)
	ctx := context.Background()
	dep := api.DeployMessage{RequestID: "d1", Shard: 7, Bytecode: []byte{0x60}}
	if err := p.AsyncDeploy(ctx, dep); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := p.DeliverNext(ctx); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	addr := api.Address(sink.completions[0].Payload)
	if !strings.HasPrefix(string(addr), "0x") {
		t.Fatalf("address %q", addr)
	}
	if _, err := addr.Bytes(); err != nil {
		t.Fatalf("assigned address must decode: %v", err)
	}
}

func TestDeployAddressesAreUnique(t *testing.T) {
	p := New()
	sink := &recordingSink{}
	p.Bind(sink)
	ctx := context.Background()
	for i, id := range []string{"d1", "d2"} {
		dep := api.DeployMessage{RequestID: id, Shard: api.ShardID(i), Bytecode: []byte{0x60}}
		if err := p.AsyncDeploy(ctx, dep); err != nil {
			t.Fatalf("deploy %s: %v", id, err)
		}
	}
	if err := p.DeliverAll(ctx); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if string(sink.completions[0].Payload) == string(sink.completions[1].Payload) {
		t.Fatalf("addresses collide: %s", sink.completions[0].Payload)
	}
}

func TestRejectsUnboundDelivery(t *testing.T) {
	p := New()
	ctx := context.Background()
	if err := p.SendAsyncRequest(ctx, testMessage("a")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := p.DeliverNext(ctx); err == nil {
		t.Fatalf("expected error without a bound sink")
	}
}

func TestRejectsMalformedSubmissions(t *testing.T) {
	p := New()
	ctx := context.Background()
	if err := p.SendAsyncRequest(ctx, api.AsyncMessage{}); err == nil {
		t.Fatalf("expected error for missing request id")
	}
	if err := p.AsyncDeploy(ctx, api.DeployMessage{RequestID: "d"}); err == nil {
		t.Fatalf("expected error for missing bytecode")
	}
}
