package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// scriptedInvoker plays back one scripted attempt per call: each attempt may
// emit chunks before returning its error.
type scriptedInvoker struct {
	attempts []scriptedAttempt
	calls    int
	seen     []Descriptor
}

type scriptedAttempt struct {
	chunks []string
	err    error
}

func (s *scriptedInvoker) Invoke(ctx context.Context, desc Descriptor, prompt string, emit func(string)) error {
	s.seen = append(s.seen, desc)
	if s.calls >= len(s.attempts) {
		return fmt.Errorf("unexpected attempt %d", s.calls+1)
	}
	attempt := s.attempts[s.calls]
	s.calls++
	for _, chunk := range attempt.chunks {
		emit(chunk)
	}
	return attempt.err
}

type countingBuilder struct {
	tokens *fakeTokens
	calls  int
	err    error
}

func (b *countingBuilder) Build(ctx context.Context) (Descriptor, error) {
	b.calls++
	if b.err != nil {
		return Descriptor{}, b.err
	}
	token, _ := b.tokens.BearerToken(ctx)
	return Descriptor{
		EndpointURL: "https://example.test/invocations",
		AuthHeader:  "Bearer " + token,
	}, nil
}

type fakeRefresher struct {
	tokens *fakeTokens
	next   string
	err    error
	calls  int
}

func (f *fakeRefresher) Refresh(ctx context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.tokens.token = f.next
	return f.next, nil
}

func collect(t *testing.T, ch <-chan StreamItem) []StreamItem {
	t.Helper()
	var items []StreamItem
	for item := range ch {
		items = append(items, item)
	}
	return items
}

func newTestOrchestrator(builder TransportBuilder, invoker Invoker, refresher Refresher) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		Builder:   builder,
		Invoker:   invoker,
		Refresher: refresher,
	})
}

func TestRunSuccessStreamsChunks(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1"}
	invoker := &scriptedInvoker{attempts: []scriptedAttempt{
		{chunks: []string{"hello ", "world"}},
	}}
	orch := newTestOrchestrator(&countingBuilder{tokens: tokens}, invoker, &fakeRefresher{tokens: tokens})

	items := collect(t, orch.Run(context.Background(), "hi"))

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	for i, want := range []string{"hello ", "world"} {
		if items[i].IsError() || items[i].Data != want {
			t.Errorf("item %d = %+v, want data %q", i, items[i], want)
		}
	}
}

func TestRunRefreshesOnceAndRetriesWithNewToken(t *testing.T) {
	tokens := &fakeTokens{token: "stale"}
	builder := &countingBuilder{tokens: tokens}
	invoker := &scriptedInvoker{attempts: []scriptedAttempt{
		{err: errors.New("client initialization failed: 403")},
		{chunks: []string{"recovered"}},
	}}
	refresher := &fakeRefresher{tokens: tokens, next: "fresh"}
	orch := newTestOrchestrator(builder, invoker, refresher)

	items := collect(t, orch.Run(context.Background(), "hi"))

	if refresher.calls != 1 {
		t.Errorf("expected exactly one refresh, got %d", refresher.calls)
	}
	if invoker.calls != 2 {
		t.Errorf("expected two attempts, got %d", invoker.calls)
	}
	if builder.calls != 2 {
		t.Errorf("expected the transport to be rebuilt per attempt, got %d builds", builder.calls)
	}
	if invoker.seen[1].AuthHeader != "Bearer fresh" {
		t.Errorf("retry used stale token: %q", invoker.seen[1].AuthHeader)
	}
	if len(items) != 1 || items[0].Data != "recovered" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestRunSecondExpiryIsTerminal(t *testing.T) {
	tokens := &fakeTokens{token: "stale"}
	invoker := &scriptedInvoker{attempts: []scriptedAttempt{
		{err: errors.New("client initialization failed: 403")},
		{err: errors.New("client initialization failed: still 403")},
	}}
	refresher := &fakeRefresher{tokens: tokens, next: "fresh"}
	orch := newTestOrchestrator(&countingBuilder{tokens: tokens}, invoker, refresher)

	items := collect(t, orch.Run(context.Background(), "hi"))

	if refresher.calls != 1 {
		t.Errorf("expected exactly one refresh, got %d", refresher.calls)
	}
	if invoker.calls != 2 {
		t.Errorf("expected no third attempt, got %d attempts", invoker.calls)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single terminal item, got %d: %+v", len(items), items)
	}
	if items[0].Type != itemTypeStreamError {
		t.Errorf("terminal item type = %q, want %q", items[0].Type, itemTypeStreamError)
	}
	if items[0].Error == "" {
		t.Error("terminal item carries no error text")
	}
}

func TestRunOtherFailureDoesNotRefresh(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	invoker := &scriptedInvoker{attempts: []scriptedAttempt{
		{chunks: []string{"partial "}, err: errors.New("streaming turn against ask: unexpected EOF")},
	}}
	refresher := &fakeRefresher{tokens: tokens}
	orch := newTestOrchestrator(&countingBuilder{tokens: tokens}, invoker, refresher)

	items := collect(t, orch.Run(context.Background(), "hi"))

	if refresher.calls != 0 {
		t.Errorf("non-credential failures must not trigger a refresh, got %d", refresher.calls)
	}
	if invoker.calls != 1 {
		t.Errorf("expected a single attempt, got %d", invoker.calls)
	}
	// Chunks emitted before the failure stay on the stream, followed by the
	// terminal item.
	if len(items) != 2 {
		t.Fatalf("expected partial chunk plus terminal item, got %+v", items)
	}
	if items[0].Data != "partial " {
		t.Errorf("first item = %+v, want the partial chunk", items[0])
	}
	if items[1].Type != itemTypeStreamError {
		t.Errorf("last item = %+v, want a %s item", items[1], itemTypeStreamError)
	}
}

func TestRunRefreshFailureIsTerminal(t *testing.T) {
	tokens := &fakeTokens{token: "stale"}
	invoker := &scriptedInvoker{attempts: []scriptedAttempt{
		{err: errors.New("client initialization failed: 403")},
	}}
	refresher := &fakeRefresher{tokens: tokens, err: errors.New("NotAuthorizedException: incorrect username or password")}
	orch := newTestOrchestrator(&countingBuilder{tokens: tokens}, invoker, refresher)

	items := collect(t, orch.Run(context.Background(), "hi"))

	if invoker.calls != 1 {
		t.Errorf("expected no retry after a failed refresh, got %d attempts", invoker.calls)
	}
	if len(items) != 1 || items[0].Type != itemTypeStreamError {
		t.Fatalf("expected a single stream_error item, got %+v", items)
	}
	if items[0].Error != refresher.err.Error() {
		t.Errorf("terminal item reports %q, want the refresh error %q", items[0].Error, refresher.err)
	}
}

func TestRunBuildFailureIsTerminal(t *testing.T) {
	builder := &countingBuilder{err: errors.New("resolving agent runtime from /p: parameter not found")}
	invoker := &scriptedInvoker{}
	orch := newTestOrchestrator(builder, invoker, &fakeRefresher{})

	items := collect(t, orch.Run(context.Background(), "hi"))

	if invoker.calls != 0 {
		t.Errorf("no attempt should run without a descriptor, got %d", invoker.calls)
	}
	if len(items) != 1 || items[0].Type != itemTypeStreamError {
		t.Fatalf("expected a single stream_error item, got %+v", items)
	}
}

func TestRunChannelClosesAfterTerminalItem(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	invoker := &scriptedInvoker{attempts: []scriptedAttempt{
		{err: errors.New("boom")},
	}}
	orch := newTestOrchestrator(&countingBuilder{tokens: tokens}, invoker, &fakeRefresher{tokens: tokens})

	ch := orch.Run(context.Background(), "hi")
	<-ch
	if _, open := <-ch; open {
		t.Error("stream not closed after the terminal item")
	}
}
