package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) BearerToken(ctx context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

type failingResolver struct {
	err error
}

func (r failingResolver) Resolve(ctx context.Context) (string, error) {
	return "", r.err
}

func (r failingResolver) Locator() string {
	return "/test/agent_arn"
}

func newTestFactory(resolver LocatorResolver, tokens TokenSource) *Factory {
	return NewFactory(FactoryConfig{
		Resolver:  resolver,
		Tokens:    tokens,
		Region:    "us-west-2",
		Qualifier: "DEFAULT",
		SecretID:  "bundle/key",
	})
}

func TestBuildDescriptor(t *testing.T) {
	resolver := StaticResolver("arn:aws:bedrock-agentcore:us-west-2:123456789012:runtime/case-agent")
	tokens := &fakeTokens{token: "tok-1"}
	factory := newTestFactory(resolver, tokens)

	desc, err := factory.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	wantURL := "https://bedrock-agentcore.us-west-2.amazonaws.com/runtimes/" +
		"arn%3Aaws%3Abedrock-agentcore%3Aus-west-2%3A123456789012%3Aruntime%2Fcase-agent" +
		"/invocations?qualifier=DEFAULT"
	if desc.EndpointURL != wantURL {
		t.Errorf("EndpointURL = %q, want %q", desc.EndpointURL, wantURL)
	}
	if desc.AuthHeader != "Bearer tok-1" {
		t.Errorf("AuthHeader = %q, want %q", desc.AuthHeader, "Bearer tok-1")
	}
}

func TestBuildRereadsTokenEveryCall(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1"}
	factory := newTestFactory(StaticResolver("arn:aws:x:y:z:runtime/a"), tokens)

	first, err := factory.Build(context.Background())
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}

	tokens.token = "tok-2"
	second, err := factory.Build(context.Background())
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}

	if tokens.calls != 2 {
		t.Errorf("expected the token to be re-read per build, got %d reads", tokens.calls)
	}
	if first.AuthHeader == second.AuthHeader {
		t.Errorf("descriptor cached a stale token: %q", second.AuthHeader)
	}
	if second.AuthHeader != "Bearer tok-2" {
		t.Errorf("AuthHeader = %q, want %q", second.AuthHeader, "Bearer tok-2")
	}
}

func TestBuildResolutionError(t *testing.T) {
	factory := newTestFactory(failingResolver{err: errors.New("parameter not found")}, &fakeTokens{token: "tok"})

	_, err := factory.Build(context.Background())
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "/test/agent_arn") {
		t.Errorf("expected error to name the locator, got %q", err.Error())
	}
}

func TestBuildCredentialUnavailable(t *testing.T) {
	factory := newTestFactory(StaticResolver("arn:aws:x:y:z:runtime/a"), &fakeTokens{token: ""})

	_, err := factory.Build(context.Background())
	var unavailErr *CredentialUnavailableError
	if !errors.As(err, &unavailErr) {
		t.Fatalf("expected *CredentialUnavailableError, got %T: %v", err, err)
	}
	if unavailErr.SecretID != "bundle/key" {
		t.Errorf("SecretID = %q, want %q", unavailErr.SecretID, "bundle/key")
	}
}

func TestBuildTokenReadFailure(t *testing.T) {
	factory := newTestFactory(StaticResolver("arn:aws:x:y:z:runtime/a"), &fakeTokens{err: errors.New("access denied")})

	_, err := factory.Build(context.Background())
	if err == nil {
		t.Fatal("expected error when the token read fails")
	}
	var unavailErr *CredentialUnavailableError
	if errors.As(err, &unavailErr) {
		t.Errorf("a failed read is not the same as an absent token: %v", err)
	}
}

func TestEncodeARN(t *testing.T) {
	got := encodeARN("arn:aws:bedrock-agentcore:eu-west-1:42:runtime/x/y")
	want := "arn%3Aaws%3Abedrock-agentcore%3Aeu-west-1%3A42%3Aruntime%2Fx%2Fy"
	if got != want {
		t.Errorf("encodeARN = %q, want %q", got, want)
	}
}
