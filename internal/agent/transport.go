package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/stackbound/agentrelay/internal/logging"
)

// Descriptor is the connection descriptor for one invocation attempt. It is
// derived, immutable state: the factory recomputes it before every attempt
// so a refreshed bearer token is always reflected. Never cache it.
type Descriptor struct {
	EndpointURL string
	AuthHeader  string
}

// headers returns the HTTP headers for the streaming session.
func (d Descriptor) headers() map[string]string {
	return map[string]string{
		"Authorization": d.AuthHeader,
		"Content-Type":  "application/json",
	}
}

// LocatorResolver resolves the opaque agent locator into a runtime ARN.
type LocatorResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// SSMAPI is the Systems Manager surface used by ParameterResolver.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterResolver reads the runtime ARN from an SSM parameter on every
// call.
type ParameterResolver struct {
	api  SSMAPI
	name string
}

// NewParameterResolver creates a resolver for the given parameter name.
func NewParameterResolver(api SSMAPI, name string) *ParameterResolver {
	return &ParameterResolver{api: api, name: name}
}

// Resolve fetches the parameter value.
func (r *ParameterResolver) Resolve(ctx context.Context) (string, error) {
	out, err := r.api.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(r.name)})
	if err != nil {
		return "", err
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return "", fmt.Errorf("parameter %s has no value", r.name)
	}
	return *out.Parameter.Value, nil
}

// Locator returns the parameter name.
func (r *ParameterResolver) Locator() string {
	return r.name
}

// StaticResolver resolves to a fixed runtime ARN.
type StaticResolver string

// Resolve returns the fixed ARN.
func (r StaticResolver) Resolve(ctx context.Context) (string, error) {
	return string(r), nil
}

// TokenSource yields the current bearer token. Implementations must re-read
// backing storage on every call.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// FactoryConfig holds the dependencies and settings of a Factory.
type FactoryConfig struct {
	Resolver  LocatorResolver
	Tokens    TokenSource
	Region    string
	Qualifier string
	SecretID  string
	Logger    *logging.Logger
}

// Factory builds transport descriptors for the agent runtime endpoint.
type Factory struct {
	resolver  LocatorResolver
	tokens    TokenSource
	region    string
	qualifier string
	secretID  string
	logger    *logging.Logger
}

// NewFactory creates a Factory from a configuration.
func NewFactory(cfg FactoryConfig) *Factory {
	return &Factory{
		resolver:  cfg.Resolver,
		tokens:    cfg.Tokens,
		region:    cfg.Region,
		qualifier: cfg.Qualifier,
		secretID:  cfg.SecretID,
		logger:    cfg.Logger,
	}
}

// Build resolves the locator and reads the current bearer token, returning a
// fresh descriptor. Both reads happen at call time; nothing is cached across
// attempts.
func (f *Factory) Build(ctx context.Context) (Descriptor, error) {
	arn, err := f.resolver.Resolve(ctx)
	if err != nil {
		locator := "agent runtime"
		if named, ok := f.resolver.(interface{ Locator() string }); ok {
			locator = named.Locator()
		}
		return Descriptor{}, &ResolutionError{Locator: locator, Err: err}
	}

	token, err := f.tokens.BearerToken(ctx)
	if err != nil {
		return Descriptor{}, fmt.Errorf("reading bearer token: %w", err)
	}
	if token == "" {
		return Descriptor{}, &CredentialUnavailableError{SecretID: f.secretID}
	}

	endpoint := fmt.Sprintf(endpointURLTemplate, f.region, encodeARN(arn), f.qualifier)
	f.logger.Debug("transport descriptor built for %s", endpoint)

	return Descriptor{
		EndpointURL: endpoint,
		AuthHeader:  "Bearer " + token,
	}, nil
}

// arnEscaper percent-encodes the characters the runtime expects escaped in
// the ARN path segment.
var arnEscaper = strings.NewReplacer(":", "%3A", "/", "%2F")

func encodeARN(arn string) string {
	return arnEscaper.Replace(arn)
}
