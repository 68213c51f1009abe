package creds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/stackbound/agentrelay/internal/logging"
)

// JSON keys of the credential bundle secret.
const (
	bundleKeyClientID       = "client_id"
	bundleKeyAuthParameters = "AuthParameters"
	bundleKeyBearerToken    = "bearer_token"
)

// SecretsAPI is the Secrets Manager surface used by Store.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
}

// authParameters is the nested username/password object of the bundle.
type authParameters struct {
	Username string `json:"USERNAME"`
	Password string `json:"PASSWORD"`
}

// Bundle is a parsed credential bundle. The raw document is retained so a
// rewrite preserves fields this package does not model.
type Bundle struct {
	ClientID    string
	Username    string
	Password    string
	BearerToken string

	raw map[string]json.RawMessage
}

func parseBundle(secret []byte) (Bundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(secret, &raw); err != nil {
		return Bundle{}, fmt.Errorf("decoding credential bundle: %w", err)
	}

	b := Bundle{raw: raw}
	if msg, ok := raw[bundleKeyClientID]; ok {
		if err := json.Unmarshal(msg, &b.ClientID); err != nil {
			return Bundle{}, fmt.Errorf("decoding %s: %w", bundleKeyClientID, err)
		}
	}
	if msg, ok := raw[bundleKeyAuthParameters]; ok {
		var ap authParameters
		if err := json.Unmarshal(msg, &ap); err != nil {
			return Bundle{}, fmt.Errorf("decoding %s: %w", bundleKeyAuthParameters, err)
		}
		b.Username = ap.Username
		b.Password = ap.Password
	}
	if msg, ok := raw[bundleKeyBearerToken]; ok {
		if err := json.Unmarshal(msg, &b.BearerToken); err != nil {
			return Bundle{}, fmt.Errorf("decoding %s: %w", bundleKeyBearerToken, err)
		}
	}

	if b.ClientID == "" {
		return Bundle{}, fmt.Errorf("credential bundle is missing %s", bundleKeyClientID)
	}
	if b.Username == "" || b.Password == "" {
		return Bundle{}, fmt.Errorf("credential bundle is missing %s", bundleKeyAuthParameters)
	}
	return b, nil
}

// encodeWithToken renders the bundle document with bearer_token replaced and
// every other field unchanged.
func (b Bundle) encodeWithToken(token string) (string, error) {
	raw := make(map[string]json.RawMessage, len(b.raw)+1)
	for k, v := range b.raw {
		raw[k] = v
	}
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("encoding bearer token: %w", err)
	}
	raw[bundleKeyBearerToken] = tokenJSON

	doc, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("encoding credential bundle: %w", err)
	}
	return string(doc), nil
}

// Store reads and rewrites the credential bundle under a fixed secret key.
type Store struct {
	api      SecretsAPI
	secretID string
	logger   *logging.Logger
}

// NewStore creates a Store for the given secret key.
func NewStore(api SecretsAPI, secretID string, logger *logging.Logger) *Store {
	return &Store{api: api, secretID: secretID, logger: logger}
}

// SecretID returns the secret key the store operates on.
func (s *Store) SecretID() string {
	return s.secretID
}

// Load fetches and parses the credential bundle.
func (s *Store) Load(ctx context.Context) (Bundle, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("reading secret %s: %w", s.secretID, err)
	}
	if out.SecretString == nil {
		return Bundle{}, fmt.Errorf("secret %s has no string value", s.secretID)
	}
	return parseBundle([]byte(*out.SecretString))
}

// BearerToken returns the current bearer token, re-reading the secret on
// every call so a refreshed token is always observed. An absent token is
// reported as empty, not as an error; the caller decides how to surface it.
func (s *Store) BearerToken(ctx context.Context) (string, error) {
	bundle, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return bundle.BearerToken, nil
}

// SaveBearerToken rewrites the bundle wholesale with the new bearer token.
func (s *Store) SaveBearerToken(ctx context.Context, bundle Bundle, token string) error {
	doc, err := bundle.encodeWithToken(token)
	if err != nil {
		return err
	}
	_, err = s.api.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(s.secretID),
		SecretString: aws.String(doc),
	})
	if err != nil {
		return fmt.Errorf("updating secret %s: %w", s.secretID, err)
	}
	s.logger.InfoVerbose("credential bundle %s rewritten with refreshed token", s.secretID)
	return nil
}
