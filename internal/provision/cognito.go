package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	secretstypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/google/uuid"

	"github.com/stackbound/agentrelay/internal/creds"
	"github.com/stackbound/agentrelay/internal/logging"
)

// discoveryURLTemplate is the OpenID discovery document of a user pool.
const discoveryURLTemplate = "https://cognito-idp.%s.amazonaws.com/%s/.well-known/openid-configuration"

// listPoolsPageSize is the maximum Cognito accepts per ListUserPools page.
const listPoolsPageSize = 60

// CognitoIDPAPI is the Cognito IdP surface used by the bootstrap.
type CognitoIDPAPI interface {
	ListUserPools(ctx context.Context, params *cognitoidentityprovider.ListUserPoolsInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUserPoolsOutput, error)
	CreateUserPool(ctx context.Context, params *cognitoidentityprovider.CreateUserPoolInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.CreateUserPoolOutput, error)
	ListUserPoolClients(ctx context.Context, params *cognitoidentityprovider.ListUserPoolClientsInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUserPoolClientsOutput, error)
	CreateUserPoolClient(ctx context.Context, params *cognitoidentityprovider.CreateUserPoolClientInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.CreateUserPoolClientOutput, error)
	AdminCreateUser(ctx context.Context, params *cognitoidentityprovider.AdminCreateUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, params *cognitoidentityprovider.AdminSetUserPasswordInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminSetUserPasswordOutput, error)
}

// SecretsWriteAPI is the Secrets Manager surface used to seed the credential
// bundle.
type SecretsWriteAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

// BootstrapSpec is the desired state of the token-issuing user pool.
type BootstrapSpec struct {
	PoolName   string
	ClientName string
	Username   string

	// Password for the pool user. Generated when empty.
	Password string

	// SecretID is the credential bundle key to seed.
	SecretID string

	Region string
}

// BootstrapResult reports what the bootstrap converged to.
type BootstrapResult struct {
	PoolID       string
	ClientID     string
	DiscoveryURL string
	SecretARN    string
}

// Bootstrap converges the Cognito user pool, app client, and pool user, then
// seeds the credential bundle secret with a freshly issued bearer token.
type Bootstrap struct {
	idp     CognitoIDPAPI
	secrets SecretsWriteAPI
	issuer  creds.TokenIssuer
	logger  *logging.Logger
}

// NewBootstrap creates a Bootstrap.
func NewBootstrap(idp CognitoIDPAPI, secrets SecretsWriteAPI, issuer creds.TokenIssuer, logger *logging.Logger) *Bootstrap {
	return &Bootstrap{idp: idp, secrets: secrets, issuer: issuer, logger: logger}
}

// Run converges every resource and returns the resulting identifiers.
func (b *Bootstrap) Run(ctx context.Context, spec BootstrapSpec) (BootstrapResult, error) {
	if spec.Password == "" {
		spec.Password = generatePassword()
	}

	poolID, err := b.ensurePool(ctx, spec.PoolName)
	if err != nil {
		return BootstrapResult{}, err
	}
	clientID, err := b.ensureAppClient(ctx, poolID, spec.ClientName)
	if err != nil {
		return BootstrapResult{}, err
	}
	if err := b.ensureUser(ctx, poolID, spec.Username, spec.Password); err != nil {
		return BootstrapResult{}, err
	}

	token, err := b.issuer.IssueToken(ctx, clientID, spec.Username, spec.Password)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("issuing initial bearer token: %w", err)
	}

	result := BootstrapResult{
		PoolID:       poolID,
		ClientID:     clientID,
		DiscoveryURL: fmt.Sprintf(discoveryURLTemplate, spec.Region, poolID),
	}
	secretARN, err := b.writeBundle(ctx, spec, result, token)
	if err != nil {
		return BootstrapResult{}, err
	}
	result.SecretARN = secretARN
	return result, nil
}

func (b *Bootstrap) ensurePool(ctx context.Context, name string) (string, error) {
	var nextToken *string
	for {
		out, err := b.idp.ListUserPools(ctx, &cognitoidentityprovider.ListUserPoolsInput{
			MaxResults: aws.Int32(listPoolsPageSize),
			NextToken:  nextToken,
		})
		if err != nil {
			return "", fmt.Errorf("listing user pools: %w", err)
		}
		for _, pool := range out.UserPools {
			if aws.ToString(pool.Name) == name {
				b.logger.InfoVerbose("user pool %s already exists", name)
				return aws.ToString(pool.Id), nil
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	created, err := b.idp.CreateUserPool(ctx, &cognitoidentityprovider.CreateUserPoolInput{
		PoolName: aws.String(name),
		Policies: &cognitotypes.UserPoolPolicyType{
			PasswordPolicy: &cognitotypes.PasswordPolicyType{
				MinimumLength: aws.Int32(8),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating user pool %s: %w", name, err)
	}
	b.logger.Success("created user pool %s", name)
	return aws.ToString(created.UserPool.Id), nil
}

func (b *Bootstrap) ensureAppClient(ctx context.Context, poolID, name string) (string, error) {
	var nextToken *string
	for {
		out, err := b.idp.ListUserPoolClients(ctx, &cognitoidentityprovider.ListUserPoolClientsInput{
			UserPoolId: aws.String(poolID),
			MaxResults: aws.Int32(listPoolsPageSize),
			NextToken:  nextToken,
		})
		if err != nil {
			return "", fmt.Errorf("listing app clients of %s: %w", poolID, err)
		}
		for _, client := range out.UserPoolClients {
			if aws.ToString(client.ClientName) == name {
				b.logger.InfoVerbose("app client %s already exists", name)
				return aws.ToString(client.ClientId), nil
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	created, err := b.idp.CreateUserPoolClient(ctx, &cognitoidentityprovider.CreateUserPoolClientInput{
		UserPoolId: aws.String(poolID),
		ClientName: aws.String(name),
		ExplicitAuthFlows: []cognitotypes.ExplicitAuthFlowsType{
			cognitotypes.ExplicitAuthFlowsTypeAllowUserPasswordAuth,
			cognitotypes.ExplicitAuthFlowsTypeAllowRefreshTokenAuth,
		},
		GenerateSecret: false,
	})
	if err != nil {
		return "", fmt.Errorf("creating app client %s: %w", name, err)
	}
	b.logger.Success("created app client %s", name)
	return aws.ToString(created.UserPoolClient.ClientId), nil
}

// ensureUser creates the pool user with a permanent password. An existing
// user gets its password reset so the bundle's stored credentials always
// authenticate.
func (b *Bootstrap) ensureUser(ctx context.Context, poolID, username, password string) error {
	_, err := b.idp.AdminCreateUser(ctx, &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId:        aws.String(poolID),
		Username:          aws.String(username),
		TemporaryPassword: aws.String(password),
		MessageAction:     cognitotypes.MessageActionTypeSuppress,
	})
	if err != nil {
		var exists *cognitotypes.UsernameExistsException
		if !errors.As(err, &exists) {
			return fmt.Errorf("creating user %s: %w", username, err)
		}
		b.logger.InfoVerbose("user %s already exists", username)
	} else {
		b.logger.Success("created user %s", username)
	}

	_, err = b.idp.AdminSetUserPassword(ctx, &cognitoidentityprovider.AdminSetUserPasswordInput{
		UserPoolId: aws.String(poolID),
		Username:   aws.String(username),
		Password:   aws.String(password),
		Permanent:  true,
	})
	if err != nil {
		return fmt.Errorf("setting password for %s: %w", username, err)
	}
	return nil
}

// writeBundle seeds the credential bundle secret. An existing secret gets a
// new value; the bundle is always rewritten wholesale.
func (b *Bootstrap) writeBundle(ctx context.Context, spec BootstrapSpec, result BootstrapResult, token string) (string, error) {
	bundle := map[string]any{
		"pool_id":   result.PoolID,
		"client_id": result.ClientID,
		"AuthParameters": map[string]string{
			"USERNAME": spec.Username,
			"PASSWORD": spec.Password,
		},
		"bearer_token":  token,
		"discovery_url": result.DiscoveryURL,
	}
	doc, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("encoding credential bundle: %w", err)
	}

	created, err := b.secrets.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(spec.SecretID),
		SecretString: aws.String(string(doc)),
	})
	if err == nil {
		b.logger.Success("created credential bundle %s", spec.SecretID)
		return aws.ToString(created.ARN), nil
	}

	var exists *secretstypes.ResourceExistsException
	if !errors.As(err, &exists) {
		return "", fmt.Errorf("creating secret %s: %w", spec.SecretID, err)
	}

	put, err := b.secrets.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(spec.SecretID),
		SecretString: aws.String(string(doc)),
	})
	if err != nil {
		return "", fmt.Errorf("rewriting secret %s: %w", spec.SecretID, err)
	}
	b.logger.InfoVerbose("credential bundle %s rewritten", spec.SecretID)
	return aws.ToString(put.ARN), nil
}

// generatePassword produces a pool password satisfying the default policy.
func generatePassword() string {
	return "Ar1!" + uuid.NewString()[:20]
}
