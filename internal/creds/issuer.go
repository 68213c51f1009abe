package creds

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// Cognito auth parameter names for the USER_PASSWORD_AUTH flow.
const (
	authParamUsername = "USERNAME"
	authParamPassword = "PASSWORD"
)

// TokenIssuer exchanges a username/password pair for a short-lived bearer
// token.
type TokenIssuer interface {
	IssueToken(ctx context.Context, clientID, username, password string) (string, error)
}

// CognitoAPI is the Cognito IdP surface used by CognitoIssuer.
type CognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// CognitoIssuer issues bearer tokens through the USER_PASSWORD_AUTH flow of
// a Cognito user pool app client.
type CognitoIssuer struct {
	api CognitoAPI
}

// NewCognitoIssuer creates a CognitoIssuer.
func NewCognitoIssuer(api CognitoAPI) *CognitoIssuer {
	return &CognitoIssuer{api: api}
}

// IssueToken authenticates the user and returns the access token.
func (i *CognitoIssuer) IssueToken(ctx context.Context, clientID, username, password string) (string, error) {
	out, err := i.api.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		ClientId: aws.String(clientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			authParamUsername: username,
			authParamPassword: password,
		},
	})
	if err != nil {
		return "", fmt.Errorf("initiating auth for client %s: %w", clientID, err)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.AccessToken == nil {
		return "", fmt.Errorf("authentication result for client %s carries no access token", clientID)
	}
	return *out.AuthenticationResult.AccessToken, nil
}
