// Package config holds the runtime configuration for agentrelay. All
// components take an explicit Config (or fields derived from it) at
// construction; there is no process-wide state.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults matching the deployed support MCP server environment.
const (
	// DefaultSecretID is the Secrets Manager key of the credential bundle.
	DefaultSecretID = "support_mcp_server/cognito/credentials"

	// DefaultAgentARNParameter is the SSM parameter holding the runtime ARN.
	DefaultAgentARNParameter = "/support_mcp_server/runtime/agent_arn"

	// DefaultQualifier selects the runtime endpoint version.
	DefaultQualifier = "DEFAULT"

	// DefaultExpiryPhrase is the error-message substring that marks a failed
	// attempt as recoverable by a token refresh.
	DefaultExpiryPhrase = "client initialization failed"

	// DefaultAgentName is used for role naming during provisioning.
	DefaultAgentName = "awssupportcaseagent"

	// DefaultRoleNameTemplate expands the agent name into the execution role
	// name.
	DefaultRoleNameTemplate = "agentcore-%s-role"

	// DefaultPolicyName is the fixed name of the inline execution policy.
	DefaultPolicyName = "AgentCorePolicy"

	// DefaultSupportPolicyARN grants the runtime access to the Support API.
	DefaultSupportPolicyARN = "arn:aws:iam::aws:policy/AWSSupportAccess"

	// DefaultPoolName and DefaultAppClientName identify the Cognito user
	// pool and app client created by provisioning.
	DefaultPoolName      = "AWS-Support-MCPServerPool"
	DefaultAppClientName = "AWS-Support-MCP-Server-PoolClient"

	// DefaultUsername is the provisioned service user.
	DefaultUsername = "testuser"

	// DefaultInvokeTimeout bounds a single streaming invocation.
	DefaultInvokeTimeout = 120 * time.Second

	// DefaultPrompt is used when an invocation payload omits the prompt.
	DefaultPrompt = "show me the case in the past four weeks?"
)

// Config is the full agentrelay configuration, populated from CLI flags.
type Config struct {
	// Region is the AWS region; resolved from the AWS config chain when
	// empty.
	Region string

	// SecretID is the Secrets Manager key of the credential bundle.
	SecretID string

	// AgentARNParameter is the SSM parameter holding the agent runtime ARN.
	AgentARNParameter string

	// AgentARN, when set, bypasses parameter resolution.
	AgentARN string

	// Qualifier selects the runtime endpoint version.
	Qualifier string

	// EntryTool names the conversational entry tool on the runtime. When
	// empty the engine selects the single tool accepting a prompt parameter.
	EntryTool string

	// ExpiryPhrases are the error-message substrings classified as an
	// expired credential.
	ExpiryPhrases []string

	// InvokeTimeout bounds a single logical request end to end.
	InvokeTimeout time.Duration

	// DefaultPrompt is substituted when a payload carries no prompt.
	DefaultPrompt string

	// Provisioning settings.
	AgentName         string
	RoleNameTemplate  string
	PolicyName        string
	ManagedPolicyARNs []string
	PoolName          string
	AppClientName     string
	Username          string
	Password          string
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		SecretID:          DefaultSecretID,
		AgentARNParameter: DefaultAgentARNParameter,
		Qualifier:         DefaultQualifier,
		ExpiryPhrases:     []string{DefaultExpiryPhrase},
		InvokeTimeout:     DefaultInvokeTimeout,
		DefaultPrompt:     DefaultPrompt,
		AgentName:         DefaultAgentName,
		RoleNameTemplate:  DefaultRoleNameTemplate,
		PolicyName:        DefaultPolicyName,
		ManagedPolicyARNs: []string{DefaultSupportPolicyARN},
		PoolName:          DefaultPoolName,
		AppClientName:     DefaultAppClientName,
		Username:          DefaultUsername,
	}
}

// Validate checks that the configuration is usable for invocation.
func (c *Config) Validate() error {
	if c.SecretID == "" {
		return fmt.Errorf("secret id is required")
	}
	if c.AgentARN == "" && c.AgentARNParameter == "" {
		return fmt.Errorf("either an agent ARN or an agent ARN parameter is required")
	}
	if c.Qualifier == "" {
		return fmt.Errorf("endpoint qualifier is required")
	}
	if c.InvokeTimeout <= 0 {
		return fmt.Errorf("invoke timeout must be positive, got %v", c.InvokeTimeout)
	}
	if len(c.ExpiryPhrases) == 0 {
		return fmt.Errorf("at least one credential-expiry phrase is required")
	}
	if !strings.Contains(c.RoleNameTemplate, "%s") {
		return fmt.Errorf("role name template %q must contain %%s", c.RoleNameTemplate)
	}
	return nil
}

// RoleName expands the role name template for the configured agent name.
func (c *Config) RoleName() string {
	return fmt.Sprintf(c.RoleNameTemplate, c.AgentName)
}
