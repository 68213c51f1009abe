package cmd

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"github.com/stackbound/agentrelay/internal/config"
	"github.com/stackbound/agentrelay/internal/creds"
	"github.com/stackbound/agentrelay/internal/provision"
)

var (
	provisionAgentName string
	provisionPoolName  string
	provisionAppClient string
	provisionUsername  string
	provisionPassword  string
)

// provisionCmd represents the provision command
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Converge the cloud resources the agent runtime needs",
	Long: `The provision command converges the IAM execution role and the Cognito
user pool backing the credential bundle.

It is safe to run repeatedly: the role is reused if present, its inline
policy is rewritten wholesale, already attached managed policies are skipped,
and an existing user pool, app client, user, and secret are updated in place.
A freshly issued bearer token is written into the credential bundle at the
end of every run.`,
	RunE: runProvision,
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().StringVar(&provisionAgentName, "agent-name", config.DefaultAgentName, "Agent name used for role and workload identity naming")
	provisionCmd.Flags().StringVar(&provisionPoolName, "pool-name", config.DefaultPoolName, "Cognito user pool name")
	provisionCmd.Flags().StringVar(&provisionAppClient, "app-client-name", config.DefaultAppClientName, "Cognito app client name")
	provisionCmd.Flags().StringVar(&provisionUsername, "username", config.DefaultUsername, "Pool user to create")
	provisionCmd.Flags().StringVar(&provisionPassword, "password", "", "Password for the pool user (generated when empty)")
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	cfg.AgentName = provisionAgentName
	cfg.PoolName = provisionPoolName
	cfg.AppClientName = provisionAppClient
	cfg.Username = provisionUsername
	cfg.Password = provisionPassword

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	setupSignalHandler(cancel)

	logger := newLogger()
	awsCfg, effectiveRegion, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}

	accountID, err := provision.CallerAccount(ctx, sts.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}
	logger.InfoVerbose("provisioning in account %s, region %s", accountID, effectiveRegion)

	reconciler := provision.NewReconciler(iam.NewFromConfig(awsCfg), logger)
	roleARN, err := reconciler.Ensure(ctx, provision.RoleSpec{
		RoleName:          cfg.RoleName(),
		PolicyName:        cfg.PolicyName,
		AgentName:         cfg.AgentName,
		Region:            effectiveRegion,
		AccountID:         accountID,
		ManagedPolicyARNs: cfg.ManagedPolicyARNs,
	})
	if err != nil {
		return err
	}
	logger.Success("execution role ready: %s", roleARN)

	idp := cognitoidentityprovider.NewFromConfig(awsCfg)
	bootstrap := provision.NewBootstrap(idp, secretsmanager.NewFromConfig(awsCfg), creds.NewCognitoIssuer(idp), logger)
	result, err := bootstrap.Run(ctx, provision.BootstrapSpec{
		PoolName:   cfg.PoolName,
		ClientName: cfg.AppClientName,
		Username:   cfg.Username,
		Password:   cfg.Password,
		SecretID:   cfg.SecretID,
		Region:     effectiveRegion,
	})
	if err != nil {
		return err
	}

	logger.Success("user pool ready: %s", result.PoolID)
	logger.Info("app client: %s", result.ClientID)
	logger.Info("discovery URL: %s", result.DiscoveryURL)
	logger.Info("credential bundle: %s", cfg.SecretID)
	return nil
}
