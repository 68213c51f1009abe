package cmd

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/stackbound/agentrelay/internal/agent"
	"github.com/stackbound/agentrelay/internal/config"
	"github.com/stackbound/agentrelay/internal/creds"
	"github.com/stackbound/agentrelay/internal/logging"
)

// stack wires the invocation pipeline: credential store and refresher,
// transport factory, streaming engine, and the retry orchestrator on top.
type stack struct {
	cfg    *config.Config
	logger *logging.Logger
	region string
	awsCfg aws.Config

	store        *creds.Store
	manager      *creds.Manager
	factory      *agent.Factory
	engine       *agent.Engine
	orchestrator *agent.Orchestrator
}

// loadAWSConfig resolves the AWS configuration and the effective region.
func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, "", fmt.Errorf("loading AWS configuration: %w", err)
	}

	effectiveRegion := cfg.Region
	if effectiveRegion == "" {
		effectiveRegion = awsCfg.Region
	}
	if effectiveRegion == "" {
		return aws.Config{}, "", fmt.Errorf("no AWS region configured; set --region or the AWS config chain")
	}
	return awsCfg, effectiveRegion, nil
}

// buildStack assembles the full pipeline from the configuration.
func buildStack(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*stack, error) {
	awsCfg, effectiveRegion, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := creds.NewStore(secretsmanager.NewFromConfig(awsCfg), cfg.SecretID, logger)
	issuer := creds.NewCognitoIssuer(cognitoidentityprovider.NewFromConfig(awsCfg))
	manager := creds.NewManager(store, issuer, logger)

	var resolver agent.LocatorResolver
	if cfg.AgentARN != "" {
		resolver = agent.StaticResolver(cfg.AgentARN)
	} else {
		resolver = agent.NewParameterResolver(ssm.NewFromConfig(awsCfg), cfg.AgentARNParameter)
	}

	factory := agent.NewFactory(agent.FactoryConfig{
		Resolver:  resolver,
		Tokens:    store,
		Region:    effectiveRegion,
		Qualifier: cfg.Qualifier,
		SecretID:  cfg.SecretID,
		Logger:    logger,
	})

	engine := agent.NewEngine(agent.EngineConfig{
		EntryTool: cfg.EntryTool,
		Version:   version,
		Logger:    logger,
	})

	orchestrator := agent.NewOrchestrator(agent.OrchestratorConfig{
		Builder:    factory,
		Invoker:    engine,
		Refresher:  manager,
		Classifier: agent.NewClassifier(cfg.ExpiryPhrases...),
		Logger:     logger,
	})

	return &stack{
		cfg:          cfg,
		logger:       logger,
		region:       effectiveRegion,
		awsCfg:       awsCfg,
		store:        store,
		manager:      manager,
		factory:      factory,
		engine:       engine,
		orchestrator: orchestrator,
	}, nil
}
