package agent

import (
	"context"

	"github.com/stackbound/agentrelay/internal/logging"
)

// TransportBuilder rebuilds a connection descriptor. Called before every
// attempt so a refreshed bearer token is observed by the next attempt.
type TransportBuilder interface {
	Build(ctx context.Context) (Descriptor, error)
}

// Invoker runs a single streaming attempt against a descriptor.
type Invoker interface {
	Invoke(ctx context.Context, desc Descriptor, prompt string, emit func(string)) error
}

// Refresher refreshes the stored bearer token and returns the new value.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// maxRefreshesPerRequest bounds credential recovery for one logical request.
// Exactly one refresh-and-retry is permitted; a second expiry classification
// is terminal, so a persistently broken credential can never loop.
const maxRefreshesPerRequest = 1

// OrchestratorConfig holds the collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Builder    TransportBuilder
	Invoker    Invoker
	Refresher  Refresher
	Classifier *Classifier
	Logger     *logging.Logger
}

// Orchestrator drives one streaming attempt per logical request, with at
// most one refresh-and-retry when the failure classifies as an expired
// credential. Every terminal outcome is delivered as an error-tagged item on
// the output stream, never as a fault crossing the component boundary.
type Orchestrator struct {
	builder      TransportBuilder
	invoker      Invoker
	refresher    Refresher
	classifier   *Classifier
	logger       *logging.Logger
	maxRefreshes int
}

// NewOrchestrator creates an Orchestrator from a configuration.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Orchestrator{
		builder:      cfg.Builder,
		invoker:      cfg.Invoker,
		refresher:    cfg.Refresher,
		classifier:   classifier,
		logger:       cfg.Logger,
		maxRefreshes: maxRefreshesPerRequest,
	}
}

// Run executes one logical request. The returned channel yields agent data
// chunks in arrival order and, on failure, exactly one terminal error item;
// it is always closed. The consumer may abandon the stream at any point by
// cancelling ctx.
func (o *Orchestrator) Run(ctx context.Context, prompt string) <-chan StreamItem {
	out := make(chan StreamItem)

	go func() {
		defer close(out)

		send := func(item StreamItem) {
			select {
			case out <- item:
			case <-ctx.Done():
			}
		}
		emit := func(chunk string) {
			send(DataItem(chunk))
		}

		refreshes := 0
		for {
			err := o.attempt(ctx, prompt, emit)
			if err == nil {
				return
			}

			if o.classifier.Classify(err) != KindCredentialExpired {
				o.logger.Error("invocation failed: %v", err)
				send(StreamErrorItem(err))
				return
			}
			if refreshes >= o.maxRefreshes {
				o.logger.Error("invocation failed after token refresh: %v", err)
				send(StreamErrorItem(err))
				return
			}

			refreshes++
			o.logger.Warning("credential expired, refreshing bearer token: %v", err)
			if _, refreshErr := o.refresher.Refresh(ctx); refreshErr != nil {
				// The refresh failure is more actionable than the original
				// streaming error, so it becomes the terminal outcome.
				o.logger.Error("token refresh failed: %v", refreshErr)
				send(StreamErrorItem(refreshErr))
				return
			}
		}
	}()

	return out
}

// attempt rebuilds the transport and runs one streaming attempt.
func (o *Orchestrator) attempt(ctx context.Context, prompt string, emit func(string)) error {
	desc, err := o.builder.Build(ctx)
	if err != nil {
		return err
	}
	return o.invoker.Invoke(ctx, desc, prompt, emit)
}
