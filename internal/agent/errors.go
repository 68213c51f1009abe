package agent

import "fmt"

// ResolutionError reports that the agent runtime locator could not be
// resolved to an ARN.
type ResolutionError struct {
	Locator string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving agent runtime from %s: %v", e.Locator, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// CredentialUnavailableError reports that the credential bundle carries no
// bearer token. A refresh or a provisioning run is needed before invocations
// can succeed.
type CredentialUnavailableError struct {
	SecretID string
}

func (e *CredentialUnavailableError) Error() string {
	return fmt.Sprintf("credential bundle %s carries no bearer token", e.SecretID)
}
