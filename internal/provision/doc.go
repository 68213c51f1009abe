// Package provision converges the cloud-side prerequisites of the agent
// runtime: the IAM execution role with its inline and managed policies, and
// the Cognito user pool that issues the bearer tokens stored in the
// credential bundle.
//
// Every operation is idempotent. Reconcilers describe the desired state and
// converge toward it, tolerating resources created concurrently by another
// provisioner run.
package provision
