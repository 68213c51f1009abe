package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/stackbound/agentrelay/internal/logging"
)

// IAMAPI is the IAM surface used by the role reconciler.
type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

// RoleSpec is the desired state of the runtime execution role.
type RoleSpec struct {
	RoleName   string
	PolicyName string
	AgentName  string
	Region     string
	AccountID  string

	// ManagedPolicyARNs are attached in addition to the inline policy.
	ManagedPolicyARNs []string
}

// Reconciler converges an IAM execution role toward a RoleSpec.
type Reconciler struct {
	api    IAMAPI
	logger *logging.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(api IAMAPI, logger *logging.Logger) *Reconciler {
	return &Reconciler{api: api, logger: logger}
}

// Ensure converges the role and returns its ARN. Re-running against an
// already converged account touches nothing destructive: the role is reused,
// the inline policy is rewritten wholesale, and already attached managed
// policies are skipped. A role created concurrently by another provisioner
// between the existence check and the create call is treated as found.
func (r *Reconciler) Ensure(ctx context.Context, spec RoleSpec) (string, error) {
	roleARN, err := r.ensureRole(ctx, spec)
	if err != nil {
		return "", err
	}

	if err := r.putInlinePolicy(ctx, spec); err != nil {
		return "", err
	}
	if err := r.attachManagedPolicies(ctx, spec); err != nil {
		return "", err
	}
	return roleARN, nil
}

func (r *Reconciler) ensureRole(ctx context.Context, spec RoleSpec) (string, error) {
	out, err := r.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(spec.RoleName)})
	if err == nil {
		r.logger.InfoVerbose("role %s already exists", spec.RoleName)
		return aws.ToString(out.Role.Arn), nil
	}

	var notFound *iamtypes.NoSuchEntityException
	if !errors.As(err, &notFound) {
		return "", fmt.Errorf("describing role %s: %w", spec.RoleName, err)
	}

	trust, err := AssumeRolePolicy(spec.Region, spec.AccountID).JSON()
	if err != nil {
		return "", err
	}

	created, err := r.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(spec.RoleName),
		AssumeRolePolicyDocument: aws.String(trust),
		Description:              aws.String(fmt.Sprintf("Execution role for the %s agent runtime", spec.AgentName)),
	})
	if err != nil {
		var exists *iamtypes.EntityAlreadyExistsException
		if errors.As(err, &exists) {
			// Lost a create race; the role is there now.
			existing, getErr := r.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(spec.RoleName)})
			if getErr != nil {
				return "", fmt.Errorf("describing role %s after create race: %w", spec.RoleName, getErr)
			}
			r.logger.InfoVerbose("role %s created concurrently", spec.RoleName)
			return aws.ToString(existing.Role.Arn), nil
		}
		return "", fmt.Errorf("creating role %s: %w", spec.RoleName, err)
	}

	r.logger.Success("created role %s", spec.RoleName)
	return aws.ToString(created.Role.Arn), nil
}

// putInlinePolicy replaces the inline execution policy wholesale. PutRolePolicy
// overwrites any existing document under the same name, so drift never
// accumulates.
func (r *Reconciler) putInlinePolicy(ctx context.Context, spec RoleSpec) error {
	doc, err := ExecutionPolicy(spec.Region, spec.AccountID, spec.AgentName).JSON()
	if err != nil {
		return err
	}

	_, err = r.api.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(spec.RoleName),
		PolicyName:     aws.String(spec.PolicyName),
		PolicyDocument: aws.String(doc),
	})
	if err != nil {
		return fmt.Errorf("writing inline policy %s on %s: %w", spec.PolicyName, spec.RoleName, err)
	}
	r.logger.InfoVerbose("inline policy %s written", spec.PolicyName)
	return nil
}

func (r *Reconciler) attachManagedPolicies(ctx context.Context, spec RoleSpec) error {
	if len(spec.ManagedPolicyARNs) == 0 {
		return nil
	}

	attached := make(map[string]bool)
	listOut, err := r.api.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(spec.RoleName),
	})
	if err != nil {
		return fmt.Errorf("listing attached policies on %s: %w", spec.RoleName, err)
	}
	for _, policy := range listOut.AttachedPolicies {
		attached[aws.ToString(policy.PolicyArn)] = true
	}

	for _, arn := range spec.ManagedPolicyARNs {
		if attached[arn] {
			r.logger.InfoVerbose("policy %s already attached", arn)
			continue
		}
		_, err := r.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(spec.RoleName),
			PolicyArn: aws.String(arn),
		})
		if err != nil {
			return fmt.Errorf("attaching policy %s to %s: %w", arn, spec.RoleName, err)
		}
		r.logger.Success("attached policy %s", arn)
	}
	return nil
}
