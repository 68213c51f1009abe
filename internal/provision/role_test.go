package provision

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// fakeIAM is an in-memory IAM role store.
type fakeIAM struct {
	roles          map[string]string // name -> ARN
	inlinePolicies map[string]string // policy name -> document
	attached       []string

	createRaces bool // CreateRole fails with EntityAlreadyExists
	getErr      error
	putErr      error
	attachErr   error

	createCalls int
	putCalls    int
	attachCalls int
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{
		roles:          make(map[string]string),
		inlinePolicies: make(map[string]string),
	}
}

func (f *fakeIAM) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	name := aws.ToString(params.RoleName)
	arn, ok := f.roles[name]
	if !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("role not found")}
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{Arn: aws.String(arn), RoleName: params.RoleName}}, nil
}

func (f *fakeIAM) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.createCalls++
	name := aws.ToString(params.RoleName)
	if f.createRaces {
		// Another provisioner created the role between GetRole and here.
		f.roles[name] = "arn:aws:iam::42:role/" + name
		return nil, &iamtypes.EntityAlreadyExistsException{Message: aws.String("role exists")}
	}
	if _, ok := f.roles[name]; ok {
		return nil, &iamtypes.EntityAlreadyExistsException{Message: aws.String("role exists")}
	}
	arn := "arn:aws:iam::42:role/" + name
	f.roles[name] = arn
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{Arn: aws.String(arn), RoleName: params.RoleName}}, nil
}

func (f *fakeIAM) PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.putCalls++
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.inlinePolicies[aws.ToString(params.PolicyName)] = aws.ToString(params.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeIAM) ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	out := &iam.ListAttachedRolePoliciesOutput{}
	for _, arn := range f.attached {
		out.AttachedPolicies = append(out.AttachedPolicies, iamtypes.AttachedPolicy{PolicyArn: aws.String(arn)})
	}
	return out, nil
}

func (f *fakeIAM) AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	f.attachCalls++
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.attached = append(f.attached, aws.ToString(params.PolicyArn))
	return &iam.AttachRolePolicyOutput{}, nil
}

func testSpec() RoleSpec {
	return RoleSpec{
		RoleName:          "agentcore-caseagent-role",
		PolicyName:        "AgentCorePolicy",
		AgentName:         "caseagent",
		Region:            "us-west-2",
		AccountID:         "123456789012",
		ManagedPolicyARNs: []string{"arn:aws:iam::aws:policy/AWSSupportAccess"},
	}
}

func TestEnsureCreatesRole(t *testing.T) {
	api := newFakeIAM()
	reconciler := NewReconciler(api, nil)

	arn, err := reconciler.Ensure(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if arn != "arn:aws:iam::42:role/agentcore-caseagent-role" {
		t.Errorf("ARN = %q", arn)
	}
	if api.createCalls != 1 {
		t.Errorf("createCalls = %d", api.createCalls)
	}
	if _, ok := api.inlinePolicies["AgentCorePolicy"]; !ok {
		t.Error("inline policy not written")
	}
	if len(api.attached) != 1 || api.attached[0] != "arn:aws:iam::aws:policy/AWSSupportAccess" {
		t.Errorf("attached = %v", api.attached)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	api := newFakeIAM()
	reconciler := NewReconciler(api, nil)
	spec := testSpec()

	first, err := reconciler.Ensure(context.Background(), spec)
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	second, err := reconciler.Ensure(context.Background(), spec)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	if first != second {
		t.Errorf("ARN changed across runs: %q vs %q", first, second)
	}
	if api.createCalls != 1 {
		t.Errorf("role recreated: createCalls = %d", api.createCalls)
	}
	// The inline policy is rewritten every run; the managed policy is
	// attached once.
	if api.putCalls != 2 {
		t.Errorf("putCalls = %d, want 2", api.putCalls)
	}
	if api.attachCalls != 1 {
		t.Errorf("attachCalls = %d, want 1", api.attachCalls)
	}
}

func TestEnsureToleratesCreateRace(t *testing.T) {
	api := newFakeIAM()
	api.createRaces = true
	reconciler := NewReconciler(api, nil)

	arn, err := reconciler.Ensure(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("Ensure after create race: %v", err)
	}
	if arn == "" {
		t.Error("no ARN returned after create race")
	}
	if api.putCalls != 1 {
		t.Errorf("inline policy not written after create race: putCalls = %d", api.putCalls)
	}
}

func TestEnsureSurfacesDescribeFailure(t *testing.T) {
	api := newFakeIAM()
	api.getErr = errors.New("AccessDenied: not authorized")
	reconciler := NewReconciler(api, nil)

	_, err := reconciler.Ensure(context.Background(), testSpec())
	if err == nil {
		t.Fatal("expected error when GetRole fails with a non-NotFound error")
	}
	if api.createCalls != 0 {
		t.Errorf("CreateRole attempted despite unknown describe failure: %d", api.createCalls)
	}
}

func TestEnsureSurfacesPolicyWriteFailure(t *testing.T) {
	api := newFakeIAM()
	api.putErr = fmt.Errorf("MalformedPolicyDocument")
	reconciler := NewReconciler(api, nil)

	_, err := reconciler.Ensure(context.Background(), testSpec())
	if err == nil {
		t.Fatal("expected error when PutRolePolicy fails")
	}
}

func TestEnsureSkipsAttachedPolicies(t *testing.T) {
	api := newFakeIAM()
	api.roles["agentcore-caseagent-role"] = "arn:aws:iam::42:role/agentcore-caseagent-role"
	api.attached = []string{"arn:aws:iam::aws:policy/AWSSupportAccess"}
	reconciler := NewReconciler(api, nil)

	if _, err := reconciler.Ensure(context.Background(), testSpec()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if api.attachCalls != 0 {
		t.Errorf("already attached policy re-attached %d times", api.attachCalls)
	}
}
