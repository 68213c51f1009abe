package provision

import (
	"encoding/json"
	"fmt"
)

// PolicyDocument is an IAM policy document.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single IAM policy statement.
type Statement struct {
	Sid       string            `json:"Sid,omitempty"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
	Condition map[string]any    `json:"Condition,omitempty"`
}

// JSON renders the document for the IAM API.
func (d PolicyDocument) JSON() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding policy document: %w", err)
	}
	return string(data), nil
}

const policyVersion = "2012-10-17"

// ExecutionPolicy is the inline policy of the runtime execution role. It
// grants what a hosted agent needs at runtime: pulling its container image,
// writing logs, traces and metrics, obtaining workload access tokens, and
// invoking foundation models.
func ExecutionPolicy(region, accountID, agentName string) PolicyDocument {
	return PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{
			{
				Sid:    "ECRImageAccess",
				Effect: "Allow",
				Action: []string{
					"ecr:BatchGetImage",
					"ecr:GetDownloadUrlForLayer",
				},
				Resource: []string{
					fmt.Sprintf("arn:aws:ecr:%s:%s:repository/*", region, accountID),
				},
			},
			{
				Sid:    "ECRTokenAccess",
				Effect: "Allow",
				Action: []string{
					"ecr:GetAuthorizationToken",
				},
				Resource: []string{"*"},
			},
			{
				Effect: "Allow",
				Action: []string{
					"logs:DescribeLogStreams",
					"logs:CreateLogGroup",
				},
				Resource: []string{
					fmt.Sprintf("arn:aws:logs:%s:%s:log-group:/aws/bedrock-agentcore/runtimes/*", region, accountID),
				},
			},
			{
				Effect: "Allow",
				Action: []string{
					"logs:DescribeLogGroups",
				},
				Resource: []string{
					fmt.Sprintf("arn:aws:logs:%s:%s:log-group:*", region, accountID),
				},
			},
			{
				Effect: "Allow",
				Action: []string{
					"logs:CreateLogStream",
					"logs:PutLogEvents",
				},
				Resource: []string{
					fmt.Sprintf("arn:aws:logs:%s:%s:log-group:/aws/bedrock-agentcore/runtimes/*:log-stream:*", region, accountID),
				},
			},
			{
				Sid:    "XRayAccess",
				Effect: "Allow",
				Action: []string{
					"xray:PutTraceSegments",
					"xray:PutTelemetryRecords",
					"xray:GetSamplingRules",
					"xray:GetSamplingTargets",
				},
				Resource: []string{"*"},
			},
			{
				Effect: "Allow",
				Action: []string{
					"cloudwatch:PutMetricData",
				},
				Resource: []string{"*"},
				Condition: map[string]any{
					"StringEquals": map[string]string{
						"cloudwatch:namespace": "bedrock-agentcore",
					},
				},
			},
			{
				Sid:    "GetAgentAccessToken",
				Effect: "Allow",
				Action: []string{
					"bedrock-agentcore:GetWorkloadAccessToken",
					"bedrock-agentcore:GetWorkloadAccessTokenForJWT",
					"bedrock-agentcore:GetWorkloadAccessTokenForUserId",
				},
				Resource: []string{
					fmt.Sprintf("arn:aws:bedrock-agentcore:%s:%s:workload-identity-directory/default", region, accountID),
					fmt.Sprintf("arn:aws:bedrock-agentcore:%s:%s:workload-identity-directory/default/workload-identity/%s-*", region, accountID, agentName),
				},
			},
			{
				Sid:    "BedrockModelInvocation",
				Effect: "Allow",
				Action: []string{
					"bedrock:InvokeModel",
					"bedrock:InvokeModelWithResponseStream",
				},
				Resource: []string{
					"arn:aws:bedrock:*::foundation-model/*",
					fmt.Sprintf("arn:aws:bedrock:%s:%s:*", region, accountID),
				},
			},
		},
	}
}

// AssumeRolePolicy is the trust policy of the execution role: only the agent
// runtime service in this account may assume it.
func AssumeRolePolicy(region, accountID string) PolicyDocument {
	return PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{
			{
				Sid:    "AssumeRolePolicy",
				Effect: "Allow",
				Principal: map[string]string{
					"Service": "bedrock-agentcore.amazonaws.com",
				},
				Action: []string{"sts:AssumeRole"},
				Condition: map[string]any{
					"StringEquals": map[string]string{
						"aws:SourceAccount": accountID,
					},
					"ArnLike": map[string]string{
						"aws:SourceArn": fmt.Sprintf("arn:aws:bedrock-agentcore:%s:%s:*", region, accountID),
					},
				},
			},
		},
	}
}
