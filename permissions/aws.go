package permissions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/kartta-io/kartta/types"
)

// AWSIdentity implements IdentityAPI against STS and the IAM policy
// simulator. Clients are built lazily per credential profile and reused.
type AWSIdentity struct {
	region string

	mu      sync.Mutex
	clients map[string]*awsClients
}

type awsClients struct {
	sts *sts.Client
	iam *iam.Client
}

// NewAWSIdentity creates the AWS-backed identity API
func NewAWSIdentity(region string) *AWSIdentity {
	return &AWSIdentity{
		region:  region,
		clients: make(map[string]*awsClients),
	}
}

func (a *AWSIdentity) clientsFor(ctx context.Context, profile string) (*awsClients, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[profile]; ok {
		return c, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(a.region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for profile %q: %w", profile, err)
	}

	c := &awsClients{
		sts: sts.NewFromConfig(cfg),
		iam: iam.NewFromConfig(cfg),
	}
	a.clients[profile] = c
	return c, nil
}

// CurrentIdentity resolves the calling principal via STS.
func (a *AWSIdentity) CurrentIdentity(ctx context.Context, profile string) (types.Identity, error) {
	c, err := a.clientsFor(ctx, profile)
	if err != nil {
		return types.Identity{}, err
	}

	output, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return types.Identity{}, fmt.Errorf("get caller identity: %w", err)
	}

	identity := types.Identity{
		PrincipalID:  aws.ToString(output.UserId),
		PrincipalARN: aws.ToString(output.Arn),
	}
	if strings.Contains(identity.PrincipalARN, ":assumed-role/") {
		identity.AssumedRoleARN = identity.PrincipalARN
	}

	return identity, nil
}

// Simulate evaluates the checklist actions against one resource address.
func (a *AWSIdentity) Simulate(ctx context.Context, profile, principalARN, resourceAddress string, actions []string) ([]Decision, error) {
	c, err := a.clientsFor(ctx, profile)
	if err != nil {
		return nil, err
	}

	// The simulator wants the role ARN, not the assumed-role session ARN
	principalARN = normalizePrincipal(principalARN)

	output, err := c.iam.SimulatePrincipalPolicy(ctx, &iam.SimulatePrincipalPolicyInput{
		PolicySourceArn: aws.String(principalARN),
		ActionNames:     actions,
		ResourceArns:    []string{resourceAddress},
	})
	if err != nil {
		return nil, fmt.Errorf("simulate principal policy: %w", err)
	}

	decisions := make([]Decision, 0, len(output.EvaluationResults))
	for _, result := range output.EvaluationResults {
		decisions = append(decisions, Decision{
			Action:  aws.ToString(result.EvalActionName),
			Allowed: result.EvalDecision == iamtypes.PolicyEvaluationDecisionTypeAllowed,
		})
	}

	return decisions, nil
}

// normalizePrincipal rewrites an assumed-role session ARN
// (arn:aws:sts::ACCT:assumed-role/NAME/SESSION) to the underlying role ARN.
func normalizePrincipal(arn string) string {
	const marker = ":assumed-role/"
	idx := strings.Index(arn, marker)
	if idx < 0 {
		return arn
	}

	rest := strings.SplitN(arn[idx+len(marker):], "/", 2)
	account := ""
	parts := strings.Split(arn, ":")
	if len(parts) > 4 {
		account = parts[4]
	}
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", account, rest[0])
}
