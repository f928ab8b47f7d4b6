// Package aws bundles the region-scoped service clients every resource
// manager is built from.
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/olusolaa/infra-deployer/internal/errors"
)

type Clients struct {
	Region         string
	EC2            *ec2.Client
	AutoScaling    *autoscaling.Client
	RDS            *rds.Client
	IAM            *iam.Client
	S3             *s3.Client
	SecretsManager *secretsmanager.Client
	sts            *sts.Client
}

func NewClients(ctx context.Context, region string) (*Clients, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigValidation, "failed to load AWS configuration")
	}
	return NewClientsFromConfig(cfg), nil
}

func NewClientsFromConfig(cfg awssdk.Config) *Clients {
	return &Clients{
		Region:         cfg.Region,
		EC2:            ec2.NewFromConfig(cfg),
		AutoScaling:    autoscaling.NewFromConfig(cfg),
		RDS:            rds.NewFromConfig(cfg),
		IAM:            iam.NewFromConfig(cfg),
		S3:             s3.NewFromConfig(cfg),
		SecretsManager: secretsmanager.NewFromConfig(cfg),
		sts:            sts.NewFromConfig(cfg),
	}
}

// CallerIdentity reports the account the run is provisioning into. Logged
// once at bootstrap so a misconfigured credential chain is obvious.
func (c *Clients) CallerIdentity(ctx context.Context) (string, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errors.Wrap(err, errors.CodePlatformAuth, "failed to resolve AWS caller identity")
	}
	if out.Account == nil {
		return "", errors.New(errors.CodePlatformAuth, "caller identity response carried no account ID")
	}
	return *out.Account, nil
}
