// Package iamprofile ensures the EC2 instance profile the launch
// template references. Instance profile names are account-global, so the
// name itself is the stable identifier returned to callers.
package iamprofile

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/awserrors"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/probe"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

type IAMAPI interface {
	GetInstanceProfile(ctx context.Context, params *iam.GetInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error)
	CreateInstanceProfile(ctx context.Context, params *iam.CreateInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error)
	AddRoleToInstanceProfile(ctx context.Context, params *iam.AddRoleToInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error)
}

type Manager struct {
	client IAMAPI
	logger ports.Logger
}

func NewManager(client IAMAPI, logger ports.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

func (m *Manager) probeProfile(ctx context.Context, name string) (probe.Result, error) {
	_, err := m.client.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: aws.String(name),
	})
	if err != nil {
		if awserrors.IsNotFound(err) {
			return probe.Absent(), nil
		}
		return probe.Result{}, awserrors.Classify(ctx, err, domain.KindInstanceProfile.String(), name)
	}
	return probe.Found(name), nil
}

// EnsureInstanceProfile creates the profile and attaches roleName when
// the lookup classifies as not-found; any other lookup error propagates.
func (m *Manager) EnsureInstanceProfile(ctx context.Context, name, roleName string) (string, error) {
	result, err := m.probeProfile(ctx, name)
	if err != nil {
		return "", err
	}
	if result.Found {
		m.logger.Infof(ctx, "Reusing instance profile %q", name)
		return result.ID, nil
	}

	if _, err := m.client.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(name),
	}); err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindInstanceProfile.String(), name)
	}
	if _, err := m.client.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(name),
		RoleName:            aws.String(roleName),
	}); err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindInstanceProfile.String(), name)
	}

	m.logger.Infof(ctx, "Created instance profile %q with role %q", name, roleName)
	return name, nil
}
