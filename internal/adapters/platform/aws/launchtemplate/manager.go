// Package launchtemplate ensures the EC2 launch template the scaling
// group consumes. The template name is the idempotence key; a not-found
// lookup classification is the creation trigger.
package launchtemplate

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/awserrors"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/probe"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/tagspec"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

type EC2API interface {
	DescribeLaunchTemplates(ctx context.Context, params *ec2.DescribeLaunchTemplatesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplatesOutput, error)
	CreateLaunchTemplate(ctx context.Context, params *ec2.CreateLaunchTemplateInput, optFns ...func(*ec2.Options)) (*ec2.CreateLaunchTemplateOutput, error)
}

// Spec carries everything baked into instances launched from the
// template. UserData is plain text; it is base64-encoded on the wire.
type Spec struct {
	Name             string
	ImageID          string
	InstanceType     string
	InstanceProfile  string
	SecurityGroupIDs []string
	UserData         string
}

type Manager struct {
	client EC2API
	logger ports.Logger
}

func NewManager(client EC2API, logger ports.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

func (m *Manager) probeTemplate(ctx context.Context, name string) (probe.Result, error) {
	out, err := m.client.DescribeLaunchTemplates(ctx, &ec2.DescribeLaunchTemplatesInput{
		LaunchTemplateNames: []string{name},
	})
	if err != nil {
		if awserrors.IsNotFound(err) {
			return probe.Absent(), nil
		}
		return probe.Result{}, awserrors.Classify(ctx, err, domain.KindLaunchTemplate.String(), name)
	}
	if len(out.LaunchTemplates) == 0 {
		return probe.Absent(), nil
	}
	return probe.Found(aws.ToString(out.LaunchTemplates[0].LaunchTemplateId)), nil
}

func (m *Manager) EnsureLaunchTemplate(ctx context.Context, spec Spec, tags domain.TagSet) (string, error) {
	result, err := m.probeTemplate(ctx, spec.Name)
	if err != nil {
		return "", err
	}
	if result.Found {
		m.logger.Infof(ctx, "Reusing launch template %s for %q", result.ID, spec.Name)
		return result.ID, nil
	}

	named := tags.WithName(spec.Name)
	data := &ec2types.RequestLaunchTemplateData{
		ImageId:      aws.String(spec.ImageID),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		IamInstanceProfile: &ec2types.LaunchTemplateIamInstanceProfileSpecificationRequest{
			Name: aws.String(spec.InstanceProfile),
		},
		SecurityGroupIds: spec.SecurityGroupIDs,
		TagSpecifications: []ec2types.LaunchTemplateTagSpecificationRequest{
			{ResourceType: ec2types.ResourceTypeInstance, Tags: tagspec.Tags(named)},
			{ResourceType: ec2types.ResourceTypeVolume, Tags: tagspec.Tags(named)},
		},
	}
	if spec.UserData != "" {
		data.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData)))
	}

	created, err := m.client.CreateLaunchTemplate(ctx, &ec2.CreateLaunchTemplateInput{
		LaunchTemplateName: aws.String(spec.Name),
		LaunchTemplateData: data,
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindLaunchTemplate.String(), spec.Name)
	}

	templateID := aws.ToString(created.LaunchTemplate.LaunchTemplateId)
	m.logger.Infof(ctx, "Created launch template %s for %q", templateID, spec.Name)
	return templateID, nil
}
