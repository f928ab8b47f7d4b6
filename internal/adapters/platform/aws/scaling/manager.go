// Package scaling ensures the auto scaling group and its target-tracking
// policy. The group probe folds a ResourceInUse-classified fault into
// "present": the provider reports it for names that exist but cannot be
// recreated, so it routes to update rather than create.
package scaling

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/awserrors"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/probe"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

type AutoScalingAPI interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	CreateAutoScalingGroup(ctx context.Context, params *autoscaling.CreateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.CreateAutoScalingGroupOutput, error)
	UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)
	PutScalingPolicy(ctx context.Context, params *autoscaling.PutScalingPolicyInput, optFns ...func(*autoscaling.Options)) (*autoscaling.PutScalingPolicyOutput, error)
}

// GroupSpec is the desired shape both the create and update branches
// converge to.
type GroupSpec struct {
	Name             string
	LaunchTemplateID string
	SubnetIDs        []string
	Desired          int32
	Min              int32
	Max              int32
}

type Manager struct {
	client AutoScalingAPI
	logger ports.Logger
}

func NewManager(client AutoScalingAPI, logger ports.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

func (m *Manager) probeGroup(ctx context.Context, name string) (probe.Result, error) {
	out, err := m.client.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{name},
	})
	if err != nil {
		if awserrors.IsInUse(err) {
			return probe.Found(name), nil
		}
		return probe.Result{}, awserrors.Classify(ctx, err, domain.KindAutoScalingGroup.String(), name)
	}
	if len(out.AutoScalingGroups) == 0 {
		return probe.Absent(), nil
	}
	return probe.Found(name), nil
}

// EnsureAutoScalingGroup converges the named group to spec: absent
// groups are created, present ones updated with the same configuration.
func (m *Manager) EnsureAutoScalingGroup(ctx context.Context, spec GroupSpec, tags domain.TagSet) error {
	result, err := m.probeGroup(ctx, spec.Name)
	if err != nil {
		return err
	}

	zoneIdentifier := aws.String(strings.Join(spec.SubnetIDs, ","))
	launchTemplate := &astypes.LaunchTemplateSpecification{
		LaunchTemplateId: aws.String(spec.LaunchTemplateID),
	}

	if result.Found {
		if _, err := m.client.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
			AutoScalingGroupName: aws.String(spec.Name),
			LaunchTemplate:       launchTemplate,
			VPCZoneIdentifier:    zoneIdentifier,
			DesiredCapacity:      aws.Int32(spec.Desired),
			MinSize:              aws.Int32(spec.Min),
			MaxSize:              aws.Int32(spec.Max),
		}); err != nil {
			return awserrors.Classify(ctx, err, domain.KindAutoScalingGroup.String(), spec.Name)
		}
		m.logger.Infof(ctx, "Updated auto scaling group %q (desired=%d min=%d max=%d)", spec.Name, spec.Desired, spec.Min, spec.Max)
		return nil
	}

	named := tags.WithName(spec.Name)
	asgTags := make([]astypes.Tag, 0, len(named))
	for _, k := range named.SortedKeys() {
		asgTags = append(asgTags, astypes.Tag{
			Key:               aws.String(k),
			Value:             aws.String(named[k]),
			PropagateAtLaunch: aws.Bool(true),
		})
	}

	if _, err := m.client.CreateAutoScalingGroup(ctx, &autoscaling.CreateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(spec.Name),
		LaunchTemplate:       launchTemplate,
		VPCZoneIdentifier:    zoneIdentifier,
		DesiredCapacity:      aws.Int32(spec.Desired),
		MinSize:              aws.Int32(spec.Min),
		MaxSize:              aws.Int32(spec.Max),
		Tags:                 asgTags,
	}); err != nil {
		return awserrors.Classify(ctx, err, domain.KindAutoScalingGroup.String(), spec.Name)
	}
	m.logger.Infof(ctx, "Created auto scaling group %q (desired=%d min=%d max=%d)", spec.Name, spec.Desired, spec.Min, spec.Max)
	return nil
}

// EnsureTargetTrackingPolicy is a provider-native idempotent put, so no
// pre-check is needed.
func (m *Manager) EnsureTargetTrackingPolicy(ctx context.Context, name, asgName string, targetCPUPercent float64) error {
	if _, err := m.client.PutScalingPolicy(ctx, &autoscaling.PutScalingPolicyInput{
		AutoScalingGroupName: aws.String(asgName),
		PolicyName:           aws.String(name),
		PolicyType:           aws.String("TargetTrackingScaling"),
		TargetTrackingConfiguration: &astypes.TargetTrackingConfiguration{
			PredefinedMetricSpecification: &astypes.PredefinedMetricSpecification{
				PredefinedMetricType: astypes.MetricTypeASGAverageCPUUtilization,
			},
			TargetValue: aws.Float64(targetCPUPercent),
		},
	}); err != nil {
		return awserrors.Classify(ctx, err, "ScalingPolicy", name)
	}
	return nil
}
