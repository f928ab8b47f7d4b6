// Package securitygroup owns group creation and rule configuration.
// Rule idempotence is coarse: if any rule already exists in a direction
// the whole requested set for that direction is skipped. Growing the
// configured rule set after the first run therefore does not propagate
// until the group is recreated; that trade-off is documented behavior,
// not a bug.
package securitygroup

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/awserrors"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/tagspec"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

type EC2API interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	DescribeSecurityGroupRules(ctx context.Context, params *ec2.DescribeSecurityGroupRulesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupRulesOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	AuthorizeSecurityGroupEgress(ctx context.Context, params *ec2.AuthorizeSecurityGroupEgressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error)
}

// Rule is one CIDR-scoped permission.
type Rule struct {
	Protocol    string `mapstructure:"protocol" validate:"required"`
	FromPort    int32  `mapstructure:"from_port"`
	ToPort      int32  `mapstructure:"to_port"`
	CIDR        string `mapstructure:"cidr" validate:"required,cidrv4"`
	Description string `mapstructure:"description"`
}

type Manager struct {
	client EC2API
	logger ports.Logger
}

func NewManager(client EC2API, logger ports.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// EnsureSecurityGroup keys on (vpc, group name).
func (m *Manager) EnsureSecurityGroup(ctx context.Context, vpcID, name, description string, tags domain.TagSet) (string, error) {
	out, err := m.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("group-name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindSecurityGroup.String(), name)
	}
	if len(out.SecurityGroups) > 0 {
		groupID := aws.ToString(out.SecurityGroups[0].GroupId)
		m.logger.Infof(ctx, "Reusing security group %s for %q", groupID, name)
		return groupID, nil
	}

	created, err := m.client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String(description),
		VpcId:             aws.String(vpcID),
		TagSpecifications: tagspec.For(ec2types.ResourceTypeSecurityGroup, tags.WithName(name)),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindSecurityGroup.String(), name)
	}
	groupID := aws.ToString(created.GroupId)
	m.logger.Infof(ctx, "Created security group %s for %q", groupID, name)
	return groupID, nil
}

func (m *Manager) ConfigureRules(ctx context.Context, groupID string, ingress, egress []Rule) error {
	if len(ingress) > 0 {
		if err := m.authorizeIfDirectionEmpty(ctx, groupID, ingress, false); err != nil {
			return err
		}
	}
	if len(egress) > 0 {
		if err := m.authorizeIfDirectionEmpty(ctx, groupID, egress, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) authorizeIfDirectionEmpty(ctx context.Context, groupID string, rules []Rule, egress bool) error {
	out, err := m.client.DescribeSecurityGroupRules(ctx, &ec2.DescribeSecurityGroupRulesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-id"), Values: []string{groupID}},
		},
	})
	if err != nil {
		return awserrors.Classify(ctx, err, domain.KindSecurityGroup.String(), groupID)
	}

	// The rules API has no direction filter; split client-side.
	for _, existing := range out.SecurityGroupRules {
		if aws.ToBool(existing.IsEgress) == egress {
			direction := "ingress"
			if egress {
				direction = "egress"
			}
			m.logger.Infof(ctx, "Security group %s already has %s rules, skipping", groupID, direction)
			return nil
		}
	}

	permissions := toIPPermissions(rules)
	if egress {
		_, err = m.client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: permissions,
		})
	} else {
		_, err = m.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: permissions,
		})
	}
	if err != nil {
		if awserrors.IsAlreadyExists(err) {
			return nil
		}
		return awserrors.Classify(ctx, err, domain.KindSecurityGroup.String(), groupID)
	}
	return nil
}

func toIPPermissions(rules []Rule) []ec2types.IpPermission {
	permissions := make([]ec2types.IpPermission, 0, len(rules))
	for _, r := range rules {
		permissions = append(permissions, ec2types.IpPermission{
			IpProtocol: aws.String(r.Protocol),
			FromPort:   aws.Int32(r.FromPort),
			ToPort:     aws.Int32(r.ToPort),
			IpRanges: []ec2types.IpRange{{
				CidrIp:      aws.String(r.CIDR),
				Description: aws.String(r.Description),
			}},
		})
	}
	return permissions
}
