// Package network owns the VPC, internet gateway and subnet ensure
// operations. VPCs are keyed by their Name tag, subnets by the
// (vpc, cidr) pair since subnet names are synthetic.
package network

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

type Manager struct {
	client EC2API
	logger ports.Logger
}

func NewManager(client EC2API, logger ports.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// EnsureVPC looks the VPC up by Name tag and returns the existing id
// unchanged when found; CIDR mismatches are not reconciled, first writer
// wins. On create, DNS support and DNS hostnames are enabled as a fixed
// post-creation step; both must succeed before the VPC counts as ready.
func (m *Manager) EnsureVPC(ctx context.Context, name, cidr string, tags domain.TagSet) (string, error) {
	out, err := m.client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:" + domain.TagKeyName), Values: []string{name}},
		},
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindVPC.String(), name)
	}
	if len(out.Vpcs) > 0 {
		vpcID := aws.ToString(out.Vpcs[0].VpcId)
		m.logger.Infof(ctx, "Reusing VPC %s for %q", vpcID, name)
		return vpcID, nil
	}

	created, err := m.client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(cidr),
		TagSpecifications: tagspec.For(ec2types.ResourceTypeVpc, tags.WithName(name)),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindVPC.String(), name)
	}
	vpcID := aws.ToString(created.Vpc.VpcId)

	for _, attr := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: aws.String(vpcID), EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: aws.String(vpcID), EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if _, err := m.client.ModifyVpcAttribute(ctx, attr); err != nil {
			return "", awserrors.Classify(ctx, err, domain.KindVPC.String(), name)
		}
	}

	m.logger.Infof(ctx, "Created VPC %s (%s)", vpcID, cidr)
	return vpcID, nil
}

// EnsureInternetGateway reuses whichever gateway the provider reports as
// attached to the VPC; the provider enforces the at-most-one constraint.
func (m *Manager) EnsureInternetGateway(ctx context.Context, vpcID, name string, tags domain.TagSet) (string, error) {
	out, err := m.client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("attachment.vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindInternetGateway.String(), name)
	}
	if len(out.InternetGateways) > 0 {
		igwID := aws.ToString(out.InternetGateways[0].InternetGatewayId)
		m.logger.Infof(ctx, "Reusing internet gateway %s on %s", igwID, vpcID)
		return igwID, nil
	}

	created, err := m.client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: tagspec.For(ec2types.ResourceTypeInternetGateway, tags.WithName(name)),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindInternetGateway.String(), name)
	}
	igwID := aws.ToString(created.InternetGateway.InternetGatewayId)

	if _, err := m.client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	}); err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindInternetGateway.String(), name)
	}

	m.logger.Infof(ctx, "Created internet gateway %s on %s", igwID, vpcID)
	return igwID, nil
}

// EnsureSubnet keys on (vpc, cidr). Public subnets get map-public-ip
// enabled on every call, reused or created; the attribute write is an
// idempotent provider upsert.
func (m *Manager) EnsureSubnet(ctx context.Context, name, vpcID, cidr, az string, public bool, tags domain.TagSet) (string, error) {
	out, err := m.client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("cidr-block"), Values: []string{cidr}},
		},
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindSubnet.String(), name)
	}

	var subnetID string
	if len(out.Subnets) > 0 {
		subnetID = aws.ToString(out.Subnets[0].SubnetId)
		m.logger.Infof(ctx, "Reusing subnet %s (%s)", subnetID, cidr)
	} else {
		created, err := m.client.CreateSubnet(ctx, &ec2.CreateSubnetInput{
			VpcId:             aws.String(vpcID),
			CidrBlock:         aws.String(cidr),
			AvailabilityZone:  aws.String(az),
			TagSpecifications: tagspec.For(ec2types.ResourceTypeSubnet, tags.WithName(name)),
		})
		if err != nil {
			return "", awserrors.Classify(ctx, err, domain.KindSubnet.String(), name)
		}
		subnetID = aws.ToString(created.Subnet.SubnetId)
		m.logger.Infof(ctx, "Created subnet %s (%s in %s)", subnetID, cidr, az)
	}

	if public {
		if _, err := m.client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(subnetID),
			MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		}); err != nil {
			return "", awserrors.Classify(ctx, err, domain.KindSubnet.String(), name)
		}
	}

	return subnetID, nil
}

// AvailabilityZones lists zone names for the region, in provider order.
// The driver zips them against configured subnet CIDR blocks.
func (m *Manager) AvailabilityZones(ctx context.Context, region string, count int) ([]string, error) {
	out, err := m.client.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("region-name"), Values: []string{region}},
		},
	})
	if err != nil {
		return nil, awserrors.Classify(ctx, err, "AvailabilityZone", region)
	}

	names := make([]string, 0, len(out.AvailabilityZones))
	for _, az := range out.AvailabilityZones {
		names = append(names, aws.ToString(az.ZoneName))
	}
	if count > 0 && count < len(names) {
		names = names[:count]
	}
	return names, nil
}
