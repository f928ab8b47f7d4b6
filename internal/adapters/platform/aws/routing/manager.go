// Package routing owns route tables, routes and subnet associations.
// Route tables are keyed by (vpc, Name tag). A "route already exists"
// fault for the same destination is an idempotence conflict and counts
// as success.
package routing

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

func (m *Manager) EnsureRouteTable(ctx context.Context, vpcID, name string, tags domain.TagSet) (string, error) {
	out, err := m.client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("tag:" + domain.TagKeyName), Values: []string{name}},
		},
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindRouteTable.String(), name)
	}
	if len(out.RouteTables) > 0 {
		rtID := aws.ToString(out.RouteTables[0].RouteTableId)
		m.logger.Infof(ctx, "Reusing route table %s for %q", rtID, name)
		return rtID, nil
	}

	created, err := m.client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             aws.String(vpcID),
		TagSpecifications: tagspec.For(ec2types.ResourceTypeRouteTable, tags.WithName(name)),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindRouteTable.String(), name)
	}
	rtID := aws.ToString(created.RouteTable.RouteTableId)
	m.logger.Infof(ctx, "Created route table %s for %q", rtID, name)
	return rtID, nil
}

// EnsureRoute creates a route toward exactly one of gatewayID or
// natGatewayID; the caller picks which, mutual exclusivity is not
// validated here. A duplicate-destination fault is swallowed.
func (m *Manager) EnsureRoute(ctx context.Context, routeTableID, destinationCIDR, gatewayID, natGatewayID string) error {
	input := &ec2.CreateRouteInput{
		RouteTableId:         aws.String(routeTableID),
		DestinationCidrBlock: aws.String(destinationCIDR),
	}
	if gatewayID != "" {
		input.GatewayId = aws.String(gatewayID)
	}
	if natGatewayID != "" {
		input.NatGatewayId = aws.String(natGatewayID)
	}

	if _, err := m.client.CreateRoute(ctx, input); err != nil {
		if awserrors.IsAlreadyExists(err) {
			m.logger.Debugf(ctx, "Route %s already present on %s", destinationCIDR, routeTableID)
			return nil
		}
		return awserrors.Classify(ctx, err, "Route", destinationCIDR)
	}
	return nil
}

// Associate links a subnet to a route table. No pre-check: the provider
// rejects duplicate associations per subnet, so repeats are safe.
func (m *Manager) Associate(ctx context.Context, routeTableID, subnetID string) error {
	if _, err := m.client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(routeTableID),
		SubnetId:     aws.String(subnetID),
	}); err != nil {
		if awserrors.IsAlreadyExists(err) {
			return nil
		}
		return awserrors.Classify(ctx, err, "RouteTableAssociation", subnetID)
	}
	return nil
}
