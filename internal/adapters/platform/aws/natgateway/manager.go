// Package natgateway allocates egress for private subnets. Unlike every
// other manager this one has no pre-existence lookup: each call allocates
// a fresh elastic IP and gateway, so the driver must invoke it at most
// once per subnet per run or orphaned addresses leak. The unconditional
// create is deliberate and load-bearing; do not add a tag lookup here
// without auditing every caller.
package natgateway

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/awserrors"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/tagspec"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
)

const defaultWaitTimeout = 10 * time.Minute

type EC2API interface {
	AllocateAddress(ctx context.Context, params *ec2.AllocateAddressInput, optFns ...func(*ec2.Options)) (*ec2.AllocateAddressOutput, error)
	CreateNatGateway(ctx context.Context, params *ec2.CreateNatGatewayInput, optFns ...func(*ec2.Options)) (*ec2.CreateNatGatewayOutput, error)
}

// AvailableWaiter blocks until the gateway reaches the available state.
// Satisfied by *ec2.NatGatewayAvailableWaiter.
type AvailableWaiter interface {
	Wait(ctx context.Context, params *ec2.DescribeNatGatewaysInput, maxWaitDur time.Duration, optFns ...func(*ec2.NatGatewayAvailableWaiterOptions)) error
}

type Manager struct {
	client      EC2API
	waiter      AvailableWaiter
	logger      ports.Logger
	waitTimeout time.Duration
}

func NewManager(client EC2API, waiter AvailableWaiter, logger ports.Logger) *Manager {
	return &Manager{client: client, waiter: waiter, logger: logger, waitTimeout: defaultWaitTimeout}
}

func (m *Manager) WithWaitTimeout(d time.Duration) *Manager {
	m.waitTimeout = d
	return m
}

// EnsureNATGateway allocates an address and gateway, then blocks until
// the gateway is available. This is the only synchronous wait in the
// provisioning sequence.
func (m *Manager) EnsureNATGateway(ctx context.Context, subnetID, name string, tags domain.TagSet) (string, error) {
	eip, err := m.client.AllocateAddress(ctx, &ec2.AllocateAddressInput{
		Domain:            ec2types.DomainTypeVpc,
		TagSpecifications: tagspec.For(ec2types.ResourceTypeElasticIp, tags.WithName(name)),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindNATGateway.String(), name)
	}

	nat, err := m.client.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:          aws.String(subnetID),
		AllocationId:      eip.AllocationId,
		TagSpecifications: tagspec.For(ec2types.ResourceTypeNatgateway, tags.WithName(name)),
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindNATGateway.String(), name)
	}
	natID := aws.ToString(nat.NatGateway.NatGatewayId)

	m.logger.Infof(ctx, "Waiting for NAT gateway %s to become available", natID)
	if err := m.waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{
		NatGatewayIds: []string{natID},
	}, m.waitTimeout); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTimeout, "NAT gateway "+natID+" did not become available")
	}

	m.logger.Infof(ctx, "NAT gateway %s available on subnet %s", natID, subnetID)
	return natID, nil
}
