// Package service drives one reconciliation run. The order below is
// fixed: every resource is ensured after everything it depends on and
// before anything that depends on it. A failure terminates the run at
// that point; nothing already converged is rolled back, and the next run
// re-converges from the top.
package service

import (
	"context"
	"fmt"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/launchtemplate"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/rds"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/scaling"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/securitygroup"
	"github.com/olusolaa/infra-deployer/internal/config"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
	"github.com/olusolaa/infra-deployer/internal/retry"
)

const internetCIDR = "0.0.0.0/0"

type NetworkManager interface {
	EnsureVPC(ctx context.Context, name, cidr string, tags domain.TagSet) (string, error)
	EnsureInternetGateway(ctx context.Context, vpcID, name string, tags domain.TagSet) (string, error)
	EnsureSubnet(ctx context.Context, name, vpcID, cidr, az string, public bool, tags domain.TagSet) (string, error)
	AvailabilityZones(ctx context.Context, region string, count int) ([]string, error)
}

type RoutingManager interface {
	EnsureRouteTable(ctx context.Context, vpcID, name string, tags domain.TagSet) (string, error)
	EnsureRoute(ctx context.Context, routeTableID, destinationCIDR, gatewayID, natGatewayID string) error
	Associate(ctx context.Context, routeTableID, subnetID string) error
}

type NATManager interface {
	EnsureNATGateway(ctx context.Context, subnetID, name string, tags domain.TagSet) (string, error)
}

type SecurityGroupManager interface {
	EnsureSecurityGroup(ctx context.Context, vpcID, name, description string, tags domain.TagSet) (string, error)
	ConfigureRules(ctx context.Context, groupID string, ingress, egress []securitygroup.Rule) error
}

type ProfileManager interface {
	EnsureInstanceProfile(ctx context.Context, name, roleName string) (string, error)
}

type TemplateManager interface {
	EnsureLaunchTemplate(ctx context.Context, spec launchtemplate.Spec, tags domain.TagSet) (string, error)
}

type ScalingManager interface {
	EnsureAutoScalingGroup(ctx context.Context, spec scaling.GroupSpec, tags domain.TagSet) error
	EnsureTargetTrackingPolicy(ctx context.Context, name, asgName string, targetCPUPercent float64) error
}

type SecretsReader interface {
	FetchCredentials(ctx context.Context, secretName, usernameKey, passwordKey string) (domain.Credentials, error)
}

type DatabaseManager interface {
	EnsureDBSubnetGroup(ctx context.Context, name string, subnetIDs []string, tags domain.TagSet) (string, error)
	EnsurePostgres(ctx context.Context, spec rds.InstanceSpec, subnetGroup, securityGroupID string, creds domain.Credentials, tags domain.TagSet) (string, error)
}

type BucketManager interface {
	EnsureBucket(ctx context.Context, name, region string) error
	EnableVersioning(ctx context.Context, name string) error
	ApplyEncryption(ctx context.Context, name string, enc s3.Encryption) error
}

// Managers bundles the per-resource dependencies the driver needs.
type Managers struct {
	Network       NetworkManager
	Routing       RoutingManager
	NAT           NATManager
	SecurityGroup SecurityGroupManager
	Profile       ProfileManager
	Template      TemplateManager
	Scaling       ScalingManager
	Secrets       SecretsReader
	Database      DatabaseManager
	Buckets       BucketManager
}

type Provisioner struct {
	cfg      *config.Config
	managers Managers
	gate     retry.Gate
	logger   ports.Logger
}

func NewProvisioner(cfg *config.Config, managers Managers, gate retry.Gate, logger ports.Logger) *Provisioner {
	return &Provisioner{cfg: cfg, managers: managers, gate: gate, logger: logger}
}

func ensure[T any](ctx context.Context, p *Provisioner, pol retry.Policy, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, p.logger, pol, name, fn, retry.WithGate(p.gate))
}

func ensureAction(ctx context.Context, p *Provisioner, pol retry.Policy, name string, fn func(ctx context.Context) error) error {
	_, err := ensure(ctx, p, pol, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Run converges the whole stack and returns the populated dependency
// context for reporting. On error the context still carries everything
// converged before the failure.
func (p *Provisioner) Run(ctx context.Context) (*domain.DependencyContext, error) {
	depCtx := &domain.DependencyContext{}
	tags := domain.BaseTags(p.cfg.Project.Name, p.cfg.Project.Environment)

	steps := []struct {
		name string
		fn   func(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet) error
	}{
		{"network foundation", p.runNetwork},
		{"routing", p.runRouting},
		{"nat gateway", p.runNATGateway},
		{"security group", p.runSecurityGroup},
		{"compute", p.runCompute},
		{"database", p.runDatabase},
		{"storage", p.runStorage},
	}
	for _, step := range steps {
		p.logger.Infof(ctx, "Reconciling %s", step.name)
		if err := step.fn(ctx, depCtx, tags); err != nil {
			p.logger.Errorf(ctx, err, "Reconciliation halted during %s", step.name)
			return depCtx, err
		}
	}

	p.logger.Infof(ctx, "Reconciliation complete: %d resources converged", len(depCtx.Descriptors()))
	return depCtx, nil
}

func (p *Provisioner) runNetwork(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet) error {
	pol := p.cfg.Retry.Default
	vpcName := p.cfg.ResourceName("vpc")

	vpcID, err := ensure(ctx, p, pol, "vpc", func(ctx context.Context) (string, error) {
		return p.managers.Network.EnsureVPC(ctx, vpcName, p.cfg.Network.VPC.CIDR, tags)
	})
	if err != nil {
		return err
	}
	depCtx.VPCID = vpcID
	depCtx.Record("vpc", domain.KindVPC, vpcName, vpcID)

	igwName := p.cfg.ResourceName("igw")
	igwID, err := ensure(ctx, p, pol, "internet gateway", func(ctx context.Context) (string, error) {
		return p.managers.Network.EnsureInternetGateway(ctx, vpcID, igwName, tags)
	})
	if err != nil {
		return err
	}
	depCtx.InternetGatewayID = igwID
	depCtx.Record("internet-gateway", domain.KindInternetGateway, igwName, igwID)

	zones, err := ensure(ctx, p, pol, "availability zones", func(ctx context.Context) ([]string, error) {
		return p.managers.Network.AvailabilityZones(ctx, p.cfg.Project.Region, p.cfg.Network.VPC.AZCount)
	})
	if err != nil {
		return err
	}

	publicIDs, err := p.ensureSubnetTier(ctx, depCtx, tags, zones, p.cfg.Network.Subnets.Public.CIDRBlocks, true)
	if err != nil {
		return err
	}
	depCtx.PublicSubnetIDs = publicIDs

	privateIDs, err := p.ensureSubnetTier(ctx, depCtx, tags, zones, p.cfg.Network.Subnets.Private.CIDRBlocks, false)
	if err != nil {
		return err
	}
	depCtx.PrivateSubnetIDs = privateIDs
	return nil
}

// ensureSubnetTier zips the configured CIDR blocks with the discovered
// zones, wrapping past the end when more blocks than zones are given.
func (p *Provisioner) ensureSubnetTier(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet, zones, cidrs []string, public bool) ([]string, error) {
	tier := "private"
	if public {
		tier = "public"
	}
	tierTags := tags.With(domain.TagKeyTier, tier)

	ids := make([]string, 0, len(cidrs))
	for i, cidr := range cidrs {
		az := zones[i%len(zones)]
		name := p.cfg.ResourceName(fmt.Sprintf("%s-%d", tier, i+1))
		id, err := ensure(ctx, p, p.cfg.Retry.Default, tier+" subnet", func(ctx context.Context) (string, error) {
			return p.managers.Network.EnsureSubnet(ctx, name, depCtx.VPCID, cidr, az, public, tierTags)
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		depCtx.Record(fmt.Sprintf("subnet-%s-%d", tier, i+1), domain.KindSubnet, name, id)
	}
	return ids, nil
}

func (p *Provisioner) runRouting(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet) error {
	pol := p.cfg.Retry.Default

	publicName := p.cfg.ResourceName("rt-public")
	publicRT, err := ensure(ctx, p, pol, "public route table", func(ctx context.Context) (string, error) {
		return p.managers.Routing.EnsureRouteTable(ctx, depCtx.VPCID, publicName, tags)
	})
	if err != nil {
		return err
	}
	depCtx.PublicRouteTable = publicRT
	depCtx.Record("route-table-public", domain.KindRouteTable, publicName, publicRT)

	if err := ensureAction(ctx, p, pol, "public default route", func(ctx context.Context) error {
		return p.managers.Routing.EnsureRoute(ctx, publicRT, internetCIDR, depCtx.InternetGatewayID, "")
	}); err != nil {
		return err
	}
	for _, subnetID := range depCtx.PublicSubnetIDs {
		if err := ensureAction(ctx, p, pol, "public route association", func(ctx context.Context) error {
			return p.managers.Routing.Associate(ctx, publicRT, subnetID)
		}); err != nil {
			return err
		}
	}

	privateName := p.cfg.ResourceName("rt-private")
	privateRT, err := ensure(ctx, p, pol, "private route table", func(ctx context.Context) (string, error) {
		return p.managers.Routing.EnsureRouteTable(ctx, depCtx.VPCID, privateName, tags)
	})
	if err != nil {
		return err
	}
	depCtx.PrivateRouteTable = privateRT
	depCtx.Record("route-table-private", domain.KindRouteTable, privateName, privateRT)

	for _, subnetID := range depCtx.PrivateSubnetIDs {
		if err := ensureAction(ctx, p, pol, "private route association", func(ctx context.Context) error {
			return p.managers.Routing.Associate(ctx, privateRT, subnetID)
		}); err != nil {
			return err
		}
	}
	return nil
}

// runNATGateway creates the gateway in the first public subnet and only
// then points the private route table's default route at it, so private
// egress never routes into a gateway that is not yet available.
func (p *Provisioner) runNATGateway(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet) error {
	natName := p.cfg.ResourceName("nat")
	natID, err := ensure(ctx, p, p.cfg.Retry.Slow, "nat gateway", func(ctx context.Context) (string, error) {
		return p.managers.NAT.EnsureNATGateway(ctx, depCtx.PublicSubnetIDs[0], natName, tags)
	})
	if err != nil {
		return err
	}
	depCtx.NATGatewayID = natID
	depCtx.Record("nat-gateway", domain.KindNATGateway, natName, natID)

	return ensureAction(ctx, p, p.cfg.Retry.Default, "private default route", func(ctx context.Context) error {
		return p.managers.Routing.EnsureRoute(ctx, depCtx.PrivateRouteTable, internetCIDR, "", natID)
	})
}

func (p *Provisioner) runSecurityGroup(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet) error {
	pol := p.cfg.Retry.Default
	name := p.cfg.ResourceName(p.cfg.SecurityGroup.NameSuffix)

	groupID, err := ensure(ctx, p, pol, "security group", func(ctx context.Context) (string, error) {
		return p.managers.SecurityGroup.EnsureSecurityGroup(ctx, depCtx.VPCID, name, p.cfg.SecurityGroup.Description, tags)
	})
	if err != nil {
		return err
	}
	depCtx.SecurityGroupID = groupID
	depCtx.Record("security-group", domain.KindSecurityGroup, name, groupID)

	return ensureAction(ctx, p, pol, "security group rules", func(ctx context.Context) error {
		return p.managers.SecurityGroup.ConfigureRules(ctx, groupID, p.cfg.SecurityGroup.Ingress, p.cfg.SecurityGroup.Egress)
	})
}

func (p *Provisioner) runCompute(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet) error {
	pol := p.cfg.Retry.Default

	profileName := p.cfg.Compute.IAM.InstanceProfile
	profile, err := ensure(ctx, p, pol, "instance profile", func(ctx context.Context) (string, error) {
		return p.managers.Profile.EnsureInstanceProfile(ctx, profileName, p.cfg.Compute.IAM.RoleName)
	})
	if err != nil {
		return err
	}
	depCtx.InstanceProfile = profile
	depCtx.Record("instance-profile", domain.KindInstanceProfile, profileName, profile)

	templateName := p.cfg.ResourceName(p.cfg.Compute.LaunchTemplate.NameSuffix)
	templateID, err := ensure(ctx, p, pol, "launch template", func(ctx context.Context) (string, error) {
		return p.managers.Template.EnsureLaunchTemplate(ctx, launchtemplate.Spec{
			Name:             templateName,
			ImageID:          p.cfg.Compute.LaunchTemplate.ImageID,
			InstanceType:     p.cfg.Compute.LaunchTemplate.InstanceType,
			InstanceProfile:  profile,
			SecurityGroupIDs: []string{depCtx.SecurityGroupID},
			UserData:         p.cfg.Compute.LaunchTemplate.UserData,
		}, tags)
	})
	if err != nil {
		return err
	}
	depCtx.LaunchTemplateID = templateID
	depCtx.Record("launch-template", domain.KindLaunchTemplate, templateName, templateID)

	asgName := p.cfg.ResourceName(p.cfg.Compute.AutoScaling.NameSuffix)
	if err := ensureAction(ctx, p, pol, "auto scaling group", func(ctx context.Context) error {
		return p.managers.Scaling.EnsureAutoScalingGroup(ctx, scaling.GroupSpec{
			Name:             asgName,
			LaunchTemplateID: templateID,
			SubnetIDs:        depCtx.PrivateSubnetIDs,
			Desired:          p.cfg.Compute.AutoScaling.Desired,
			Min:              p.cfg.Compute.AutoScaling.Min,
			Max:              p.cfg.Compute.AutoScaling.Max,
		}, tags)
	}); err != nil {
		return err
	}
	depCtx.AutoScalingGroup = asgName
	depCtx.Record("auto-scaling-group", domain.KindAutoScalingGroup, asgName, asgName)

	return ensureAction(ctx, p, pol, "scaling policy", func(ctx context.Context) error {
		return p.managers.Scaling.EnsureTargetTrackingPolicy(ctx, asgName+"-cpu", asgName, p.cfg.Compute.AutoScaling.TargetCPUPercent)
	})
}

// runDatabase fetches master credentials immediately before the instance
// call that consumes them; they live only on this frame and are never
// recorded or logged.
func (p *Provisioner) runDatabase(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet) error {
	pol := p.cfg.Retry.Default
	db := p.cfg.Database

	groupName := p.cfg.ResourceName(db.SubnetGroup)
	group, err := ensure(ctx, p, pol, "db subnet group", func(ctx context.Context) (string, error) {
		return p.managers.Database.EnsureDBSubnetGroup(ctx, groupName, depCtx.PrivateSubnetIDs, tags)
	})
	if err != nil {
		return err
	}
	depCtx.DBSubnetGroup = group
	depCtx.Record("db-subnet-group", domain.KindDBSubnetGroup, groupName, group)

	creds, err := ensure(ctx, p, pol, "database credentials", func(ctx context.Context) (domain.Credentials, error) {
		return p.managers.Secrets.FetchCredentials(ctx, db.SecretName, db.UsernameKey, db.PasswordKey)
	})
	if err != nil {
		return err
	}

	instanceID, err := ensure(ctx, p, p.cfg.Retry.Slow, "rds instance", func(ctx context.Context) (string, error) {
		return p.managers.Database.EnsurePostgres(ctx, db.InstanceSpec, group, depCtx.SecurityGroupID, creds, tags)
	})
	if err != nil {
		return err
	}
	depCtx.DBInstanceID = instanceID
	depCtx.Record("database", domain.KindDBInstance, db.Identifier, instanceID)
	return nil
}

func (p *Provisioner) runStorage(ctx context.Context, depCtx *domain.DependencyContext, tags domain.TagSet) error {
	pol := p.cfg.Retry.Default

	for _, bucket := range []string{p.cfg.Storage.RawBucket, p.cfg.Storage.CuratedBucket} {
		if err := ensureAction(ctx, p, pol, "bucket "+bucket, func(ctx context.Context) error {
			return p.managers.Buckets.EnsureBucket(ctx, bucket, p.cfg.Project.Region)
		}); err != nil {
			return err
		}
		if err := ensureAction(ctx, p, pol, "bucket versioning "+bucket, func(ctx context.Context) error {
			return p.managers.Buckets.EnableVersioning(ctx, bucket)
		}); err != nil {
			return err
		}
		if err := ensureAction(ctx, p, pol, "bucket encryption "+bucket, func(ctx context.Context) error {
			return p.managers.Buckets.ApplyEncryption(ctx, bucket, p.cfg.Storage.Encryption)
		}); err != nil {
			return err
		}
		depCtx.Buckets = append(depCtx.Buckets, bucket)
		depCtx.Record("bucket-"+bucket, domain.KindStorageBucket, bucket, bucket)
	}
	return nil
}
