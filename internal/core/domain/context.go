package domain

// DependencyContext accumulates the identifiers produced during one
// reconciliation run. Each field is written exactly once by the manager
// that owns the resource and read by everything downstream. It lives for
// a single run, is never accessed concurrently and is not persisted.
type DependencyContext struct {
	VPCID             string
	InternetGatewayID string
	PublicSubnetIDs   []string
	PrivateSubnetIDs  []string
	PublicRouteTable  string
	PrivateRouteTable string
	NATGatewayID      string
	SecurityGroupID   string
	InstanceProfile   string
	LaunchTemplateID  string
	AutoScalingGroup  string
	DBSubnetGroup     string
	DBInstanceID      string
	Buckets           []string

	descriptors []ResourceDescriptor
}

// Record appends a descriptor to the run summary. Append-only; the
// reporter reads the slice once at process exit.
func (d *DependencyContext) Record(logical string, kind ResourceKind, identifying, providerID string) {
	d.descriptors = append(d.descriptors, ResourceDescriptor{
		LogicalName:     logical,
		Kind:            kind,
		IdentifyingName: identifying,
		ProviderID:      providerID,
	})
}

func (d *DependencyContext) Descriptors() []ResourceDescriptor {
	return d.descriptors
}
