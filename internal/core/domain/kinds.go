package domain

type ResourceKind string

const (
	KindVPC              ResourceKind = "VPC"
	KindInternetGateway  ResourceKind = "InternetGateway"
	KindSubnet           ResourceKind = "Subnet"
	KindRouteTable       ResourceKind = "RouteTable"
	KindNATGateway       ResourceKind = "NATGateway"
	KindSecurityGroup    ResourceKind = "SecurityGroup"
	KindInstanceProfile  ResourceKind = "InstanceProfile"
	KindLaunchTemplate   ResourceKind = "LaunchTemplate"
	KindAutoScalingGroup ResourceKind = "AutoScalingGroup"
	KindDBSubnetGroup    ResourceKind = "DBSubnetGroup"
	KindDBInstance       ResourceKind = "DBInstance"
	KindStorageBucket    ResourceKind = "StorageBucket"
)

func (rk ResourceKind) String() string {
	return string(rk)
}
