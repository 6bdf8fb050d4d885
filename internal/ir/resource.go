package ir

// Kind identifies the class of infrastructure a resource declares.
type Kind string

const (
	KindNetwork             Kind = "Network"
	KindSubnet              Kind = "Subnet"
	KindGateway             Kind = "Gateway"
	KindRouteTable          Kind = "RouteTable"
	KindSecurityGroup       Kind = "SecurityGroup"
	KindTargetGroup         Kind = "TargetGroup"
	KindLoadBalancer        Kind = "LoadBalancer"
	KindListener            Kind = "Listener"
	KindLaunchTemplate      Kind = "LaunchTemplate"
	KindScalingGroup        Kind = "ScalingGroup"
	KindScalingPolicy       Kind = "ScalingPolicy"
	KindDatabaseSubnetGroup Kind = "DatabaseSubnetGroup"
	KindDatabaseInstance    Kind = "DatabaseInstance"
)

// Kinds lists every supported kind in dependency-natural order.
func Kinds() []Kind {
	return []Kind{
		KindNetwork,
		KindSubnet,
		KindGateway,
		KindRouteTable,
		KindSecurityGroup,
		KindTargetGroup,
		KindLoadBalancer,
		KindListener,
		KindLaunchTemplate,
		KindScalingGroup,
		KindScalingPolicy,
		KindDatabaseSubnetGroup,
		KindDatabaseInstance,
	}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Resource declares a single desired resource.
type Resource struct {
	Name      string         `yaml:"name" validate:"required"`
	Kind      Kind           `yaml:"kind" validate:"required"`
	Params    map[string]any `yaml:"params"`
	DependsOn []string       `yaml:"depends_on"`
}
