package plan

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/stratus-io/stratus/internal/engine"
	"github.com/stratus-io/stratus/internal/ir"
)

var validate = validator.New()

// requiredParams lists the parameters each kind must declare.
var requiredParams = map[ir.Kind][]string{
	ir.KindNetwork:             {"cidr_block"},
	ir.KindSubnet:              {"vpc", "cidr_block"},
	ir.KindGateway:             {"type"},
	ir.KindRouteTable:          {"vpc"},
	ir.KindSecurityGroup:       {"vpc"},
	ir.KindTargetGroup:         {"vpc", "port", "protocol"},
	ir.KindLoadBalancer:        {"subnets"},
	ir.KindListener:            {"load_balancer", "port", "protocol", "target_group"},
	ir.KindLaunchTemplate:      {"image_id", "instance_type"},
	ir.KindScalingGroup:        {"launch_template", "subnets", "min_size", "max_size"},
	ir.KindScalingPolicy:       {"scaling_group", "target_value"},
	ir.KindDatabaseSubnetGroup: {"subnets"},
	ir.KindDatabaseInstance:    {"subnet_group", "engine", "instance_class"},
}

// requiredDepKinds lists the kinds each kind must have among its
// dependencies (explicit depends_on plus ref(...) parameters). A Gateway's
// requirement depends on its type parameter and is handled separately.
var requiredDepKinds = map[ir.Kind][]ir.Kind{
	ir.KindSubnet:              {ir.KindNetwork},
	ir.KindRouteTable:          {ir.KindNetwork},
	ir.KindSecurityGroup:       {ir.KindNetwork},
	ir.KindTargetGroup:         {ir.KindNetwork},
	ir.KindLoadBalancer:        {ir.KindSubnet},
	ir.KindListener:            {ir.KindLoadBalancer, ir.KindTargetGroup},
	ir.KindScalingGroup:        {ir.KindLaunchTemplate, ir.KindSubnet},
	ir.KindScalingPolicy:       {ir.KindScalingGroup},
	ir.KindDatabaseSubnetGroup: {ir.KindSubnet},
	ir.KindDatabaseInstance:    {ir.KindDatabaseSubnetGroup},
}

// Validate checks a whole plan and aggregates every violation into a single
// *engine.InvalidPlanError. Nothing is ever validated lazily during a run:
// a plan that starts executing has passed all of this.
func Validate(p *ir.Plan) error {
	var violations []engine.Violation

	add := func(name, format string, args ...any) {
		violations = append(violations, engine.Violation{Name: name, Msg: fmt.Sprintf(format, args...)})
	}

	if len(p.Resources) == 0 {
		add("", "plan declares no resources")
	}

	seen := make(map[string]bool, len(p.Resources))
	for _, res := range p.Resources {
		if res == nil {
			add("", "plan contains a null resource entry")
			continue
		}
		if err := validate.Struct(res); err != nil {
			if fieldErrs, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range fieldErrs {
					add(res.Name, "field %s failed %q validation", fe.Field(), fe.Tag())
				}
			} else {
				add(res.Name, "invalid resource: %v", err)
			}
		}
		if res.Name != "" {
			if seen[res.Name] {
				add(res.Name, "duplicate logical name")
			}
			seen[res.Name] = true
		}
		if res.Kind != "" && !res.Kind.Valid() {
			add(res.Name, "unknown kind %q", res.Kind)
		}
	}

	depsOK := true
	for _, res := range p.Resources {
		if res == nil || res.Name == "" {
			continue
		}
		for _, dep := range res.DependsOn {
			if dep == res.Name {
				add(res.Name, "depends on itself")
			} else if !seen[dep] {
				add(res.Name, "depends on unknown resource %q", dep)
				depsOK = false
			}
		}
		for _, ref := range engine.ExtractRefs(res.Params) {
			if ref == res.Name {
				add(res.Name, "references itself")
			} else if !seen[ref] {
				add(res.Name, "references unknown resource %q", ref)
				depsOK = false
			}
		}
	}

	for _, res := range p.Resources {
		if res == nil || res.Name == "" || !res.Kind.Valid() {
			continue
		}
		validateParams(res, add)
		validateDepKinds(p, res, add)
	}

	// Cycle detection needs every edge endpoint present in the plan.
	if depsOK {
		if _, err := engine.BuildGraph(p); err != nil {
			if cycle, ok := err.(*engine.CycleError); ok {
				add("", cycle.Error())
			} else {
				add("", "graph construction failed: %v", err)
			}
		}
	}

	if len(violations) > 0 {
		return &engine.InvalidPlanError{Violations: violations}
	}
	return nil
}

func validateParams(res *ir.Resource, add func(name, format string, args ...any)) {
	for _, key := range requiredParams[res.Kind] {
		if _, ok := res.Params[key]; !ok {
			add(res.Name, "missing required parameter %q", key)
		}
	}

	if res.Kind == ir.KindGateway {
		switch gatewayType(res) {
		case "internet":
			if _, ok := res.Params["vpc"]; !ok {
				add(res.Name, "internet gateway requires parameter %q", "vpc")
			}
		case "nat":
			if _, ok := res.Params["subnet"]; !ok {
				add(res.Name, "nat gateway requires parameter %q", "subnet")
			}
		case "":
			// missing type already reported via requiredParams
		default:
			add(res.Name, "gateway type must be %q or %q", "internet", "nat")
		}
	}
}

func validateDepKinds(p *ir.Plan, res *ir.Resource, add func(name, format string, args ...any)) {
	depKinds := make(map[ir.Kind]bool)
	collect := func(name string) {
		if dep := p.Resource(name); dep != nil {
			depKinds[dep.Kind] = true
		}
	}
	for _, dep := range res.DependsOn {
		collect(dep)
	}
	for _, ref := range engine.ExtractRefs(res.Params) {
		collect(ref)
	}

	required := requiredDepKinds[res.Kind]
	if res.Kind == ir.KindGateway {
		switch gatewayType(res) {
		case "internet":
			required = []ir.Kind{ir.KindNetwork}
		case "nat":
			required = []ir.Kind{ir.KindSubnet}
		}
	}
	for _, kind := range required {
		if !depKinds[kind] {
			add(res.Name, "must depend on a %s resource", kind)
		}
	}

	// Routes that point at a gateway must point at a Gateway plan member,
	// which also puts the gateway upstream of the route table.
	if res.Kind == ir.KindRouteTable {
		routes, _ := res.Params["routes"].([]any)
		for i, raw := range routes {
			route, ok := raw.(map[string]any)
			if !ok {
				add(res.Name, "route %d is not a mapping", i)
				continue
			}
			if _, ok := route["destination"].(string); !ok {
				add(res.Name, "route %d missing destination", i)
			}
			gw, ok := route["gateway"].(string)
			if !ok {
				add(res.Name, "route %d missing gateway", i)
				continue
			}
			target, isRef := engine.RefTarget(gw)
			if !isRef {
				add(res.Name, "route %d gateway must be a ref(...) to a Gateway resource", i)
				continue
			}
			if dep := p.Resource(target); dep != nil && dep.Kind != ir.KindGateway {
				add(res.Name, "route %d gateway references %q which is a %s, not a Gateway", i, target, dep.Kind)
			}
		}
	}
}

func gatewayType(res *ir.Resource) string {
	t, _ := res.Params["type"].(string)
	return t
}
