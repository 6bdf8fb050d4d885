package ir

// Plan is an ordered collection of resource declarations. The slice order is
// the authoring order; it never changes after load and it is the tie-breaker
// everywhere execution order would otherwise be ambiguous.
type Plan struct {
	Resources []*Resource `yaml:"resources" validate:"required,dive,required"`
}

// Resource returns the declaration with the given logical name, or nil.
func (p *Plan) Resource(name string) *Resource {
	for _, r := range p.Resources {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Index returns the authoring position of name, or -1 when absent.
func (p *Plan) Index(name string) int {
	for i, r := range p.Resources {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the logical names in authoring order.
func (p *Plan) Names() []string {
	names := make([]string, 0, len(p.Resources))
	for _, r := range p.Resources {
		names = append(names, r.Name)
	}
	return names
}
