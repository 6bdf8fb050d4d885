package ir

// Status tracks a resource through the lifecycle of a run.
type Status string

const (
	StatusPending     Status = "pending"
	StatusCreating    Status = "creating"
	StatusCreated     Status = "created"
	StatusFailed      Status = "failed"
	StatusRollingBack Status = "rolling_back"
	StatusRolledBack  Status = "rolled_back"
)

// RunStatus is the terminal status of a whole run.
type RunStatus string

const (
	// RunCompleted means every resource in the plan is Created.
	RunCompleted RunStatus = "completed"
	// RunAborted means the run failed and rollback removed everything
	// this run had created.
	RunAborted RunStatus = "aborted"
	// RunAbortedIncomplete means the run failed and rollback could not
	// remove some of the resources this run had created.
	RunAbortedIncomplete RunStatus = "aborted_incomplete"
)

// ResourceState is the tracked state for one declared resource.
type ResourceState struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`

	// ID is the provider identifier. Empty until the resource has been
	// found or created.
	ID string `yaml:"id,omitempty"`

	Status Status `yaml:"status"`

	// Adopted is true when the resource already existed and was matched by
	// natural key rather than created by this run.
	Adopted bool `yaml:"adopted,omitempty"`

	// Params are the inputs after reference substitution.
	Params map[string]any `yaml:"params,omitempty"`

	// Attrs carries provider-returned attributes beyond the identifier,
	// for example a load balancer DNS name or a NAT gateway's allocation ID.
	Attrs map[string]string `yaml:"attrs,omitempty"`

	Dependencies []string `yaml:"dependencies,omitempty"`
	LastError    string   `yaml:"last_error,omitempty"`
}

// Clone returns a deep copy. Store reads hand out clones so callers can
// never mutate tracked state behind the store's back.
func (rs *ResourceState) Clone() *ResourceState {
	if rs == nil {
		return nil
	}
	out := *rs
	if rs.Params != nil {
		out.Params = make(map[string]any, len(rs.Params))
		for k, v := range rs.Params {
			out.Params[k] = v
		}
	}
	if rs.Attrs != nil {
		out.Attrs = make(map[string]string, len(rs.Attrs))
		for k, v := range rs.Attrs {
			out.Attrs[k] = v
		}
	}
	out.Dependencies = append([]string(nil), rs.Dependencies...)
	return &out
}

// Snapshot is the persisted form of a run: resource states in plan order
// plus the execution record that produced them.
type Snapshot struct {
	Version   int              `yaml:"version"`
	Serial    int              `yaml:"serial"`
	Lineage   string           `yaml:"lineage"`
	Status    RunStatus        `yaml:"status,omitempty"`
	Resources []*ResourceState `yaml:"resources"`
	Record    []RecordEntry    `yaml:"record,omitempty"`
}

// SnapshotVersion is the current snapshot schema version.
const SnapshotVersion = 1
