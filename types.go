package permit

import (
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Effect represents the outcome a rule produces when it matches
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Wildcard is the universal matcher token, valid for principals, actions,
// resources and permission-id sets.
const Wildcard = "*"

// Condition constrains a statement beyond its principal/action/resource
// matchers. Field is a dot-path into the authorization context (one level of
// nesting into resource attributes, e.g. "resourceAttributes.ownerId").
// Value is a literal unless IsVariable is set or it uses the "${path}" form,
// in which case it is resolved against the context like Field.
type Condition struct {
	Field      string `json:"field" yaml:"field"`
	Operator   string `json:"operator" yaml:"operator"`
	Value      any    `json:"value" yaml:"value"`
	IsVariable bool   `json:"is_variable,omitempty" yaml:"is_variable,omitempty"`

	operand conditionOperand
	eval    OperatorFunc
}

// Statement is one allow/deny rule inside a Policy. Within a policy the first
// statement that matches a request fixes the policy's verdict; later
// statements are never consulted.
//
// Principals lists who the statement applies to; a nil or empty list imposes
// no constraint (matches everyone). The empty-list case is deliberate: it
// mirrors the behavior admin tooling already relies on, surprising as it is
// for an access control. NotPrincipals, NotActions and NotResources veto a
// match using the same semantics as their positive counterparts.
type Statement struct {
	Effect        Effect      `json:"effect" yaml:"effect"`
	Principals    []string    `json:"principals,omitempty" yaml:"principals,omitempty"`
	NotPrincipals []string    `json:"not_principals,omitempty" yaml:"not_principals,omitempty"`
	Actions       []string    `json:"actions" yaml:"actions"`
	NotActions    []string    `json:"not_actions,omitempty" yaml:"not_actions,omitempty"`
	Resources     []string    `json:"resources" yaml:"resources"`
	NotResources  []string    `json:"not_resources,omitempty" yaml:"not_resources,omitempty"`
	Conditions    []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	actions      []Pattern
	notActions   []Pattern
	resources    []Pattern
	notResources []Pattern
}

// Policy is an ordered, statement-based access rule evaluated before discrete
// permissions. Statements are immutable once stored; updates replace the
// whole list. Inactive policies never participate in evaluation.
type Policy struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string      `json:"version" yaml:"version"`
	Statements  []Statement `json:"statements" yaml:"statements"`
	IsActive    bool        `json:"is_active" yaml:"is_active"`
	Priority    int         `json:"priority" yaml:"priority"`
	TenantID    string      `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"updated_at"`
}

// Permission is a flat capability grant: one resource pattern, a set of
// action patterns, an effect. Permissions are consulted only when no policy
// produced a verdict.
type Permission struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Resource  string    `json:"resource" yaml:"resource"`
	Actions   []string  `json:"actions" yaml:"actions"`
	Effect    Effect    `json:"effect" yaml:"effect"`
	Priority  int       `json:"priority" yaml:"priority"`
	TenantID  string    `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	resource Pattern
	actions  []Pattern
}

// AuthorizationContext describes one access request: who, on what, doing
// which action, within which tenant. Built per call, never stored.
type AuthorizationContext struct {
	UserID             string         `json:"user_id"`
	TenantID           string         `json:"tenant_id"`
	Resource           string         `json:"resource"`
	ResourceID         string         `json:"resource_id,omitempty"`
	Action             string         `json:"action"`
	ResourceAttributes map[string]any `json:"resource_attributes,omitempty"`
}

// ResourceKey returns the value statement resource patterns are matched
// against: "resource:resourceID" when an id is present, else the bare
// resource.
func (c *AuthorizationContext) ResourceKey() string {
	if c.ResourceID != "" {
		return c.Resource + ":" + c.ResourceID
	}
	return c.Resource
}

// EvaluationResult is the engine's answer. Reason is meant for audit logs
// and diagnostics, not end users. Trace is populated only by Explain.
type EvaluationResult struct {
	Allowed             bool     `json:"allowed"`
	Reason              string   `json:"reason"`
	DecidedBy           string   `json:"decided_by,omitempty"`
	DeniedBy            []string `json:"denied_by,omitempty"`
	MatchingPermissions []string `json:"matching_permissions,omitempty"`
	EvaluationTimeMs    float64  `json:"evaluation_time_ms"`
	Trace               []string `json:"trace,omitempty"`
}

// AuthRequest pairs a context with its resolved permission ids for batch
// evaluation.
type AuthRequest struct {
	Context       *AuthorizationContext
	PermissionIDs []string
}

// Snapshot is the bulk-load/export unit: a full set of rules, as produced by
// Export and consumed by BulkImport. Trusted input; no validation applies.
type Snapshot struct {
	Policies    []*Policy     `json:"policies" yaml:"policies"`
	Permissions []*Permission `json:"permissions" yaml:"permissions"`
}

// DefaultPolicyVersion is applied when a policy is created without one.
const DefaultPolicyVersion = "1.0"

// Canonical reason strings attached to EvaluationResult.
const (
	ReasonWildcard    = "Wildcard permission grants full access"
	ReasonDefaultDeny = "No matching permission found"
)
