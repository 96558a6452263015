package permit

// Builders provide a fluent API for assembling Policies, Statements and
// Permissions before handing them to the store.

// PolicyBuilder builds a Policy
type PolicyBuilder struct {
	p *Policy
}

func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{p: &Policy{Version: DefaultPolicyVersion}}
}

func (b *PolicyBuilder) ID(id string) *PolicyBuilder         { b.p.ID = id; return b }
func (b *PolicyBuilder) Name(n string) *PolicyBuilder        { b.p.Name = n; return b }
func (b *PolicyBuilder) Description(d string) *PolicyBuilder { b.p.Description = d; return b }
func (b *PolicyBuilder) Version(v string) *PolicyBuilder     { b.p.Version = v; return b }
func (b *PolicyBuilder) Tenant(t string) *PolicyBuilder      { b.p.TenantID = t; return b }
func (b *PolicyBuilder) Priority(p int) *PolicyBuilder       { b.p.Priority = p; return b }
func (b *PolicyBuilder) Statement(s Statement) *PolicyBuilder {
	b.p.Statements = append(b.p.Statements, s)
	return b
}
func (b *PolicyBuilder) Build() *Policy { return b.p }

// StatementBuilder builds a Statement
type StatementBuilder struct {
	s Statement
}

func NewStatementBuilder(effect Effect) *StatementBuilder {
	return &StatementBuilder{s: Statement{Effect: effect}}
}

func (b *StatementBuilder) Principals(p ...string) *StatementBuilder {
	b.s.Principals = append(b.s.Principals, p...)
	return b
}
func (b *StatementBuilder) NotPrincipals(p ...string) *StatementBuilder {
	b.s.NotPrincipals = append(b.s.NotPrincipals, p...)
	return b
}
func (b *StatementBuilder) Actions(a ...string) *StatementBuilder {
	b.s.Actions = append(b.s.Actions, a...)
	return b
}
func (b *StatementBuilder) NotActions(a ...string) *StatementBuilder {
	b.s.NotActions = append(b.s.NotActions, a...)
	return b
}
func (b *StatementBuilder) Resources(r ...string) *StatementBuilder {
	b.s.Resources = append(b.s.Resources, r...)
	return b
}
func (b *StatementBuilder) NotResources(r ...string) *StatementBuilder {
	b.s.NotResources = append(b.s.NotResources, r...)
	return b
}
func (b *StatementBuilder) Condition(field, operator string, value any) *StatementBuilder {
	b.s.Conditions = append(b.s.Conditions, Condition{Field: field, Operator: operator, Value: value})
	return b
}
func (b *StatementBuilder) VariableCondition(field, operator, ref string) *StatementBuilder {
	b.s.Conditions = append(b.s.Conditions, Condition{Field: field, Operator: operator, Value: ref, IsVariable: true})
	return b
}
func (b *StatementBuilder) Build() Statement { return b.s }

// PermissionBuilder builds a Permission
type PermissionBuilder struct {
	p *Permission
}

func NewPermissionBuilder() *PermissionBuilder {
	return &PermissionBuilder{p: &Permission{Effect: EffectAllow}}
}

func (b *PermissionBuilder) ID(id string) *PermissionBuilder      { b.p.ID = id; return b }
func (b *PermissionBuilder) Name(n string) *PermissionBuilder     { b.p.Name = n; return b }
func (b *PermissionBuilder) Resource(r string) *PermissionBuilder { b.p.Resource = r; return b }
func (b *PermissionBuilder) Effect(e Effect) *PermissionBuilder   { b.p.Effect = e; return b }
func (b *PermissionBuilder) Priority(pr int) *PermissionBuilder   { b.p.Priority = pr; return b }
func (b *PermissionBuilder) Tenant(t string) *PermissionBuilder   { b.p.TenantID = t; return b }
func (b *PermissionBuilder) Actions(a ...string) *PermissionBuilder {
	b.p.Actions = append(b.p.Actions, a...)
	return b
}
func (b *PermissionBuilder) Build() *Permission { return b.p }
