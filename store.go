package permit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oarkflow/permit/logger"
)

// Mirror receives every successful write applied to a RuleStore so a durable
// collaborator (SQL, Redis) can shadow the in-memory authority. Mirror
// failures are logged and never fail the authoritative write.
type Mirror interface {
	SavePolicy(ctx context.Context, p *Policy) error
	DeletePolicy(ctx context.Context, id string) error
	SavePermission(ctx context.Context, p *Permission) error
	DeletePermission(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// RuleStore is the in-memory authority for Policies and Permissions. It
// enforces structural validation on create/update and a single flat id
// namespace: no two entities ever share an id, across tenants and across
// both entity kinds. Reads return consistent snapshots; updates replace the
// whole entity so concurrent readers never observe a half-written rule.
type RuleStore struct {
	mu              sync.RWMutex
	policies        map[string]*Policy
	permissions     map[string]*Permission
	policyOrder     []string
	permissionOrder []string
	mirror          Mirror
	log             logger.Logger
}

type RuleStoreOption func(*RuleStore)

// WithMirror installs the durable write-through collaborator.
func WithMirror(m Mirror) RuleStoreOption {
	return func(s *RuleStore) { s.mirror = m }
}

// WithStoreLogger overrides the store's logger.
func WithStoreLogger(l logger.Logger) RuleStoreOption {
	return func(s *RuleStore) { s.log = l }
}

func NewRuleStore(opts ...RuleStoreOption) *RuleStore {
	s := &RuleStore{
		policies:    make(map[string]*Policy),
		permissions: make(map[string]*Permission),
		log:         logger.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// POLICY LIFECYCLE
// ============================================================================

// CreatePolicy validates, defaults and stores a new policy. The id is
// generated when omitted; version defaults to "1.0" and the policy starts
// active.
func (s *RuleStore) CreatePolicy(ctx context.Context, p *Policy) (*Policy, error) {
	stored := clonePolicy(p)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Version == "" {
		stored.Version = DefaultPolicyVersion
	}
	stored.IsActive = true
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if err := stored.validateAndCompile(); err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}

	s.mu.Lock()
	if s.idInUseLocked(stored.ID) {
		s.mu.Unlock()
		return nil, fmt.Errorf("create policy %q: %w", stored.ID, ErrDuplicateID)
	}
	s.policies[stored.ID] = stored
	s.policyOrder = append(s.policyOrder, stored.ID)
	s.mu.Unlock()

	s.mirrorWrite(ctx, "policy", stored.ID, func(m Mirror) error { return m.SavePolicy(ctx, stored) })
	return clonePolicy(stored), nil
}

// GetPolicy returns the policy, or nil on a miss. A non-empty tenantID also
// returns nil when the stored tenant differs, including for global
// (tenant-less) policies.
func (s *RuleStore) GetPolicy(id, tenantID string) *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil
	}
	if tenantID != "" && p.TenantID != tenantID {
		return nil
	}
	return clonePolicy(p)
}

// ListPolicies returns policies in creation order. A non-empty tenantID
// filters by strict equality: global policies are excluded from filtered
// listings.
func (s *RuleStore) ListPolicies(tenantID string) []*Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Policy, 0, len(s.policyOrder))
	for _, id := range s.policyOrder {
		p := s.policies[id]
		if tenantID != "" && p.TenantID != tenantID {
			continue
		}
		out = append(out, clonePolicy(p))
	}
	return out
}

// PolicyUpdate is a partial policy mutation; nil fields are left unchanged.
// Supplying Statements replaces the list wholesale and re-validates it.
type PolicyUpdate struct {
	Name        *string
	Description *string
	Version     *string
	Statements  []Statement
	IsActive    *bool
	Priority    *int
	TenantID    *string
}

// UpdatePolicy merges upd into the stored policy as an atomic replacement
// and bumps UpdatedAt. Returns nil, nil when the id is unknown.
func (s *RuleStore) UpdatePolicy(ctx context.Context, id string, upd PolicyUpdate) (*Policy, error) {
	s.mu.Lock()
	old, ok := s.policies[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	next := clonePolicy(old)
	if upd.Name != nil {
		next.Name = *upd.Name
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	if upd.Version != nil {
		next.Version = *upd.Version
	}
	if upd.IsActive != nil {
		next.IsActive = *upd.IsActive
	}
	if upd.Priority != nil {
		next.Priority = *upd.Priority
	}
	if upd.TenantID != nil {
		next.TenantID = *upd.TenantID
	}
	if upd.Statements != nil {
		next.Statements = append([]Statement(nil), upd.Statements...)
		if err := next.validateAndCompile(); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("update policy %q: %w", id, err)
		}
	}
	next.UpdatedAt = time.Now()
	s.policies[id] = next
	s.mu.Unlock()

	s.mirrorWrite(ctx, "policy", id, func(m Mirror) error { return m.SavePolicy(ctx, next) })
	return clonePolicy(next), nil
}

// DeletePolicy removes the policy, reporting whether it existed.
func (s *RuleStore) DeletePolicy(ctx context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.policies[id]
	if ok {
		delete(s.policies, id)
		s.policyOrder = removeID(s.policyOrder, id)
	}
	s.mu.Unlock()
	if ok {
		s.mirrorWrite(ctx, "policy", id, func(m Mirror) error { return m.DeletePolicy(ctx, id) })
	}
	return ok
}

// ============================================================================
// PERMISSION LIFECYCLE
// ============================================================================

// CreatePermission validates, defaults and stores a new permission. Effect
// defaults to allow.
func (s *RuleStore) CreatePermission(ctx context.Context, p *Permission) (*Permission, error) {
	stored := clonePermission(p)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Effect == "" {
		stored.Effect = EffectAllow
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if err := stored.validateAndCompile(); err != nil {
		return nil, fmt.Errorf("create permission: %w", err)
	}

	s.mu.Lock()
	if s.idInUseLocked(stored.ID) {
		s.mu.Unlock()
		return nil, fmt.Errorf("create permission %q: %w", stored.ID, ErrDuplicateID)
	}
	s.permissions[stored.ID] = stored
	s.permissionOrder = append(s.permissionOrder, stored.ID)
	s.mu.Unlock()

	s.mirrorWrite(ctx, "permission", stored.ID, func(m Mirror) error { return m.SavePermission(ctx, stored) })
	return clonePermission(stored), nil
}

// GetPermission returns the permission, or nil on a miss or tenant mismatch.
func (s *RuleStore) GetPermission(id, tenantID string) *Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[id]
	if !ok {
		return nil
	}
	if tenantID != "" && p.TenantID != tenantID {
		return nil
	}
	return clonePermission(p)
}

// ListPermissions returns permissions in creation order, tenant-filtered by
// strict equality like ListPolicies.
func (s *RuleStore) ListPermissions(tenantID string) []*Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Permission, 0, len(s.permissionOrder))
	for _, id := range s.permissionOrder {
		p := s.permissions[id]
		if tenantID != "" && p.TenantID != tenantID {
			continue
		}
		out = append(out, clonePermission(p))
	}
	return out
}

// ResolvePermissions maps ids to stored permissions, silently dropping
// unresolved ids. Input order is preserved.
func (s *RuleStore) ResolvePermissions(ids []string) []*Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Permission, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PermissionUpdate is a partial permission mutation; nil fields are left
// unchanged.
type PermissionUpdate struct {
	Name     *string
	Resource *string
	Actions  []string
	Effect   *Effect
	Priority *int
	TenantID *string
}

// UpdatePermission merges upd as an atomic replacement, re-validating when
// resource, actions or effect change. Returns nil, nil when the id is
// unknown.
func (s *RuleStore) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (*Permission, error) {
	s.mu.Lock()
	old, ok := s.permissions[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	next := clonePermission(old)
	if upd.Name != nil {
		next.Name = *upd.Name
	}
	if upd.Priority != nil {
		next.Priority = *upd.Priority
	}
	if upd.TenantID != nil {
		next.TenantID = *upd.TenantID
	}
	structural := false
	if upd.Resource != nil {
		next.Resource = *upd.Resource
		structural = true
	}
	if upd.Actions != nil {
		next.Actions = append([]string(nil), upd.Actions...)
		structural = true
	}
	if upd.Effect != nil {
		next.Effect = *upd.Effect
		structural = true
	}
	if structural {
		if err := next.validateAndCompile(); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("update permission %q: %w", id, err)
		}
	}
	next.UpdatedAt = time.Now()
	s.permissions[id] = next
	s.mu.Unlock()

	s.mirrorWrite(ctx, "permission", id, func(m Mirror) error { return m.SavePermission(ctx, next) })
	return clonePermission(next), nil
}

// DeletePermission removes the permission, reporting whether it existed.
func (s *RuleStore) DeletePermission(ctx context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.permissions[id]
	if ok {
		delete(s.permissions, id)
		s.permissionOrder = removeID(s.permissionOrder, id)
	}
	s.mu.Unlock()
	if ok {
		s.mirrorWrite(ctx, "permission", id, func(m Mirror) error { return m.DeletePermission(ctx, id) })
	}
	return ok
}

// ============================================================================
// BULK OPERATIONS
// ============================================================================

// BulkImport upserts a trusted snapshot, skipping validation: the intended
// caller is a durable store replaying rules it persisted at write time.
// Malformed patterns or operators in the snapshot compile to never-match
// rather than failing the load. Imported rules are not mirrored back.
func (s *RuleStore) BulkImport(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range snapshot.Policies {
		if p == nil || p.ID == "" {
			continue
		}
		stored := clonePolicy(p)
		stored.compileLenient()
		if _, exists := s.policies[stored.ID]; !exists {
			s.policyOrder = append(s.policyOrder, stored.ID)
		}
		s.policies[stored.ID] = stored
	}
	for _, p := range snapshot.Permissions {
		if p == nil || p.ID == "" {
			continue
		}
		stored := clonePermission(p)
		if stored.Effect == "" {
			stored.Effect = EffectAllow
		}
		stored.compileLenient()
		if _, exists := s.permissions[stored.ID]; !exists {
			s.permissionOrder = append(s.permissionOrder, stored.ID)
		}
		s.permissions[stored.ID] = stored
	}
}

// Export returns a copy of everything currently stored, in creation order.
func (s *RuleStore) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Policies:    make([]*Policy, 0, len(s.policyOrder)),
		Permissions: make([]*Permission, 0, len(s.permissionOrder)),
	}
	for _, id := range s.policyOrder {
		snap.Policies = append(snap.Policies, clonePolicy(s.policies[id]))
	}
	for _, id := range s.permissionOrder {
		snap.Permissions = append(snap.Permissions, clonePermission(s.permissions[id]))
	}
	return snap
}

// Clear wipes all rules. Primarily a test-reset hook.
func (s *RuleStore) Clear(ctx context.Context) {
	s.mu.Lock()
	s.policies = make(map[string]*Policy)
	s.permissions = make(map[string]*Permission)
	s.policyOrder = nil
	s.permissionOrder = nil
	s.mu.Unlock()
	s.mirrorWrite(ctx, "store", "", func(m Mirror) error { return m.Clear(ctx) })
}

// ============================================================================
// EVALUATION READS
// ============================================================================

// policiesForEvaluation returns the active, tenant-eligible policies in
// priority-descending order, stable on ties by creation order. Tenant-less
// policies are global and always eligible; the rest must equal tenantID.
// Callers must treat the returned policies as read-only.
func (s *RuleStore) policiesForEvaluation(tenantID string) []*Policy {
	s.mu.RLock()
	eligible := make([]*Policy, 0, len(s.policyOrder))
	for _, id := range s.policyOrder {
		p := s.policies[id]
		if !p.IsActive {
			continue
		}
		if p.TenantID != "" && p.TenantID != tenantID {
			continue
		}
		eligible = append(eligible, p)
	}
	s.mu.RUnlock()
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Priority > eligible[j].Priority })
	return eligible
}

// ============================================================================
// INTERNALS
// ============================================================================

func (s *RuleStore) idInUseLocked(id string) bool {
	if _, ok := s.policies[id]; ok {
		return true
	}
	_, ok := s.permissions[id]
	return ok
}

func (s *RuleStore) mirrorWrite(ctx context.Context, kind, id string, fn func(Mirror) error) {
	if s.mirror == nil {
		return
	}
	if err := fn(s.mirror); err != nil {
		s.log.Error("mirror write failed", "kind", kind, "id", id, "error", err.Error())
	}
}

// clonePolicy copies the struct and its statement slice. Statements and
// their compiled patterns are immutable once stored, so the inner slices can
// be shared.
func clonePolicy(p *Policy) *Policy {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Statements = append([]Statement(nil), p.Statements...)
	return &dup
}

func clonePermission(p *Permission) *Permission {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Actions = append([]string(nil), p.Actions...)
	return &dup
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
