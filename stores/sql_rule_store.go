package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/permit"
)

// SQLRuleStore is the durable collaborator behind the in-memory authority:
// it implements permit.Mirror so every CRUD write lands in SQL, and LoadAll
// replays the persisted rules into a Snapshot for bulk import at startup.
type SQLRuleStore struct {
	db *squealx.DB
}

func NewSQLRuleStore(db *squealx.DB) *SQLRuleStore {
	return &SQLRuleStore{db: db}
}

func (s *SQLRuleStore) SavePolicy(ctx context.Context, p *permit.Policy) error {
	statements, err := json.Marshal(p.Statements)
	if err != nil {
		return fmt.Errorf("encode statements for policy %s: %w", p.ID, err)
	}
	q := `INSERT OR REPLACE INTO policies(id, tenant_id, name, description, version, statements_json, is_active, priority, created_at, updated_at)
	      VALUES(:id, :tenant_id, :name, :description, :version, :statements_json, :is_active, :priority, :created_at, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              p.ID,
		"tenant_id":       p.TenantID,
		"name":            p.Name,
		"description":     p.Description,
		"version":         p.Version,
		"statements_json": string(statements),
		"is_active":       boolToInt(p.IsActive),
		"priority":        p.Priority,
		"created_at":      p.CreatedAt,
		"updated_at":      p.UpdatedAt,
	})
	return err
}

func (s *SQLRuleStore) DeletePolicy(ctx context.Context, id string) error {
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM policies WHERE id = :id`, map[string]any{"id": id})
	return err
}

func (s *SQLRuleStore) SavePermission(ctx context.Context, p *permit.Permission) error {
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("encode actions for permission %s: %w", p.ID, err)
	}
	q := `INSERT OR REPLACE INTO permissions(id, tenant_id, name, resource, actions_json, effect, priority, created_at, updated_at)
	      VALUES(:id, :tenant_id, :name, :resource, :actions_json, :effect, :priority, :created_at, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"id":           p.ID,
		"tenant_id":    p.TenantID,
		"name":         p.Name,
		"resource":     p.Resource,
		"actions_json": string(actions),
		"effect":       string(p.Effect),
		"priority":     p.Priority,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	})
	return err
}

func (s *SQLRuleStore) DeletePermission(ctx context.Context, id string) error {
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM permissions WHERE id = :id`, map[string]any{"id": id})
	return err
}

func (s *SQLRuleStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM policies`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM permissions`)
	return err
}

// LoadAll reads every persisted rule.
func (s *SQLRuleStore) LoadAll(ctx context.Context) (permit.Snapshot, error) {
	snap := permit.Snapshot{}
	policies, err := s.loadPolicies(ctx)
	if err != nil {
		return snap, err
	}
	permissions, err := s.loadPermissions(ctx)
	if err != nil {
		return snap, err
	}
	snap.Policies = policies
	snap.Permissions = permissions
	return snap, nil
}

func (s *SQLRuleStore) loadPolicies(ctx context.Context) ([]*permit.Policy, error) {
	q := `SELECT id, tenant_id, name, description, version, statements_json, is_active, priority, created_at, updated_at FROM policies ORDER BY created_at, id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*permit.Policy, 0)
	for r.Next() {
		var id, tenant, name, description, version, statementsJSON string
		var active, priority int
		var createdRaw, updatedRaw interface{}
		if err := r.Scan(&id, &tenant, &name, &description, &version, &statementsJSON, &active, &priority, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		p := &permit.Policy{
			ID:          id,
			TenantID:    tenant,
			Name:        name,
			Description: description,
			Version:     version,
			IsActive:    active != 0,
			Priority:    priority,
			CreatedAt:   decodeTime(createdRaw),
			UpdatedAt:   decodeTime(updatedRaw),
		}
		if err := json.Unmarshal([]byte(statementsJSON), &p.Statements); err != nil {
			return nil, fmt.Errorf("decode statements for policy %s: %w", id, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLRuleStore) loadPermissions(ctx context.Context) ([]*permit.Permission, error) {
	q := `SELECT id, tenant_id, name, resource, actions_json, effect, priority, created_at, updated_at FROM permissions ORDER BY created_at, id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*permit.Permission, 0)
	for r.Next() {
		var id, tenant, name, resource, actionsJSON, effect string
		var priority int
		var createdRaw, updatedRaw interface{}
		if err := r.Scan(&id, &tenant, &name, &resource, &actionsJSON, &effect, &priority, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		p := &permit.Permission{
			ID:        id,
			TenantID:  tenant,
			Name:      name,
			Resource:  resource,
			Effect:    permit.Effect(effect),
			Priority:  priority,
			CreatedAt: decodeTime(createdRaw),
			UpdatedAt: decodeTime(updatedRaw),
		}
		if err := json.Unmarshal([]byte(actionsJSON), &p.Actions); err != nil {
			return nil, fmt.Errorf("decode actions for permission %s: %w", id, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Seed replays the persisted rules into the in-memory store through the
// trusted bulk-import path. Call once at startup, before serving decisions.
func Seed(ctx context.Context, src *SQLRuleStore, dst *permit.RuleStore) error {
	snap, err := src.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("seed rule store: %w", err)
	}
	dst.BulkImport(snap)
	return nil
}
