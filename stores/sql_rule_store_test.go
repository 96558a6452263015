package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/permit"
)

func newSQLiteStore(t *testing.T) *SQLRuleStore {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLRuleStore(db)
}

func testPolicy(id string) *permit.Policy {
	now := time.Now().UTC().Truncate(time.Second)
	return &permit.Policy{
		ID:       id,
		Name:     "owners edit",
		Version:  permit.DefaultPolicyVersion,
		TenantID: "tenant-1",
		IsActive: true,
		Priority: 5,
		Statements: []permit.Statement{{
			Effect:    permit.EffectAllow,
			Actions:   []string{"edit"},
			Resources: []string{"document:*"},
			Conditions: []permit.Condition{{
				Field: "resourceAttributes.ownerId", Operator: "equals", Value: "${userId}",
			}},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLRuleStorePolicyRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	if err := store.SavePolicy(ctx, testPolicy("pol-1")); err != nil {
		t.Fatalf("save policy: %v", err)
	}

	snap, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(snap.Policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(snap.Policies))
	}
	got := snap.Policies[0]
	if got.ID != "pol-1" || got.TenantID != "tenant-1" || !got.IsActive || got.Priority != 5 {
		t.Fatalf("policy fields lost: %+v", got)
	}
	if len(got.Statements) != 1 || len(got.Statements[0].Conditions) != 1 {
		t.Fatalf("statements not preserved: %+v", got.Statements)
	}
	if got.Statements[0].Conditions[0].Value != "${userId}" {
		t.Fatalf("condition value lost: %+v", got.Statements[0].Conditions[0])
	}
}

func TestSQLRuleStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	p := testPolicy("pol-up")
	if err := store.SavePolicy(ctx, p); err != nil {
		t.Fatalf("save policy: %v", err)
	}
	p.Priority = 42
	if err := store.SavePolicy(ctx, p); err != nil {
		t.Fatalf("re-save policy: %v", err)
	}

	snap, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(snap.Policies) != 1 || snap.Policies[0].Priority != 42 {
		t.Fatalf("upsert did not replace: %+v", snap.Policies)
	}

	if err := store.DeletePolicy(ctx, "pol-up"); err != nil {
		t.Fatalf("delete policy: %v", err)
	}
	snap, err = store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(snap.Policies) != 0 {
		t.Fatalf("delete left rows behind")
	}
}

func TestSQLRuleStorePermissionRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	perm := &permit.Permission{
		ID:        "perm-1",
		Name:      "read docs",
		Resource:  "document",
		Actions:   []string{"read", "list"},
		Effect:    permit.EffectAllow,
		TenantID:  "tenant-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.SavePermission(ctx, perm); err != nil {
		t.Fatalf("save permission: %v", err)
	}

	snap, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(snap.Permissions) != 1 {
		t.Fatalf("expected 1 permission, got %d", len(snap.Permissions))
	}
	got := snap.Permissions[0]
	if got.Effect != permit.EffectAllow || len(got.Actions) != 2 {
		t.Fatalf("permission fields lost: %+v", got)
	}
}

func TestSQLRuleStoreAsMirror(t *testing.T) {
	ctx := context.Background()
	sqlStore := newSQLiteStore(t)
	authority := permit.NewRuleStore(permit.WithMirror(sqlStore))

	if _, err := authority.CreatePolicy(ctx, testPolicy("pol-mirrored")); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if _, err := authority.CreatePermission(ctx, &permit.Permission{
		ID: "perm-mirrored", Name: "read", Resource: "document", Actions: []string{"read"},
	}); err != nil {
		t.Fatalf("create permission: %v", err)
	}
	authority.DeletePermission(ctx, "perm-mirrored")

	snap, err := sqlStore.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(snap.Policies) != 1 || len(snap.Permissions) != 0 {
		t.Fatalf("mirror out of sync: %d policies, %d permissions", len(snap.Policies), len(snap.Permissions))
	}
}

func TestSeedReplaysPersistedRules(t *testing.T) {
	ctx := context.Background()
	sqlStore := newSQLiteStore(t)

	if err := sqlStore.SavePolicy(ctx, testPolicy("pol-seeded")); err != nil {
		t.Fatalf("save policy: %v", err)
	}

	fresh := permit.NewRuleStore()
	if err := Seed(ctx, sqlStore, fresh); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if fresh.GetPolicy("pol-seeded", "") == nil {
		t.Fatalf("seed did not load the persisted policy")
	}

	// Seeded rules must evaluate.
	eng, err := permit.NewEngine(fresh)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res := eng.Evaluate(ctx, &permit.AuthorizationContext{
		UserID: "alice", TenantID: "tenant-1", Resource: "document", ResourceID: "7", Action: "edit",
		ResourceAttributes: map[string]any{"ownerId": "alice"},
	}, nil)
	if !res.Allowed {
		t.Fatalf("seeded policy should allow the owner: %s", res.Reason)
	}
}
