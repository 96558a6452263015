package permit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oarkflow/permit/logger"
)

const testConfigYAML = `
version: 1
policies:
  - id: pol-owners
    name: owners edit their documents
    is_active: true
    priority: 10
    statements:
      - effect: allow
        actions: ["edit", "delete"]
        resources: ["document:*"]
        conditions:
          - field: resourceAttributes.ownerId
            operator: equals
            value: ${userId}
permissions:
  - id: perm-read
    name: read documents
    resource: document
    actions: ["read"]
engine:
  decision_cache_ttl_ms: 60000
  ristretto_num_counter: 10000
  ristretto_max_cost: 1048576
`

func TestConfigLoadYAML(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(cfg.Policies) != 1 || len(cfg.Permissions) != 1 {
		t.Fatalf("unexpected rule counts: %d policies, %d permissions", len(cfg.Policies), len(cfg.Permissions))
	}
	if cfg.Policies[0].ID != "pol-owners" || cfg.Policies[0].Priority != 10 {
		t.Fatalf("policy not decoded: %+v", cfg.Policies[0])
	}
	if len(cfg.Policies[0].Statements[0].Conditions) != 1 {
		t.Fatalf("conditions not decoded")
	}
	if cfg.Engine.DecisionCacheTTL != 60000 {
		t.Fatalf("engine config not decoded: %+v", cfg.Engine)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfigValidateCatchesMalformedRules(t *testing.T) {
	cfg := &Config{Policies: []*Policy{{
		ID: "pol-bad", Name: "bad",
		Statements: []Statement{{Effect: EffectAllow, Actions: []string{"re*ad"}, Resources: []string{"doc"}}},
	}}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestConfigApply(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	store := NewRuleStore()
	cfg.Apply(store)

	eng, err := NewEngine(store, WithLogger(logger.NewNullLogger()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Owner path through the policy.
	res := eng.Evaluate(context.Background(), &AuthorizationContext{
		UserID: "alice", Resource: "document", ResourceID: "9", Action: "edit",
		ResourceAttributes: map[string]any{"ownerId": "alice"},
	}, nil)
	if !res.Allowed || res.DecidedBy != "pol-owners" {
		t.Fatalf("expected policy allow, got %q allowed=%v (%s)", res.DecidedBy, res.Allowed, res.Reason)
	}

	// Fallback path through the permission.
	res = eng.Evaluate(context.Background(), &AuthorizationContext{
		UserID: "bob", Resource: "document", Action: "read",
	}, []string{"perm-read"})
	if !res.Allowed || res.DecidedBy != "perm-read" {
		t.Fatalf("expected permission allow, got %q allowed=%v (%s)", res.DecidedBy, res.Allowed, res.Reason)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	var buf bytes.Buffer
	if err := loader.ExportJSON(&buf, cfg); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	back, err := loader.LoadJSON(buf.Bytes())
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(back.Policies) != 1 || back.Policies[0].ID != "pol-owners" {
		t.Fatalf("json round-trip lost the policy")
	}

	buf.Reset()
	if err := loader.ExportYAML(&buf, cfg); err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}
	back, err = loader.LoadYAML(buf.Bytes())
	if err != nil {
		t.Fatalf("LoadYAML round-trip: %v", err)
	}
	if len(back.Permissions) != 1 || back.Permissions[0].ID != "perm-read" {
		t.Fatalf("yaml round-trip lost the permission")
	}
}

func TestConfigLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := NewConfigLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.Policies) != 1 {
		t.Fatalf("unexpected policy count")
	}

	if _, err := NewConfigLoader().LoadFile(filepath.Join(dir, "rules.toml")); err == nil {
		t.Fatalf("unsupported extension should fail")
	}
}
