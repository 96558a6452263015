package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/permit"
)

// RedisRuleMirror shadows rule writes into two Redis hashes (id -> JSON),
// so sibling processes can seed themselves without reaching the SQL store.
type RedisRuleMirror struct {
	client        *redis.Client
	policyKey     string
	permissionKey string
}

func NewRedisRuleMirror(client *redis.Client) *RedisRuleMirror {
	return &RedisRuleMirror{
		client:        client,
		policyKey:     "permit:policies",
		permissionKey: "permit:permissions",
	}
}

func (r *RedisRuleMirror) SavePolicy(ctx context.Context, p *permit.Policy) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode policy %s: %w", p.ID, err)
	}
	return r.client.HSet(ctx, r.policyKey, p.ID, data).Err()
}

func (r *RedisRuleMirror) DeletePolicy(ctx context.Context, id string) error {
	return r.client.HDel(ctx, r.policyKey, id).Err()
}

func (r *RedisRuleMirror) SavePermission(ctx context.Context, p *permit.Permission) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode permission %s: %w", p.ID, err)
	}
	return r.client.HSet(ctx, r.permissionKey, p.ID, data).Err()
}

func (r *RedisRuleMirror) DeletePermission(ctx context.Context, id string) error {
	return r.client.HDel(ctx, r.permissionKey, id).Err()
}

func (r *RedisRuleMirror) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.policyKey, r.permissionKey).Err()
}

// LoadAll reads the mirrored rules back into a Snapshot.
func (r *RedisRuleMirror) LoadAll(ctx context.Context) (permit.Snapshot, error) {
	snap := permit.Snapshot{}
	rawPolicies, err := r.client.HGetAll(ctx, r.policyKey).Result()
	if err != nil {
		return snap, err
	}
	for id, raw := range rawPolicies {
		p := &permit.Policy{}
		if err := json.Unmarshal([]byte(raw), p); err != nil {
			return snap, fmt.Errorf("decode policy %s: %w", id, err)
		}
		snap.Policies = append(snap.Policies, p)
	}
	rawPermissions, err := r.client.HGetAll(ctx, r.permissionKey).Result()
	if err != nil {
		return snap, err
	}
	for id, raw := range rawPermissions {
		p := &permit.Permission{}
		if err := json.Unmarshal([]byte(raw), p); err != nil {
			return snap, fmt.Errorf("decode permission %s: %w", id, err)
		}
		snap.Permissions = append(snap.Permissions, p)
	}
	return snap, nil
}
