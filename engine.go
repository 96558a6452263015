package permit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"

	"github.com/oarkflow/permit/logger"
)

// Engine turns an AuthorizationContext plus the caller's resolved permission
// ids into an allow/deny decision. Construct one per process and pass it by
// reference to every consumer; evaluation is a pure in-memory read and safe
// for concurrent use alongside store writes.
type Engine struct {
	store       *RuleStore
	log         logger.Logger
	traceIDFunc logger.TraceIDFunc
	cache       *ristretto.Cache
	cacheTTL    time.Duration
}

type EngineOption func(*Engine) error

// WithLogger installs a Logger on the Engine.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		e.log = l
		return nil
	}
}

// WithTraceIDFunc installs a custom trace ID generator on the engine.
func WithTraceIDFunc(f logger.TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.traceIDFunc = f
		return nil
	}
}

// WithDecisionCache enables a ristretto-backed decision cache with the given
// TTL and sizing. Requests carrying resource attributes bypass the cache
// since attributes are not part of the cache key. Any rule write flushes it.
func WithDecisionCache(ttl time.Duration, numCounters, maxCost int64) EngineOption {
	return func(e *Engine) error {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: numCounters,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err != nil {
			return fmt.Errorf("decision cache: %w", err)
		}
		e.cache = cache
		e.cacheTTL = ttl
		return nil
	}
}

// NewEngine builds an engine over the given rule store.
func NewEngine(store *RuleStore, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		store:       store,
		log:         logger.NewPhusluLogger(),
		traceIDFunc: uuid.NewString,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Store exposes the underlying rule store for read access. Prefer the
// engine's mutating wrappers for writes so the decision cache stays
// coherent.
func (e *Engine) Store() *RuleStore { return e.store }

// ============================================================================
// EVALUATION
// ============================================================================

// Evaluate decides the request. It never fails: unresolved ids, inactive
// policies and unmatched rules all fall through to the default deny.
func (e *Engine) Evaluate(ctx context.Context, req *AuthorizationContext, permissionIDs []string) *EvaluationResult {
	return e.evaluate(req, permissionIDs, false)
}

// Explain is Evaluate with a human-readable trace of every rule considered.
// It bypasses the decision cache.
func (e *Engine) Explain(ctx context.Context, req *AuthorizationContext, permissionIDs []string) *EvaluationResult {
	return e.evaluate(req, permissionIDs, true)
}

// EvaluateBatch evaluates requests in order and returns one result per
// request.
func (e *Engine) EvaluateBatch(ctx context.Context, requests []AuthRequest) []*EvaluationResult {
	results := make([]*EvaluationResult, len(requests))
	for i, r := range requests {
		results[i] = e.Evaluate(ctx, r.Context, r.PermissionIDs)
	}
	return results
}

func (e *Engine) evaluate(req *AuthorizationContext, permissionIDs []string, withTrace bool) *EvaluationResult {
	start := time.Now()
	res := &EvaluationResult{}
	trace := func(format string, args ...any) {
		if withTrace {
			res.Trace = append(res.Trace, fmt.Sprintf(format, args...))
		}
	}
	if req == nil {
		res.Reason = ReasonDefaultDeny
		return e.finish(start, nil, permissionIDs, res, "")
	}

	// Wildcard fast path
	for _, id := range permissionIDs {
		if id == Wildcard {
			res.Allowed = true
			res.Reason = ReasonWildcard
			res.DecidedBy = Wildcard
			trace("wildcard permission present, short-circuit allow")
			return e.finish(start, req, permissionIDs, res, "")
		}
	}

	cacheKey := ""
	if e.cache != nil && !withTrace && len(req.ResourceAttributes) == 0 {
		cacheKey = decisionKey(req, permissionIDs)
		if v, ok := e.cache.Get(cacheKey); ok {
			cached := *(v.(*EvaluationResult))
			cached.EvaluationTimeMs = elapsedMs(start)
			return &cached
		}
	}

	candidates := make([]string, 0, len(permissionIDs)+1)
	candidates = append(candidates, req.UserID)
	candidates = append(candidates, permissionIDs...)

	// Policy pass: priority-descending, first matching statement per policy,
	// first deciding policy wins.
	for _, p := range e.store.policiesForEvaluation(req.TenantID) {
		for si := range p.Statements {
			st := &p.Statements[si]
			if !st.matches(req, candidates) {
				trace("policy=%s statement=%d no_match", p.ID, si)
				continue
			}
			res.DecidedBy = p.ID
			if st.Effect == EffectAllow {
				res.Allowed = true
				res.Reason = fmt.Sprintf("Allowed by policy: %s", p.ID)
				trace("policy=%s statement=%d ALLOW", p.ID, si)
			} else {
				res.Reason = fmt.Sprintf("Denied by policy: %s", p.ID)
				res.DeniedBy = []string{p.ID}
				trace("policy=%s statement=%d DENY", p.ID, si)
			}
			return e.finish(start, req, permissionIDs, res, cacheKey)
		}
	}

	// Permission pass: deny matches always beat allow matches, whatever
	// their priorities say.
	var denyIDs, allowIDs []string
	for _, perm := range e.store.ResolvePermissions(permissionIDs) {
		if !perm.matchesRequest(req) {
			trace("permission=%s no_match", perm.ID)
			continue
		}
		if perm.Effect == EffectDeny {
			denyIDs = append(denyIDs, perm.ID)
			trace("permission=%s match effect=deny", perm.ID)
		} else {
			allowIDs = append(allowIDs, perm.ID)
			trace("permission=%s match effect=allow", perm.ID)
		}
	}
	if len(denyIDs) > 0 {
		res.Reason = fmt.Sprintf("Denied by permission: %s", denyIDs[0])
		res.DeniedBy = denyIDs
		return e.finish(start, req, permissionIDs, res, cacheKey)
	}
	if len(allowIDs) > 0 {
		res.Allowed = true
		res.DecidedBy = allowIDs[0]
		res.MatchingPermissions = allowIDs
		res.Reason = fmt.Sprintf("Allowed by permission: %s", allowIDs[0])
		return e.finish(start, req, permissionIDs, res, cacheKey)
	}

	// Default deny
	res.Reason = ReasonDefaultDeny
	trace("no matching rule, default deny")
	return e.finish(start, req, permissionIDs, res, cacheKey)
}

func (e *Engine) finish(start time.Time, req *AuthorizationContext, permissionIDs []string, res *EvaluationResult, cacheKey string) *EvaluationResult {
	res.EvaluationTimeMs = elapsedMs(start)
	if cacheKey != "" {
		cached := *res
		cached.Trace = nil
		e.cache.SetWithTTL(cacheKey, &cached, 1, e.cacheTTL)
	}
	tenant, user, action, resource := "", "", "", ""
	if req != nil {
		tenant, user, action, resource = req.TenantID, req.UserID, req.Action, req.ResourceKey()
	}
	e.log.Info("authorization decision",
		"trace_id", e.traceIDFunc(),
		"tenant", tenant,
		"user", user,
		"action", action,
		"resource", resource,
		"allowed", res.Allowed,
		"decided_by", res.DecidedBy,
		"reason", res.Reason,
		"duration_ms", res.EvaluationTimeMs,
	)
	return res
}

func elapsedMs(start time.Time) float64 {
	ms := float64(time.Since(start)) / float64(time.Millisecond)
	if ms < 0 {
		return 0
	}
	return ms
}

func decisionKey(req *AuthorizationContext, permissionIDs []string) string {
	ids := append([]string(nil), permissionIDs...)
	sort.Strings(ids)
	return strings.Join([]string{req.TenantID, req.UserID, req.ResourceKey(), req.Action, strings.Join(ids, ",")}, "|")
}

func (e *Engine) invalidateDecisionCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// ============================================================================
// ADMINISTRATIVE WRAPPERS
// ============================================================================
//
// Mutations routed through the engine flush the decision cache, the same
// coherence rule for every write.

func (e *Engine) CreatePolicy(ctx context.Context, p *Policy) (*Policy, error) {
	created, err := e.store.CreatePolicy(ctx, p)
	if err == nil {
		e.invalidateDecisionCache()
	}
	return created, err
}

func (e *Engine) UpdatePolicy(ctx context.Context, id string, upd PolicyUpdate) (*Policy, error) {
	updated, err := e.store.UpdatePolicy(ctx, id, upd)
	if err == nil && updated != nil {
		e.invalidateDecisionCache()
	}
	return updated, err
}

func (e *Engine) DeletePolicy(ctx context.Context, id string) bool {
	deleted := e.store.DeletePolicy(ctx, id)
	if deleted {
		e.invalidateDecisionCache()
	}
	return deleted
}

func (e *Engine) CreatePermission(ctx context.Context, p *Permission) (*Permission, error) {
	created, err := e.store.CreatePermission(ctx, p)
	if err == nil {
		e.invalidateDecisionCache()
	}
	return created, err
}

func (e *Engine) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (*Permission, error) {
	updated, err := e.store.UpdatePermission(ctx, id, upd)
	if err == nil && updated != nil {
		e.invalidateDecisionCache()
	}
	return updated, err
}

func (e *Engine) DeletePermission(ctx context.Context, id string) bool {
	deleted := e.store.DeletePermission(ctx, id)
	if deleted {
		e.invalidateDecisionCache()
	}
	return deleted
}

func (e *Engine) BulkImport(snapshot Snapshot) {
	e.store.BulkImport(snapshot)
	e.invalidateDecisionCache()
}

func (e *Engine) Clear(ctx context.Context) {
	e.store.Clear(ctx)
	e.invalidateDecisionCache()
}
