package permit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oarkflow/date"
)

// OperatorFunc compares the resolved field value (left) with the resolved
// condition value (right).
type OperatorFunc func(left, right any) bool

var (
	operatorMu sync.RWMutex
	operators  = map[string]OperatorFunc{
		"equals":      opEquals,
		"not_equals":  func(l, r any) bool { return !opEquals(l, r) },
		"in":          opIn,
		"not_in":      func(l, r any) bool { return !opIn(l, r) },
		"contains":    opContains,
		"starts_with": opStartsWith,
		"gt":          func(l, r any) bool { c, ok := orderValues(l, r); return ok && c > 0 },
		"gte":         func(l, r any) bool { c, ok := orderValues(l, r); return ok && c >= 0 },
		"lt":          func(l, r any) bool { c, ok := orderValues(l, r); return ok && c < 0 },
		"lte":         func(l, r any) bool { c, ok := orderValues(l, r); return ok && c <= 0 },
		"before":      func(l, r any) bool { lt, rt, ok := timeValues(l, r); return ok && lt.Before(rt) },
		"after":       func(l, r any) bool { lt, rt, ok := timeValues(l, r); return ok && lt.After(rt) },
	}
)

// RegisterOperator installs a custom condition operator. Registering an
// existing name replaces it. Call before rules using the operator are
// created.
func RegisterOperator(name string, fn OperatorFunc) {
	operatorMu.Lock()
	defer operatorMu.Unlock()
	operators[name] = fn
}

func lookupOperator(name string) (OperatorFunc, bool) {
	operatorMu.RLock()
	defer operatorMu.RUnlock()
	fn, ok := operators[name]
	return fn, ok
}

// conditionOperand is the compiled right-hand side of a condition: either a
// literal or a reference into the authorization context, resolved with the
// same dot-path lookup as Condition.Field.
type conditionOperand struct {
	literal any
	refPath string
	isRef   bool
}

func (o conditionOperand) resolve(ctx *AuthorizationContext) any {
	if o.isRef {
		v, _ := lookupContextField(ctx, o.refPath)
		return v
	}
	return o.literal
}

// compile resolves the operator and classifies the value as literal or
// context reference. An empty operator means "equals".
func (c *Condition) compile() error {
	name := c.Operator
	if name == "" {
		name = "equals"
	}
	fn, ok := lookupOperator(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
	}
	c.eval = fn
	c.operand = compileOperand(c.Value, c.IsVariable)
	return nil
}

// compileLenient is the trusted bulk-import variant: an unknown operator
// becomes a never-true condition instead of an import failure.
func (c *Condition) compileLenient() {
	if err := c.compile(); err != nil {
		c.eval = func(any, any) bool { return false }
		c.operand = compileOperand(c.Value, c.IsVariable)
	}
}

func compileOperand(value any, isVariable bool) conditionOperand {
	if s, ok := value.(string); ok {
		if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
			return conditionOperand{refPath: s[2 : len(s)-1], isRef: true}
		}
		if isVariable {
			return conditionOperand{refPath: s, isRef: true}
		}
	}
	return conditionOperand{literal: value}
}

// holds evaluates the condition against the context. Uncompiled conditions
// never hold.
func (c *Condition) holds(ctx *AuthorizationContext) bool {
	if c.eval == nil {
		return false
	}
	left, _ := lookupContextField(ctx, c.Field)
	return c.eval(left, c.operand.resolve(ctx))
}

// lookupContextField resolves a dot-path against the context. Supported
// paths: userId, tenantId, resource, resourceId, action, resourceAttributes
// and resourceAttributes.<key>.
func lookupContextField(ctx *AuthorizationContext, path string) (any, bool) {
	if ctx == nil || path == "" {
		return nil, false
	}
	head, rest := path, ""
	if i := strings.IndexByte(path, '.'); i >= 0 {
		head, rest = path[:i], path[i+1:]
	}
	switch head {
	case "userId":
		return ctx.UserID, true
	case "tenantId":
		return ctx.TenantID, true
	case "resource":
		return ctx.Resource, true
	case "resourceId":
		return ctx.ResourceID, true
	case "action":
		return ctx.Action, true
	case "resourceAttributes":
		if rest == "" {
			return ctx.ResourceAttributes, true
		}
		v, ok := ctx.ResourceAttributes[rest]
		return v, ok
	}
	return nil, false
}

// ============================================================================
// OPERATOR IMPLEMENTATIONS
// ============================================================================

func opEquals(left, right any) bool {
	if lf, lok := toFloat(left); lok {
		if rf, rok := toFloat(right); rok {
			return lf == rf
		}
	}
	return fmt.Sprint(left) == fmt.Sprint(right)
}

func opIn(left, right any) bool {
	for _, v := range toSlice(right) {
		if opEquals(left, v) {
			return true
		}
	}
	return false
}

func opContains(left, right any) bool {
	if ls, ok := left.(string); ok {
		if rs, rok := right.(string); rok {
			return strings.Contains(ls, rs)
		}
	}
	for _, v := range toSlice(left) {
		if opEquals(v, right) {
			return true
		}
	}
	return false
}

func opStartsWith(left, right any) bool {
	ls, lok := left.(string)
	rs, rok := right.(string)
	return lok && rok && strings.HasPrefix(ls, rs)
}

func orderValues(left, right any) (int, bool) {
	if lf, lok := toFloat(left); lok {
		if rf, rok := toFloat(right); rok {
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			}
			return 0, true
		}
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		return strings.Compare(ls, rs), true
	}
	return 0, false
}

func timeValues(left, right any) (time.Time, time.Time, bool) {
	lt, lok := toTime(left)
	rt, rok := toTime(right)
	return lt, rt, lok && rok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case nil:
		return nil
	}
	return []any{v}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := date.Parse(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
