package permit

import "errors"

// Validation errors raised by create/update. These are programmer/authoring
// errors: non-retryable, surfaced synchronously to the admin caller. Lookup
// misses are nil/bool returns, never errors, and evaluation never fails.
var (
	ErrNameRequired       = errors.New("name is required")
	ErrNoStatements       = errors.New("policy must have at least one statement")
	ErrStatementEffect    = errors.New("statement must have an effect")
	ErrStatementActions   = errors.New("statement must have at least one action")
	ErrStatementResources = errors.New("statement must have at least one resource")
	ErrPermissionResource = errors.New("permission must have a resource")
	ErrPermissionActions  = errors.New("permission must have at least one action")
	ErrInvalidEffect      = errors.New("effect must be allow or deny")
	ErrInvalidPattern     = errors.New("invalid pattern")
	ErrUnknownOperator    = errors.New("unknown condition operator")
	ErrDuplicateID        = errors.New("id already in use")
)
