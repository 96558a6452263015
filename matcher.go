package permit

import "fmt"

// ============================================================================
// STATEMENT MATCHING
// ============================================================================

// compile validates the statement and pre-parses its patterns and
// conditions.
func (s *Statement) compile() error {
	switch s.Effect {
	case EffectAllow, EffectDeny:
	case "":
		return ErrStatementEffect
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEffect, s.Effect)
	}
	if len(s.Actions) == 0 {
		return ErrStatementActions
	}
	if len(s.Resources) == 0 {
		return ErrStatementResources
	}
	var err error
	if s.actions, err = compilePatterns(s.Actions); err != nil {
		return err
	}
	if s.notActions, err = compilePatterns(s.NotActions); err != nil {
		return err
	}
	if s.resources, err = compilePatterns(s.Resources); err != nil {
		return err
	}
	if s.notResources, err = compilePatterns(s.NotResources); err != nil {
		return err
	}
	for i := range s.Conditions {
		if err := s.Conditions[i].compile(); err != nil {
			return err
		}
	}
	return nil
}

// compileLenient is the bulk-import path: patterns and conditions that would
// fail validation compile to never-match, so one bad rule in a trusted
// snapshot cannot fail open or poison the import.
func (s *Statement) compileLenient() {
	s.actions = compileLenientPatterns(s.Actions)
	s.notActions = compileLenientPatterns(s.NotActions)
	s.resources = compileLenientPatterns(s.Resources)
	s.notResources = compileLenientPatterns(s.NotResources)
	for i := range s.Conditions {
		s.Conditions[i].compileLenient()
	}
}

// matches reports whether the statement applies to the request. candidates
// is the principal candidate set: the user id plus every permission id the
// caller resolved for the principal.
func (s *Statement) matches(ctx *AuthorizationContext, candidates []string) bool {
	if len(s.Principals) > 0 && !principalIntersects(s.Principals, candidates, true) {
		return false
	}
	if len(s.NotPrincipals) > 0 && principalIntersects(s.NotPrincipals, candidates, false) {
		return false
	}
	if !anyPatternMatches(s.actions, ctx.Action) {
		return false
	}
	if anyPatternMatches(s.notActions, ctx.Action) {
		return false
	}
	key := ctx.ResourceKey()
	if !anyPatternMatches(s.resources, key) {
		return false
	}
	if anyPatternMatches(s.notResources, key) {
		return false
	}
	for i := range s.Conditions {
		if !s.Conditions[i].holds(ctx) {
			return false
		}
	}
	return true
}

// principalIntersects reports whether any candidate is listed. For the
// positive principal list a literal "*" entry matches everyone; exclusion
// lists are literal only.
func principalIntersects(listed, candidates []string, allowWildcard bool) bool {
	for _, p := range listed {
		if allowWildcard && p == Wildcard {
			return true
		}
		for _, c := range candidates {
			if p == c {
				return true
			}
		}
	}
	return false
}

// ============================================================================
// POLICY / PERMISSION COMPILATION
// ============================================================================

func (p *Policy) validateAndCompile() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if len(p.Statements) == 0 {
		return ErrNoStatements
	}
	for i := range p.Statements {
		if err := p.Statements[i].compile(); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return nil
}

func (p *Policy) compileLenient() {
	for i := range p.Statements {
		p.Statements[i].compileLenient()
	}
}

func (p *Permission) validateAndCompile() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.Resource == "" {
		return ErrPermissionResource
	}
	if len(p.Actions) == 0 {
		return ErrPermissionActions
	}
	switch p.Effect {
	case EffectAllow, EffectDeny:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEffect, p.Effect)
	}
	var err error
	if p.resource, err = CompilePattern(p.Resource); err != nil {
		return err
	}
	if p.actions, err = compilePatterns(p.Actions); err != nil {
		return err
	}
	return nil
}

func (p *Permission) compileLenient() {
	p.resource = compileLenientPattern(p.Resource)
	p.actions = compileLenientPatterns(p.Actions)
}

// matchesRequest applies the shared pattern rules to (resource, action)
// only; permissions have no principal or condition matching.
func (p *Permission) matchesRequest(ctx *AuthorizationContext) bool {
	return p.resource.Match(ctx.Resource) && anyPatternMatches(p.actions, ctx.Action)
}
