package authz

// Account statuses carried into evaluation.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Denial reasons. Stable vocabulary; recorded in security events and audit
// trails.
const (
	ReasonInsufficientRole  = "insufficient-role"
	ReasonInsufficientScope = "insufficient-scope"
	ReasonInactiveAccount   = "inactive-account"
	ReasonUnknownRole       = "unknown-role"
)

// Input is the caller's verified identity as evaluation sees it: the role
// and status from the account record and the scopes carried by the access
// credential.
type Input struct {
	SubjectID string
	Role      string
	Scopes    []string
	Status    string
}

// Requirement is what a guarded operation demands. Zero-value fields are
// not enforced; all set fields must pass.
type Requirement struct {
	// MinRole is the least role allowed, per the fixed hierarchy.
	MinRole string
	// AllScopes must every one be held.
	AllScopes []string
	// AnyScopes requires at least one to be held.
	AnyScopes []string
}

// Decision is the evaluation outcome. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
	// Missing names the unmet role or scopes for audit; never shown to the
	// caller.
	Missing []string
}

// Evaluator applies Requirements to Inputs. Stateless and safe for
// concurrent use.
type Evaluator struct{}

// NewEvaluator returns an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Authorize evaluates the requirement. Checks run cheapest-first and the
// first failure decides: status, role validity, role floor, then scopes.
func (e *Evaluator) Authorize(in Input, req Requirement) Decision {
	if in.Status != StatusActive {
		return Decision{Reason: ReasonInactiveAccount}
	}
	if !KnownRole(in.Role) {
		return Decision{Reason: ReasonUnknownRole}
	}
	if req.MinRole != "" && !RoleAtLeast(in.Role, req.MinRole) {
		return Decision{Reason: ReasonInsufficientRole, Missing: []string{req.MinRole}}
	}
	if len(req.AllScopes) > 0 {
		var missing []string
		for _, s := range req.AllScopes {
			if !hasScope(in.Scopes, s) {
				missing = append(missing, s)
			}
		}
		if len(missing) > 0 {
			return Decision{Reason: ReasonInsufficientScope, Missing: missing}
		}
	}
	if len(req.AnyScopes) > 0 {
		found := false
		for _, s := range req.AnyScopes {
			if hasScope(in.Scopes, s) {
				found = true
				break
			}
		}
		if !found {
			return Decision{Reason: ReasonInsufficientScope, Missing: req.AnyScopes}
		}
	}
	return Decision{Allowed: true}
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
