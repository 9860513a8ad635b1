// Package authz evaluates role and scope requirements against a caller's
// verified identity. The role hierarchy and scope table are fixed at compile
// time; evaluation is a pure read with no storage access.
package authz

// Roles, in ascending order of privilege.
const (
	RoleViewer    = "viewer"
	RoleDeveloper = "developer"
	RoleAdmin     = "admin"
	RoleOwner     = "owner"
)

// Scopes.
const (
	ScopeModelsRead       = "models:read"
	ScopeModelsWrite      = "models:write"
	ScopeDeploymentsRead  = "deployments:read"
	ScopeDeploymentsWrite = "deployments:write"
	ScopeUsageRead        = "usage:read"
	ScopeKeysRead         = "keys:read"
	ScopeKeysWrite        = "keys:write"
	ScopeMembersManage    = "members:manage"
	ScopeSessionsManage   = "sessions:manage"
	ScopeBillingRead      = "billing:read"
	ScopeBillingManage    = "billing:manage"
	ScopeTenantDelete     = "tenant:delete"
)

// rank orders roles. Unknown roles rank 0 and never satisfy anything.
var rank = map[string]int{
	RoleViewer:    1,
	RoleDeveloper: 2,
	RoleAdmin:     3,
	RoleOwner:     4,
}

// grants is the scope table. Each role extends the previous one; the table
// is built incrementally so the hierarchy stays monotonic by construction.
var grants = buildGrants()

func buildGrants() map[string][]string {
	viewer := []string{
		ScopeModelsRead,
		ScopeDeploymentsRead,
		ScopeUsageRead,
	}
	developer := append(append([]string{}, viewer...),
		ScopeModelsWrite,
		ScopeDeploymentsWrite,
		ScopeKeysRead,
		ScopeKeysWrite,
	)
	admin := append(append([]string{}, developer...),
		ScopeMembersManage,
		ScopeSessionsManage,
		ScopeBillingRead,
	)
	owner := append(append([]string{}, admin...),
		ScopeBillingManage,
		ScopeTenantDelete,
	)
	return map[string][]string{
		RoleViewer:    viewer,
		RoleDeveloper: developer,
		RoleAdmin:     admin,
		RoleOwner:     owner,
	}
}

// KnownRole reports whether role is part of the hierarchy.
func KnownRole(role string) bool {
	_, ok := rank[role]
	return ok
}

// RoleAtLeast reports whether role meets or exceeds min in the hierarchy.
// Unknown roles never qualify.
func RoleAtLeast(role, min string) bool {
	r, ok := rank[role]
	if !ok {
		return false
	}
	m, ok := rank[min]
	if !ok {
		return false
	}
	return r >= m
}

// ScopesFor returns a copy of the role's granted scopes, or nil for an
// unknown role.
func ScopesFor(role string) []string {
	g, ok := grants[role]
	if !ok {
		return nil
	}
	out := make([]string, len(g))
	copy(out, g)
	return out
}

// RoleHasScope reports whether the role's grant set contains scope.
func RoleHasScope(role, scope string) bool {
	for _, s := range grants[role] {
		if s == scope {
			return true
		}
	}
	return false
}
