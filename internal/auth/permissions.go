package auth

import "strings"

// Routes not listed here are open to every staff role. "*" matches exactly
// one path segment.
var apiRoleMap = map[string][]UserRole{
	"POST /api/staff/tables":                      {RoleAdmin, RoleCashier},
	"DELETE /api/staff/tables/*":                  {RoleAdmin, RoleCashier},
	"POST /api/staff/tables/*/reserve":            {RoleAdmin, RoleCashier},
	"POST /api/staff/tables/*/cancel-reservation": {RoleAdmin, RoleCashier},
	"GET /api/staff/orders/history":               {RoleAdmin, RoleCashier},
	"POST /api/staff/orders/*/pay":                {RoleAdmin, RoleCashier},
}

// GetRolesForAPI returns the roles allowed on method+path, or nil when any
// staff role may call it. Literal segments win over wildcards.
func GetRolesForAPI(path string, method string) []UserRole {
	method = strings.ToUpper(strings.TrimSpace(method))
	segments := splitPath(path)

	var best []UserRole
	bestScore := -1
	for key, roles := range apiRoleMap {
		parts := strings.SplitN(key, " ", 2)
		if len(parts) != 2 || parts[0] != method {
			continue
		}
		score, ok := matchSegments(splitPath(parts[1]), segments)
		if ok && score > bestScore {
			best = roles
			bestScore = score
		}
	}
	return best
}

// Allowed reports whether role may call method+path.
func Allowed(role UserRole, path string, method string) bool {
	if !role.IsStaff() {
		return false
	}
	roles := GetRolesForAPI(path, method)
	if roles == nil {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func matchSegments(pattern, segments []string) (int, bool) {
	if len(pattern) != len(segments) {
		return 0, false
	}
	score := 0
	for i, p := range pattern {
		switch {
		case p == "*":
		case p == segments[i]:
			score++
		default:
			return 0, false
		}
	}
	return score, true
}
