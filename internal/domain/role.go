package domain

// Role enumerates account roles on the platform.
type Role string

const (
	RoleStudent    Role = "student"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// DefaultRoute is where unrecognised roles land.
const DefaultRoute = "/login"

var roleRoutes = map[Role]string{
	RoleStudent:    "/student/dashboard",
	RoleSupervisor: "/supervisor/dashboard",
	RoleAdmin:      "/admin/dashboard",
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRoutes[r]
	return ok
}

// RedirectFor maps a role to its canonical landing route. Total over any
// input: unknown roles fall back to DefaultRoute. The browser client applies
// the same mapping after login, so the two must stay in sync.
func RedirectFor(role Role) string {
	if route, ok := roleRoutes[role]; ok {
		return route
	}
	return DefaultRoute
}
