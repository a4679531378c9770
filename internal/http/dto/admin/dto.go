// Package admin contiene los DTOs de /api/admin.
package admin

type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

type Policy struct {
	Max           int    `json:"max"`
	WindowSeconds int64  `json:"windowSeconds"`
	Message       string `json:"message,omitempty"`
}

// LimiterDashboard reporta el modo del limiter y su ocupación.
type LimiterDashboard struct {
	Mode        string            `json:"mode"`
	Distributed bool              `json:"distributedConfigured"`
	TrackedKeys int               `json:"trackedKeys"`
	MaxKeys     int               `json:"maxKeys"`
	Fallbacks   uint64            `json:"fallbacks"`
	Policies    map[string]Policy `json:"policies"`
}
