// Package rbac resuelve roles a capacidades con una jerarquía estricta
// admin > editor > viewer. La matriz es fija: no hay overrides por capacidad.
package rbac

import "strings"

// Role es un rol del sistema.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Capability es un permiso booleano.
type Capability string

const (
	CanEdit          Capability = "canEdit"
	CanApprove       Capability = "canApprove"
	CanDelete        Capability = "canDelete"
	CanViewDashboard Capability = "canViewDashboard"
	CanManageUsers   Capability = "canManageUsers"
)

// AllCapabilities en orden estable (para serializar).
var AllCapabilities = []Capability{CanEdit, CanApprove, CanDelete, CanViewDashboard, CanManageUsers}

// rank: mayor número, más privilegio. 0 = rol desconocido.
var rank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

var matrix = map[Role]map[Capability]bool{
	RoleAdmin: {
		CanEdit:          true,
		CanApprove:       true,
		CanDelete:        true,
		CanViewDashboard: true,
		CanManageUsers:   true,
	},
	RoleEditor: {
		CanEdit:          true,
		CanApprove:       false,
		CanDelete:        false,
		CanViewDashboard: true,
		CanManageUsers:   false,
	},
	RoleViewer: {
		CanEdit:          false,
		CanApprove:       false,
		CanDelete:        false,
		CanViewDashboard: true,
		CanManageUsers:   false,
	},
}

// ParseRole normaliza un string. ok=false si no es un rol conocido.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := rank[r]
	return r, ok
}

// Valid indica si el rol existe en la jerarquía.
func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

// Rank devuelve la posición en la jerarquía (0 si es desconocido).
func Rank(r Role) int { return rank[r] }

// HasCapability es un lookup puro. Roles desconocidos no tienen capacidades.
func HasCapability(r Role, c Capability) bool {
	return matrix[r][c]
}

// SatisfiesMinimumRole compara rangos: un rol superior satisface uno inferior.
// Un rol desconocido nunca satisface nada, ni siquiera otro desconocido.
func SatisfiesMinimumRole(actual, required Role) bool {
	a, ok := rank[actual]
	if !ok {
		return false
	}
	req, ok := rank[required]
	if !ok {
		return false
	}
	return a >= req
}

// Capabilities devuelve una copia del mapa de capacidades del rol.
func Capabilities(r Role) map[Capability]bool {
	out := make(map[Capability]bool, len(AllCapabilities))
	for _, c := range AllCapabilities {
		out[c] = matrix[r][c]
	}
	return out
}

// CanAssignRole: solo un admin puede asignar roles, y solo roles válidos.
func CanAssignRole(actor, target Role) bool {
	return actor == RoleAdmin && target.Valid()
}

// RoleName devuelve el nombre para mostrar.
func RoleName(r Role) string {
	switch r {
	case RoleAdmin:
		return "Administrador"
	case RoleEditor:
		return "Editor"
	case RoleViewer:
		return "Visualizador"
	default:
		return "Desconocido"
	}
}

// RoleDescription describe el alcance del rol.
func RoleDescription(r Role) string {
	switch r {
	case RoleAdmin:
		return "Acceso completo: gestión de usuarios, contenido y configuración."
	case RoleEditor:
		return "Puede editar contenido; no aprueba ni borra."
	case RoleViewer:
		return "Acceso de solo lectura al panel."
	default:
		return ""
	}
}
