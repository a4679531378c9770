package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSatisfiesMinimumRole_Hierarchy(t *testing.T) {
	ordered := []Role{RoleViewer, RoleEditor, RoleAdmin}
	for i, a := range ordered {
		for j, b := range ordered {
			switch {
			case i > j:
				assert.True(t, SatisfiesMinimumRole(a, b), "%s >= %s", a, b)
				assert.False(t, SatisfiesMinimumRole(b, a), "%s < %s", b, a)
			case i == j:
				assert.True(t, SatisfiesMinimumRole(a, b))
			}
		}
	}
}

func TestSatisfiesMinimumRole_UnknownRoles(t *testing.T) {
	assert.False(t, SatisfiesMinimumRole("superuser", RoleViewer))
	assert.False(t, SatisfiesMinimumRole(RoleAdmin, "superuser"))
	assert.False(t, SatisfiesMinimumRole("", ""))
}

func TestHasCapability_Matrix(t *testing.T) {
	want := map[Role]map[Capability]bool{
		RoleAdmin:  {CanEdit: true, CanApprove: true, CanDelete: true, CanViewDashboard: true, CanManageUsers: true},
		RoleEditor: {CanEdit: true, CanApprove: false, CanDelete: false, CanViewDashboard: true, CanManageUsers: false},
		RoleViewer: {CanEdit: false, CanApprove: false, CanDelete: false, CanViewDashboard: true, CanManageUsers: false},
	}
	for r, caps := range want {
		for c, v := range caps {
			assert.Equal(t, v, HasCapability(r, c), "%s.%s", r, c)
		}
		assert.Equal(t, caps, Capabilities(r))
	}
	assert.False(t, HasCapability("ghost", CanViewDashboard))
	assert.False(t, HasCapability(RoleAdmin, "canLaunchRockets"))
}

func TestCapabilities_HigherRoleIsSuperset(t *testing.T) {
	pairs := [][2]Role{{RoleAdmin, RoleEditor}, {RoleEditor, RoleViewer}}
	for _, p := range pairs {
		for _, c := range AllCapabilities {
			if HasCapability(p[1], c) {
				assert.True(t, HasCapability(p[0], c), "%s should have %s", p[0], c)
			}
		}
	}
}

func TestCapabilities_ReturnsCopy(t *testing.T) {
	caps := Capabilities(RoleViewer)
	caps[CanManageUsers] = true
	assert.False(t, HasCapability(RoleViewer, CanManageUsers))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("root")
	assert.False(t, ok)
}

func TestCanAssignRole(t *testing.T) {
	assert.True(t, CanAssignRole(RoleAdmin, RoleEditor))
	assert.False(t, CanAssignRole(RoleAdmin, "root"))
	assert.False(t, CanAssignRole(RoleEditor, RoleViewer))
}

func TestRoleDisplay(t *testing.T) {
	assert.Equal(t, "Administrador", RoleName(RoleAdmin))
	assert.Equal(t, "Desconocido", RoleName("x"))
	assert.NotEmpty(t, RoleDescription(RoleEditor))
}
