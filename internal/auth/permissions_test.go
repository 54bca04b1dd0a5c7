package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"helpdesk.com/internal/model"
)

func TestHasAdminAccess(t *testing.T) {
	t.Parallel()

	t.Run("admin role regardless of superuser flag", func(t *testing.T) {
		require.True(t, HasAdminAccess(Subject{Role: model.RoleAdmin}))
		require.True(t, HasAdminAccess(Subject{Role: model.RoleAdmin, Superuser: true}))
	})

	t.Run("superuser regardless of role", func(t *testing.T) {
		for _, r := range model.Roles {
			require.True(t, HasAdminAccess(Subject{Role: r, Superuser: true}), r)
		}
	})

	t.Run("other roles denied", func(t *testing.T) {
		require.False(t, HasAdminAccess(Subject{Role: model.RoleManager}))
		require.False(t, HasAdminAccess(Subject{Role: model.RoleTechnician}))
		require.False(t, HasAdminAccess(Subject{Role: model.RoleUser}))
	})
}

func TestHasTechnicianAccess(t *testing.T) {
	t.Parallel()

	require.True(t, HasTechnicianAccess(Subject{Role: model.RoleTechnician}))
	require.True(t, HasTechnicianAccess(Subject{Role: model.RoleManager}))
	require.True(t, HasTechnicianAccess(Subject{Role: model.RoleAdmin}))
	require.True(t, HasTechnicianAccess(Subject{Role: model.RoleUser, Superuser: true}))
	require.False(t, HasTechnicianAccess(Subject{Role: model.RoleUser}))
}

func TestCanManageIncidents(t *testing.T) {
	t.Parallel()

	t.Run("defaults to manager and admin", func(t *testing.T) {
		require.True(t, CanManageIncidents(Subject{Role: model.RoleManager}, nil))
		require.True(t, CanManageIncidents(Subject{Role: model.RoleAdmin}, nil))
		require.False(t, CanManageIncidents(Subject{Role: model.RoleTechnician}, nil))
		require.False(t, CanManageIncidents(Subject{Role: model.RoleUser}, nil))
	})

	t.Run("configured role set", func(t *testing.T) {
		roles := []model.Role{model.RoleTechnician}
		require.True(t, CanManageIncidents(Subject{Role: model.RoleTechnician}, roles))
		require.False(t, CanManageIncidents(Subject{Role: model.RoleManager}, roles))
	})

	t.Run("superuser always", func(t *testing.T) {
		require.True(t, CanManageIncidents(Subject{Role: model.RoleUser, Superuser: true}, nil))
	})
}

func TestUserObjectRules(t *testing.T) {
	t.Parallel()

	admin := Subject{IdentityID: 1, Role: model.RoleAdmin}
	tech := Subject{IdentityID: 2, Role: model.RoleTechnician}
	user := Subject{IdentityID: 3, Role: model.RoleUser}

	require.True(t, CanCreateUser(admin))
	require.False(t, CanCreateUser(tech))
	require.True(t, CanDeleteUser(admin))
	require.False(t, CanDeleteUser(user))

	require.True(t, CanViewUser(tech, 99))
	require.True(t, CanViewUser(user, 3))
	require.False(t, CanViewUser(user, 99))

	require.True(t, CanUpdateUser(admin, 99))
	require.True(t, CanUpdateUser(user, 3))
	require.False(t, CanUpdateUser(tech, 99))

	require.True(t, CanListAllUsers(tech))
	require.False(t, CanListAllUsers(user))
	require.False(t, CanChangePrivilegedFields(tech))
}

func TestSubjectOf(t *testing.T) {
	t.Parallel()

	identity := &model.Identity{ID: 7, IsSuperuser: true}
	s := SubjectOf(identity, nil)
	require.Equal(t, uint(7), s.IdentityID)
	require.Equal(t, model.RoleUser, s.Role)
	require.Equal(t, model.RoleAdmin, s.EffectiveRole())

	s = SubjectOf(&model.Identity{ID: 8}, &model.Profile{Role: model.RoleTechnician})
	require.Equal(t, model.RoleTechnician, s.EffectiveRole())
}

func TestParseRoles(t *testing.T) {
	t.Parallel()

	require.Equal(t, []model.Role{model.RoleManager, model.RoleAdmin}, ParseRoles([]string{"manager", "bogus", "admin"}))
	require.Empty(t, ParseRoles(nil))
}
