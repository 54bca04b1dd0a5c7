package auth

import "helpdesk.com/internal/model"

// Subject is an immutable snapshot of what authorization decisions depend on.
type Subject struct {
	IdentityID uint
	Role       model.Role
	Superuser  bool
}

// SubjectOf snapshots an identity and its (possibly missing) profile.
// A missing profile is treated as the least privileged role.
func SubjectOf(identity *model.Identity, profile *model.Profile) Subject {
	s := Subject{Role: model.RoleUser}
	if identity != nil {
		s.IdentityID = identity.ID
		s.Superuser = identity.IsSuperuser
	}
	if profile != nil {
		s.Role = profile.Role
	}
	return s
}

// EffectiveRole is the role used for coarse route policies: superusers act as admins.
func (s Subject) EffectiveRole() model.Role {
	if s.Superuser {
		return model.RoleAdmin
	}
	return s.Role
}

func HasAdminAccess(s Subject) bool {
	return s.Role == model.RoleAdmin || s.Superuser
}

func HasTechnicianAccess(s Subject) bool {
	switch s.Role {
	case model.RoleTechnician, model.RoleManager, model.RoleAdmin:
		return true
	}
	return s.Superuser
}

// DefaultIncidentManagerRoles is used when no role set is configured.
var DefaultIncidentManagerRoles = []model.Role{model.RoleManager, model.RoleAdmin}

func CanManageIncidents(s Subject, roles []model.Role) bool {
	if s.Superuser {
		return true
	}
	if len(roles) == 0 {
		roles = DefaultIncidentManagerRoles
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// Object-level rules for the user administration endpoints.

func CanListAllUsers(actor Subject) bool {
	return HasTechnicianAccess(actor)
}

func CanCreateUser(actor Subject) bool {
	return HasAdminAccess(actor)
}

func CanDeleteUser(actor Subject) bool {
	return HasAdminAccess(actor)
}

func CanViewUser(actor Subject, targetID uint) bool {
	return HasTechnicianAccess(actor) || actor.IdentityID == targetID
}

func CanUpdateUser(actor Subject, targetID uint) bool {
	return HasAdminAccess(actor) || actor.IdentityID == targetID
}

// CanChangePrivilegedFields guards role, is_active and the superuser/staff flags.
func CanChangePrivilegedFields(actor Subject) bool {
	return HasAdminAccess(actor)
}

// Capabilities is the serializable summary of a subject's permissions.
type Capabilities struct {
	AdminAccess      bool `json:"admin_access"`
	TechnicianAccess bool `json:"technician_access"`
	ManageIncidents  bool `json:"manage_incidents"`
}

func CapabilitiesOf(s Subject, incidentRoles []model.Role) Capabilities {
	return Capabilities{
		AdminAccess:      HasAdminAccess(s),
		TechnicianAccess: HasTechnicianAccess(s),
		ManageIncidents:  CanManageIncidents(s, incidentRoles),
	}
}

// ParseRoles converts configured role names, dropping unknown values.
func ParseRoles(names []string) []model.Role {
	roles := make([]model.Role, 0, len(names))
	for _, n := range names {
		if r := model.Role(n); r.Valid() {
			roles = append(roles, r)
		}
	}
	return roles
}
