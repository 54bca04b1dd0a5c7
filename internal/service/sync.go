package service

import (
	"log/slog"

	"gorm.io/gorm"
	"helpdesk.com/internal/model"
)

// ProfileSynchronizer keeps the profile in step with identity writes. The
// service layer calls it explicitly inside the write transaction.
type ProfileSynchronizer struct {
	defaultPhoto string
}

func NewProfileSynchronizer(defaultPhoto string) *ProfileSynchronizer {
	return &ProfileSynchronizer{defaultPhoto: defaultPhoto}
}

func (s *ProfileSynchronizer) find(tx *gorm.DB, identityID uint) (*model.Profile, error) {
	// Find 而非 First: 档案缺失是正常情况，不应作为错误记录
	var profile model.Profile
	result := tx.Where("identity_id = ?", identityID).Limit(1).Find(&profile)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &profile, nil
}

// EnsureProfile creates the identity's profile if it has none. The role is
// derived from the identity flags unless explicitRole is given. It reports
// whether a profile was created.
func (s *ProfileSynchronizer) EnsureProfile(tx *gorm.DB, identity *model.Identity, explicitRole *model.Role) (*model.Profile, bool, error) {
	existing, err := s.find(tx, identity.ID)
	if err != nil || existing != nil {
		return existing, false, err
	}

	role := model.RoleFromFlags(identity.IsSuperuser, identity.IsStaff)
	if explicitRole != nil {
		role = *explicitRole
	}

	profile := &model.Profile{
		IdentityID: identity.ID,
		Role:       role,
		Department: model.DepartmentOther,
	}
	if s.defaultPhoto != "" {
		photo := s.defaultPhoto
		profile.Photo = &photo
	}
	if err := tx.Create(profile).Error; err != nil {
		return nil, false, err
	}

	slog.Debug("profile created", "identity_id", identity.ID, "role", role)
	return profile, true, nil
}

// PromotedRole applies the one-way promotion rules: superusers become admin,
// staff become manager unless already admin or manager. It never demotes.
func PromotedRole(current model.Role, superuser, staff bool) (model.Role, bool) {
	if superuser {
		if current != model.RoleAdmin {
			return model.RoleAdmin, true
		}
		return current, false
	}
	if staff && current != model.RoleAdmin && current != model.RoleManager {
		return model.RoleManager, true
	}
	return current, false
}

// Promote runs the promotion rules after an identity update. A missing
// profile is a no-op. It reports whether the role changed.
func (s *ProfileSynchronizer) Promote(tx *gorm.DB, identity *model.Identity) (*model.Profile, bool, error) {
	profile, err := s.find(tx, identity.ID)
	if err != nil || profile == nil {
		return profile, false, err
	}

	role, changed := PromotedRole(profile.Role, identity.IsSuperuser, identity.IsStaff)
	if !changed {
		return profile, false, nil
	}

	if err := tx.Model(profile).Update("role", role).Error; err != nil {
		return nil, false, err
	}
	slog.Info("profile promoted", "identity_id", identity.ID, "from", profile.Role, "to", role)
	profile.Role = role
	return profile, true, nil
}
