package infra_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/infra"
	"helpdesk.com/internal/infra/infratest"
	"helpdesk.com/internal/model"
)

func TestNewDBClientRejectsUnknownDriver(t *testing.T) {
	_, err := infra.NewDBClient(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestProfileCascadesOnIdentityDelete(t *testing.T) {
	db := infratest.NewDB(t)

	identity := model.Identity{Username: "dave", Email: "dave@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&identity).Error)
	require.NoError(t, db.Create(&model.Profile{IdentityID: identity.ID, Role: model.RoleUser, Department: model.DepartmentOther}).Error)

	require.NoError(t, db.Delete(&model.Identity{}, identity.ID).Error)

	var count int64
	require.NoError(t, db.Model(&model.Profile{}).Where("identity_id = ?", identity.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestProfileUniquePerIdentity(t *testing.T) {
	db := infratest.NewDB(t)

	identity := model.Identity{Username: "erin", Email: "erin@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&identity).Error)
	require.NoError(t, db.Create(&model.Profile{IdentityID: identity.ID, Role: model.RoleUser, Department: model.DepartmentOther}).Error)

	err := db.Create(&model.Profile{IdentityID: identity.ID, Role: model.RoleAdmin, Department: model.DepartmentIT}).Error
	require.Error(t, err)
}
