package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/constants"
	"helpdesk.com/internal/domain"
	"helpdesk.com/internal/event"
	"helpdesk.com/internal/model"
)

// UserServiceImpl 实现 domain.UserService 接口
type UserServiceImpl struct {
	db       *gorm.DB
	sync     *ProfileSynchronizer
	bus      *event.Bus
	hashCost int
}

// NewUserService 创建用户服务; bus 可以为 nil
func NewUserService(db *gorm.DB, sync *ProfileSynchronizer, bus *event.Bus) *UserServiceImpl {
	return &UserServiceImpl{
		db:       db,
		sync:     sync,
		bus:      bus,
		hashCost: bcrypt.DefaultCost,
	}
}

func (s *UserServiceImpl) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", domain.NewInternalError("failed to hash password", err)
	}
	return string(hashed), nil
}

func (s *UserServiceImpl) loadRecord(tx *gorm.DB, id uint) (*domain.UserRecord, error) {
	var identity model.Identity
	if err := tx.First(&identity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("user not found")
		}
		return nil, domain.NewInternalError("failed to load user", err)
	}
	profile, err := s.sync.find(tx, id)
	if err != nil {
		return nil, domain.NewInternalError("failed to load profile", err)
	}
	return &domain.UserRecord{Identity: identity, Profile: profile}, nil
}

// checkUnique reports taken usernames/emails as field errors.
func (s *UserServiceImpl) checkUnique(tx *gorm.DB, excludeID uint, username, email *string) error {
	fields := map[string]string{}
	check := func(column, field string, value *string) error {
		if value == nil {
			return nil
		}
		var count int64
		if err := tx.Model(&model.Identity{}).
			Where(column+" = ? AND id <> ?", *value, excludeID).
			Count(&count).Error; err != nil {
			return domain.NewInternalError("failed to check uniqueness", err)
		}
		if count > 0 {
			fields[field] = fmt.Sprintf("a user with that %s already exists", field)
		}
		return nil
	}
	if err := check("username", "username", username); err != nil {
		return err
	}
	if err := check("email", "email", email); err != nil {
		return err
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func (s *UserServiceImpl) publish(eventType string, actor auth.Subject, record *domain.UserRecord) {
	change := event.UserChange{
		IdentityID: record.Identity.ID,
		Username:   record.Identity.Username,
	}
	if record.Profile != nil {
		change.Role = string(record.Profile.Role)
	}
	s.bus.Publish(event.Event{
		Type:    eventType,
		Source:  "user_service",
		ActorID: actor.IdentityID,
		Data:    change,
	})
}

// ListUsers 用户列表，按用户名排序。非技术人员只能看到自己
func (s *UserServiceImpl) ListUsers(ctx context.Context, actor auth.Subject, page, pageSize int) ([]domain.UserRecord, int64, error) {
	db := s.db.WithContext(ctx)

	if !auth.CanListAllUsers(actor) {
		record, err := s.loadRecord(db, actor.IdentityID)
		if err != nil {
			return nil, 0, err
		}
		return []domain.UserRecord{*record}, 1, nil
	}

	var total int64
	if err := db.Model(&model.Identity{}).Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count users", err)
	}

	query := db.Order("username ASC")
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	var identities []model.Identity
	if err := query.Find(&identities).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch users", err)
	}
	if len(identities) == 0 {
		return []domain.UserRecord{}, total, nil
	}

	ids := make([]uint, len(identities))
	for i := range identities {
		ids[i] = identities[i].ID
	}
	var profiles []model.Profile
	if err := db.Where("identity_id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch profiles", err)
	}
	byIdentity := make(map[uint]*model.Profile, len(profiles))
	for i := range profiles {
		byIdentity[profiles[i].IdentityID] = &profiles[i]
	}

	records := make([]domain.UserRecord, len(identities))
	for i, identity := range identities {
		records[i] = domain.UserRecord{Identity: identity, Profile: byIdentity[identity.ID]}
	}
	return records, total, nil
}

// GetUser 用户详情
func (s *UserServiceImpl) GetUser(ctx context.Context, actor auth.Subject, id uint) (*domain.UserRecord, error) {
	record, err := s.loadRecord(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewUser(actor, id) {
		return nil, domain.NewPermissionDeniedError("you do not have permission to view this user")
	}
	return record, nil
}

// CreateUser 创建用户，档案由同步器创建后再写入部门与电话
func (s *UserServiceImpl) CreateUser(ctx context.Context, actor auth.Subject, in domain.CreateUserInput) (*domain.UserRecord, error) {
	if !auth.CanCreateUser(actor) {
		return nil, domain.NewPermissionDeniedError("only administrators can create users")
	}
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	hashed, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	department := model.DepartmentOther
	if in.Department != nil {
		department = *in.Department
	}
	phone := ""
	if in.Phone != nil {
		phone = strings.TrimSpace(*in.Phone)
	}

	var record *domain.UserRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkUnique(tx, 0, &in.Username, &in.Email); err != nil {
			return err
		}

		identity := model.Identity{
			Username:  in.Username,
			Email:     in.Email,
			Password:  hashed,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			IsActive:  true,
		}
		if err := tx.Create(&identity).Error; err != nil {
			return domain.NewInternalError("failed to create user", err)
		}

		profile, _, err := s.sync.EnsureProfile(tx, &identity, in.Role)
		if err != nil {
			return domain.NewInternalError("failed to create profile", err)
		}
		if err := tx.Model(profile).Updates(map[string]any{
			"department": department,
			"phone":      phone,
		}).Error; err != nil {
			return domain.NewInternalError("failed to update profile", err)
		}

		record, err = s.loadRecord(tx, identity.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user created", "id", record.Identity.ID, "username", record.Identity.Username, "actor", actor.IdentityID)
	s.publish(constants.EventUserCreated, actor, record)
	return record, nil
}

// UpdateUser 在一个事务内合并更新用户与档案；任一部分失败则全部回滚
func (s *UserServiceImpl) UpdateUser(ctx context.Context, actor auth.Subject, id uint, payload map[string]any) (*domain.UserRecord, error) {
	ip, pp, err := partition(payload)
	if err != nil {
		return nil, err
	}
	if err := ip.validate(); err != nil {
		return nil, err
	}

	var hashed string
	if ip.Password != nil {
		if hashed, err = s.hashPassword(*ip.Password); err != nil {
			return nil, err
		}
	}

	var (
		record   *domain.UserRecord
		promoted bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.loadRecord(tx, id)
		if err != nil {
			return err
		}
		if !auth.CanUpdateUser(actor, id) {
			return domain.NewPermissionDeniedError("you do not have permission to update this user")
		}
		if keys := privilegedKeys(payload); len(keys) > 0 && !auth.CanChangePrivilegedFields(actor) {
			return domain.NewPermissionDeniedError("only administrators can change " + strings.Join(keys, ", "))
		}

		if !ip.empty() {
			if err := s.checkUnique(tx, id, ip.Username, ip.Email); err != nil {
				return err
			}
			updates := map[string]any{}
			if ip.Username != nil {
				updates["username"] = strings.TrimSpace(*ip.Username)
			}
			if ip.Email != nil {
				updates["email"] = strings.TrimSpace(*ip.Email)
			}
			if ip.FirstName != nil {
				updates["first_name"] = *ip.FirstName
			}
			if ip.LastName != nil {
				updates["last_name"] = *ip.LastName
			}
			if ip.IsActive != nil {
				updates["is_active"] = *ip.IsActive
			}
			if ip.Password != nil {
				updates["password"] = hashed
			}
			if err := tx.Model(&current.Identity).Updates(updates).Error; err != nil {
				return domain.NewInternalError("failed to update user", err)
			}
			if _, promoted, err = s.sync.Promote(tx, &current.Identity); err != nil {
				return domain.NewInternalError("failed to synchronize profile", err)
			}
		}

		if !pp.empty() {
			if err := pp.validate(); err != nil {
				return err
			}
			profile, _, err := s.sync.EnsureProfile(tx, &current.Identity, pp.Role)
			if err != nil {
				return domain.NewInternalError("failed to create profile", err)
			}
			updates := map[string]any{}
			if pp.Role != nil {
				updates["role"] = *pp.Role
			}
			if pp.Department != nil {
				updates["department"] = *pp.Department
			}
			if pp.Phone != nil {
				updates["phone"] = strings.TrimSpace(*pp.Phone)
			}
			if pp.PhotoSet {
				if pp.Photo != nil {
					updates["photo"] = *pp.Photo
				} else {
					updates["photo"] = gorm.Expr("NULL")
				}
			}
			if err := tx.Model(profile).Updates(updates).Error; err != nil {
				return domain.NewInternalError("failed to update profile", err)
			}
		}

		record, err = s.loadRecord(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user updated", "id", id, "actor", actor.IdentityID)
	s.publish(constants.EventUserUpdated, actor, record)
	if promoted {
		s.publish(constants.EventUserPromoted, actor, record)
	}
	return record, nil
}

// SetFlags 设置超级用户/员工标记并执行角色提升
func (s *UserServiceImpl) SetFlags(ctx context.Context, actor auth.Subject, id uint, in domain.FlagsInput) (*domain.UserRecord, error) {
	if !auth.HasAdminAccess(actor) {
		return nil, domain.NewPermissionDeniedError("only administrators can change user flags")
	}
	if in.IsSuperuser != nil && !actor.Superuser {
		return nil, domain.NewPermissionDeniedError("only superusers can change the superuser flag")
	}
	if in.IsSuperuser == nil && in.IsStaff == nil {
		return nil, domain.NewBadRequestError("no flags supplied")
	}

	var (
		record   *domain.UserRecord
		promoted bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.loadRecord(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if in.IsSuperuser != nil {
			updates["is_superuser"] = *in.IsSuperuser
			current.Identity.IsSuperuser = *in.IsSuperuser
		}
		if in.IsStaff != nil {
			updates["is_staff"] = *in.IsStaff
			current.Identity.IsStaff = *in.IsStaff
		}
		if err := tx.Model(&current.Identity).Updates(updates).Error; err != nil {
			return domain.NewInternalError("failed to update flags", err)
		}
		if _, promoted, err = s.sync.Promote(tx, &current.Identity); err != nil {
			return domain.NewInternalError("failed to synchronize profile", err)
		}

		record, err = s.loadRecord(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user flags changed", "id", id, "actor", actor.IdentityID,
		"is_superuser", record.Identity.IsSuperuser, "is_staff", record.Identity.IsStaff)
	s.publish(constants.EventUserUpdated, actor, record)
	if promoted {
		s.publish(constants.EventUserPromoted, actor, record)
	}
	return record, nil
}

// DeleteUser 删除用户。超级用户和当前用户自身不可删除
func (s *UserServiceImpl) DeleteUser(ctx context.Context, actor auth.Subject, id uint) error {
	if !auth.CanDeleteUser(actor) {
		return domain.NewPermissionDeniedError("only administrators can delete users")
	}

	var record *domain.UserRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = s.loadRecord(tx, id)
		if err != nil {
			return err
		}
		if record.Identity.IsSuperuser {
			return domain.NewForbiddenActionError("cannot delete a superuser")
		}
		if record.Identity.ID == actor.IdentityID {
			return domain.NewForbiddenActionError("you cannot delete your own account")
		}

		if err := tx.Where("identity_id = ?", id).Delete(&model.Profile{}).Error; err != nil {
			return domain.NewInternalError("failed to delete profile", err)
		}
		if err := tx.Delete(&model.Identity{}, id).Error; err != nil {
			return domain.NewInternalError("failed to delete user", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("user deleted", "id", id, "actor", actor.IdentityID)
	s.publish(constants.EventUserDeleted, actor, record)
	return nil
}

// LoadUser 加载用户，不做权限检查
func (s *UserServiceImpl) LoadUser(ctx context.Context, id uint) (*domain.UserRecord, error) {
	return s.loadRecord(s.db.WithContext(ctx), id)
}

// EnsureSuperuser checks if any identity exists, if not creates the configured superuser.
func (s *UserServiceImpl) EnsureSuperuser(ctx context.Context, cfg config.BootstrapConfig) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Identity{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count identities: %w", err)
	}
	if count > 0 {
		return nil
	}
	if cfg.AdminPassword == "" {
		slog.Warn("no users found and bootstrap.admin_password is empty, skipping superuser creation")
		return nil
	}

	hashed, err := s.hashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		identity := model.Identity{
			Username:    cfg.AdminUsername,
			Email:       cfg.AdminEmail,
			Password:    hashed,
			IsActive:    true,
			IsSuperuser: true,
			IsStaff:     true,
		}
		if err := tx.Create(&identity).Error; err != nil {
			return fmt.Errorf("create superuser: %w", err)
		}
		if _, _, err := s.sync.EnsureProfile(tx, &identity, nil); err != nil {
			return fmt.Errorf("create superuser profile: %w", err)
		}
		slog.Info("created bootstrap superuser", "username", identity.Username)
		return nil
	})
}

// 确保实现了接口
var _ domain.UserService = (*UserServiceImpl)(nil)
