package api

import (
	"strings"
	"time"

	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/domain"
	"helpdesk.com/internal/model"
)

// ProfileView 档案视图
type ProfileView struct {
	Role              model.Role       `json:"role"`
	RoleDisplay       string           `json:"role_display"`
	Department        model.Department `json:"department"`
	DepartmentDisplay string           `json:"department_display"`
	Phone             string           `json:"phone"`
	Photo             *string          `json:"photo"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// UserView 用户与档案的合并视图
type UserView struct {
	ID          uint         `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	FullName    string       `json:"full_name"`
	IsActive    bool         `json:"is_active"`
	IsSuperuser bool         `json:"is_superuser"`
	IsStaff     bool         `json:"is_staff"`
	DateJoined  time.Time    `json:"date_joined"`
	Profile     *ProfileView `json:"profile"`
}

// MeView is the caller's own view plus what they may do.
type MeView struct {
	UserView
	Capabilities auth.Capabilities `json:"capabilities"`
}

// ViewBuilder renders records; photo references become absolute URLs.
type ViewBuilder struct {
	mediaBase string
}

func NewViewBuilder(server config.ServerConfig, media config.MediaConfig) *ViewBuilder {
	base := strings.TrimRight(server.BaseURL, "/")
	prefix := "/" + strings.Trim(media.URLPrefix, "/")
	if prefix != "/" {
		prefix += "/"
	}
	return &ViewBuilder{mediaBase: base + prefix}
}

func (b *ViewBuilder) photoURL(photo *string) *string {
	if photo == nil || *photo == "" {
		return nil
	}
	if strings.HasPrefix(*photo, "http://") || strings.HasPrefix(*photo, "https://") {
		return photo
	}
	u := b.mediaBase + strings.TrimLeft(*photo, "/")
	return &u
}

func (b *ViewBuilder) User(r *domain.UserRecord) UserView {
	view := UserView{
		ID:          r.Identity.ID,
		Username:    r.Identity.Username,
		Email:       r.Identity.Email,
		FirstName:   r.Identity.FirstName,
		LastName:    r.Identity.LastName,
		FullName:    r.Identity.FullName(),
		IsActive:    r.Identity.IsActive,
		IsSuperuser: r.Identity.IsSuperuser,
		IsStaff:     r.Identity.IsStaff,
		DateJoined:  r.Identity.DateJoined,
	}
	if p := r.Profile; p != nil {
		view.Profile = &ProfileView{
			Role:              p.Role,
			RoleDisplay:       p.Role.Display(),
			Department:        p.Department,
			DepartmentDisplay: p.Department.Display(),
			Phone:             p.Phone,
			Photo:             b.photoURL(p.Photo),
			CreatedAt:         p.CreatedAt,
			UpdatedAt:         p.UpdatedAt,
		}
	}
	return view
}

func (b *ViewBuilder) Users(records []domain.UserRecord) []UserView {
	views := make([]UserView, len(records))
	for i := range records {
		views[i] = b.User(&records[i])
	}
	return views
}
