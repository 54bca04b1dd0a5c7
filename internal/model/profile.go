package model

import "time"

// Role is the single-valued authorization tier of a profile.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleManager    Role = "manager"
	RoleUser       Role = "user"
)

var roleLabels = map[Role]string{
	RoleAdmin:      "Administrator",
	RoleTechnician: "Technician",
	RoleManager:    "Manager",
	RoleUser:       "User",
}

// Roles lists every valid role in display order.
var Roles = []Role{RoleAdmin, RoleTechnician, RoleManager, RoleUser}

func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

func (r Role) Display() string {
	return roleLabels[r]
}

// Department is the organisational unit a profile belongs to.
type Department string

const (
	DepartmentIT         Department = "it"
	DepartmentHR         Department = "hr"
	DepartmentFinance    Department = "finance"
	DepartmentOperations Department = "operations"
	DepartmentSupport    Department = "support"
	DepartmentOther      Department = "other"
)

var departmentLabels = map[Department]string{
	DepartmentIT:         "IT",
	DepartmentHR:         "Human Resources",
	DepartmentFinance:    "Finance",
	DepartmentOperations: "Operations",
	DepartmentSupport:    "Customer Support",
	DepartmentOther:      "Other",
}

var Departments = []Department{
	DepartmentIT, DepartmentHR, DepartmentFinance,
	DepartmentOperations, DepartmentSupport, DepartmentOther,
}

func (d Department) Valid() bool {
	_, ok := departmentLabels[d]
	return ok
}

func (d Department) Display() string {
	return departmentLabels[d]
}

// DefaultPhoto is the placeholder reference assigned to new profiles.
const DefaultPhoto = "profile_photos/default.png"

// Profile holds the professional metadata of an identity (one-to-one).
type Profile struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	IdentityID uint       `gorm:"uniqueIndex;not null" json:"identity_id"`
	Identity   *Identity  `gorm:"foreignKey:IdentityID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Role       Role       `gorm:"size:20;not null;default:'user'" json:"role"`
	Department Department `gorm:"size:20;not null;default:'other'" json:"department"`
	Phone      string     `gorm:"size:20" json:"phone"`
	// Photo is a storage reference; nil means no photo at all.
	Photo     *string   `gorm:"size:255" json:"photo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleFromFlags derives the initial role from identity flags.
func RoleFromFlags(superuser, staff bool) Role {
	switch {
	case superuser:
		return RoleAdmin
	case staff:
		return RoleManager
	default:
		return RoleUser
	}
}
