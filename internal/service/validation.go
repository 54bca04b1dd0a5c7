package service

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"helpdesk.com/internal/domain"
	"helpdesk.com/internal/model"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 150
	maxNameLength     = 150
	maxPhoneLength    = 20
	maxPhotoLength    = 255
)

// Field allow-lists for the combined update payload.
var (
	identityFields = []string{"username", "email", "first_name", "last_name", "is_active", "password"}
	profileFields  = []string{"role", "phone", "department", "photo"}
)

func validRole(value interface{}) error {
	var r model.Role
	switch v := value.(type) {
	case *model.Role:
		if v == nil {
			return nil
		}
		r = *v
	case model.Role:
		r = v
	default:
		return nil
	}
	if !r.Valid() {
		return fmt.Errorf("%q is not a valid choice", string(r))
	}
	return nil
}

func validDepartment(value interface{}) error {
	var d model.Department
	switch v := value.(type) {
	case *model.Department:
		if v == nil {
			return nil
		}
		d = *v
	case model.Department:
		d = v
	default:
		return nil
	}
	if !d.Valid() {
		return fmt.Errorf("%q is not a valid choice", string(d))
	}
	return nil
}

func stringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

// fieldErrors flattens ozzo errors into the per-field map carried by AppError.
func fieldErrors(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return domain.NewInternalError("validation failed", err)
	}
	fields := make(map[string]string, len(verrs))
	for name, ferr := range verrs {
		if ferr != nil {
			fields[name] = ferr.Error()
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return domain.NewValidationError(fields)
}

func validateCreate(in *domain.CreateUserInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	return fieldErrors(validation.ValidateStruct(in,
		validation.Field(&in.Username, validation.Required, validation.Length(1, maxUsernameLength)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(&in.PasswordConfirm, validation.Required, validation.By(stringEquals(in.Password))),
		validation.Field(&in.FirstName, validation.Length(0, maxNameLength)),
		validation.Field(&in.LastName, validation.Length(0, maxNameLength)),
		validation.Field(&in.Role, validation.By(validRole)),
		validation.Field(&in.Phone, validation.Length(0, maxPhoneLength)),
		validation.Field(&in.Department, validation.By(validDepartment)),
	))
}

// identityPatch is the identity portion of a combined update.
type identityPatch struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsActive  *bool   `json:"is_active"`
	Password  *string `json:"password"`
}

func (p *identityPatch) empty() bool {
	return p.Username == nil && p.Email == nil && p.FirstName == nil &&
		p.LastName == nil && p.IsActive == nil && p.Password == nil
}

func (p *identityPatch) validate() error {
	for _, s := range []*string{p.Username, p.Email} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	return fieldErrors(validation.ValidateStruct(p,
		validation.Field(&p.Username, validation.NilOrNotEmpty, validation.Length(1, maxUsernameLength)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&p.FirstName, validation.Length(0, maxNameLength)),
		validation.Field(&p.LastName, validation.Length(0, maxNameLength)),
		validation.Field(&p.Password, validation.NilOrNotEmpty, validation.Length(minPasswordLength, 0)),
	))
}

// profilePatch is the profile portion of a combined update. Photo may be
// explicitly cleared, so presence is tracked separately from the value.
type profilePatch struct {
	Role       *model.Role       `json:"role"`
	Phone      *string           `json:"phone"`
	Department *model.Department `json:"department"`
	Photo      *string           `json:"photo"`
	PhotoSet   bool              `json:"-"`
}

func (p *profilePatch) empty() bool {
	return p.Role == nil && p.Phone == nil && p.Department == nil && !p.PhotoSet
}

func (p *profilePatch) validate() error {
	return fieldErrors(validation.ValidateStruct(p,
		validation.Field(&p.Role, validation.By(validRole)),
		validation.Field(&p.Phone, validation.Length(0, maxPhoneLength)),
		validation.Field(&p.Department, validation.By(validDepartment)),
		validation.Field(&p.Photo, validation.Length(0, maxPhotoLength)),
	))
}

// splitPayload partitions a raw payload by the allow-lists. Keys outside
// both lists are dropped.
func splitPayload(payload map[string]any) (identity, profile map[string]any) {
	identity, profile = map[string]any{}, map[string]any{}
	for _, k := range identityFields {
		if v, ok := payload[k]; ok {
			identity[k] = v
		}
	}
	for _, k := range profileFields {
		if v, ok := payload[k]; ok {
			profile[k] = v
		}
	}
	return identity, profile
}

// partition decodes both portions of a combined update. Values of the wrong
// JSON type are reported per field.
func partition(payload map[string]any) (*identityPatch, *profilePatch, error) {
	identity, profile := splitPayload(payload)
	ip := &identityPatch{}
	pp := &profilePatch{}
	fields := map[string]string{}

	str := func(m map[string]any, key string) *string {
		v, ok := m[key]
		if !ok {
			return nil
		}
		s, ok := v.(string)
		if !ok {
			fields[key] = "must be a string"
			return nil
		}
		return &s
	}

	ip.Username = str(identity, "username")
	ip.Email = str(identity, "email")
	ip.FirstName = str(identity, "first_name")
	ip.LastName = str(identity, "last_name")
	ip.Password = str(identity, "password")
	if v, ok := identity["is_active"]; ok {
		if b, ok := v.(bool); ok {
			ip.IsActive = &b
		} else {
			fields["is_active"] = "must be a boolean"
		}
	}

	if s := str(profile, "role"); s != nil {
		r := model.Role(*s)
		pp.Role = &r
	}
	if s := str(profile, "department"); s != nil {
		d := model.Department(*s)
		pp.Department = &d
	}
	pp.Phone = str(profile, "phone")
	if v, ok := profile["photo"]; ok {
		pp.PhotoSet = true
		switch photo := v.(type) {
		case nil:
		case string:
			if photo != "" {
				pp.Photo = &photo
			}
		default:
			fields["photo"] = "must be a string or null"
		}
	}

	if len(fields) > 0 {
		return nil, nil, domain.NewValidationError(fields)
	}
	return ip, pp, nil
}

// privilegedKeys returns the payload keys only admins may change.
func privilegedKeys(payload map[string]any) []string {
	var keys []string
	for _, k := range []string{"is_active", "role"} {
		if _, ok := payload[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}
