package auth

import (
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

// rbacModel: r = request (who, what, how), p = policy, g = role hierarchy.
// keyMatch2 supports URL parameters like /api/users/:id/.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

const (
	actAll       = "(GET)|(POST)|(PUT)|(PATCH)|(DELETE)"
	actReadWrite = "(GET)|(PUT)|(PATCH)"
	actRead      = "(GET)"
)

// DefaultPolicies is the coarse route gate per effective role. Object-level
// decisions (self vs. other, privileged fields) are made in the service layer.
var DefaultPolicies = [][]string{
	{"admin", "/api/users", actAll},
	{"admin", "/api/users/*", actAll},
	{"admin", "/api/me", actRead},
	{"admin", "/api/me/", actRead},

	{"manager", "/api/users", actRead},
	{"manager", "/api/users/*", actReadWrite},
	{"manager", "/api/me", actRead},
	{"manager", "/api/me/", actRead},

	{"technician", "/api/users", actRead},
	{"technician", "/api/users/*", actReadWrite},
	{"technician", "/api/me", actRead},
	{"technician", "/api/me/", actRead},

	{"user", "/api/users", actRead},
	{"user", "/api/users/*", actReadWrite},
	{"user", "/api/me", actRead},
	{"user", "/api/me/", actRead},
}

// InitCasbin initializes the enforcer with the GORM adapter (casbin_rule table)
// and seeds DefaultPolicies when the table is empty.
func InitCasbin(db *gorm.DB) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}

	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}

	policies, err := enforcer.GetPolicy()
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		slog.Info("casbin: no policies found, seeding defaults", "count", len(DefaultPolicies))
		if _, err := enforcer.AddPolicies(DefaultPolicies); err != nil {
			return nil, err
		}
	}

	slog.Info("casbin initialized")
	return enforcer, nil
}
