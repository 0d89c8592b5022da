package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/staffma/staffma-backend/internal/domain/user"
)

type Mode string

const (
	ModeEnforce Mode = "enforce"
	ModeShadow  Mode = "shadow"
)

// ParseMode accepts enforce|shadow; blank means enforce.
func ParseMode(raw string) (Mode, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow:
		return Mode(raw), nil
	default:
		return "", errors.New("authz: invalid AUTHZ_MODE (expected enforce|shadow)")
	}
}

// ObjectPayroll is the only protected object today.
const ObjectPayroll = "payroll"

// anyDomain grants a policy in every tenant.
const anyDomain = "*"

const modelText = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.dom == "*" || r.dom == p.dom) && r.obj == p.obj && r.act == p.act
`

type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

// NewAuthorizer builds an enforcer whose policy is the role capability table.
func NewAuthorizer(mode Mode) (*Authorizer, error) {
	switch mode {
	case ModeEnforce, ModeShadow:
	default:
		return nil, fmt.Errorf("authz: unknown mode %q", mode)
	}

	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz: load model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: new enforcer: %w", err)
	}

	for role, caps := range user.RoleCapabilities {
		for _, c := range caps {
			if _, err := enforcer.AddPolicy(SubjectFromRole(role), anyDomain, ObjectPayroll, string(c)); err != nil {
				return nil, fmt.Errorf("authz: add policy %s/%s: %w", role, c, err)
			}
		}
	}

	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func (a *Authorizer) Mode() Mode {
	return a.mode
}

func SubjectFromRole(role user.Role) string {
	slug := strings.TrimSpace(strings.ToLower(string(role)))
	if slug == "" {
		slug = "anonymous"
	}
	return "role:" + slug
}

func DomainFromTenantID(tenantID string) string {
	return strings.ToLower(strings.TrimSpace(tenantID))
}

// Authorize reports whether role may exercise capability within tenantID.
// enforced is false in shadow mode, where callers log denials but let the
// request through.
func (a *Authorizer) Authorize(role user.Role, tenantID string, capability user.Capability) (allowed bool, enforced bool, err error) {
	if !capability.Valid() {
		return false, a.mode != ModeShadow, fmt.Errorf("authz: unknown capability %q", capability)
	}

	ok, err := a.enforcer.Enforce(SubjectFromRole(role), DomainFromTenantID(tenantID), ObjectPayroll, string(capability))
	switch a.mode {
	case ModeShadow:
		if err != nil {
			return false, false, err
		}
		return ok, false, nil
	case ModeEnforce:
		if err != nil {
			return false, true, err
		}
		return ok, true, nil
	default:
		return false, true, fmt.Errorf("authz: unknown mode %q", a.mode)
	}
}
