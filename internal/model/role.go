package model

import (
	"database/sql/driver"
	"fmt"

	"github.com/juju/errors"
)

// Role is the closed set of user roles inside an agency.
type Role string

const (
	RoleAgencyOwner     Role = "AGENCY_OWNER"
	RoleAgencyAdmin     Role = "AGENCY_ADMIN"
	RoleSubAccountUser  Role = "SUBACCOUNT_USER"
	RoleSubAccountGuest Role = "SUBACCOUNT_GUEST"
)

// Roles lists every valid role, highest authority first.
var Roles = []Role{RoleAgencyOwner, RoleAgencyAdmin, RoleSubAccountUser, RoleSubAccountGuest}

// ParseRole returns the Role named by s. Unknown names are rejected.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAgencyOwner, RoleAgencyAdmin, RoleSubAccountUser, RoleSubAccountGuest:
		return r, nil
	}
	return "", errors.NotValidf("role %q", s)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// AgencyScoped reports whether the role acts on the whole agency rather
// than on individual sub-accounts.
func (r Role) AgencyScoped() bool {
	switch r {
	case RoleAgencyOwner, RoleAgencyAdmin:
		return true
	case RoleSubAccountUser, RoleSubAccountGuest:
		return false
	}
	panic(fmt.Sprintf("unknown role %q", string(r)))
}

// CanManageUsers reports whether holders of r may create and edit agency users.
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleAgencyOwner, RoleAgencyAdmin:
		return true
	case RoleSubAccountUser, RoleSubAccountGuest:
		return false
	}
	panic(fmt.Sprintf("unknown role %q", string(r)))
}

// CanAssign reports whether an actor holding r may give target to a user
// whose current role is current. Only owners hand out or keep ownership.
func (r Role) CanAssign(current, target Role) bool {
	if !r.CanManageUsers() {
		return false
	}
	switch target {
	case RoleAgencyOwner:
		return r == RoleAgencyOwner || current == RoleAgencyOwner
	case RoleAgencyAdmin, RoleSubAccountUser, RoleSubAccountGuest:
		// An owner cannot be demoted through the details form.
		return current != RoleAgencyOwner
	}
	return false
}

func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, errors.NotValidf("role %q", string(r))
	}
	return string(r), nil
}

func (r *Role) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return errors.NotValidf("role of type %T", value)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
