package role

import "strings"

// Role discriminates the account variants stored in the single accounts namespace.
type Role string

const (
	Doctor  Role = "doctor"
	Patient Role = "patient"
	Admin   Role = "admin"
)

func Parse(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case Doctor, Patient, Admin:
		return true
	}
	return false
}

// SelfRegistrable reports whether accounts of this role may sign up through the public API.
func (r Role) SelfRegistrable() bool {
	return r == Doctor || r == Patient
}

// TargetType is the capitalised form used in audit records.
func (r Role) TargetType() string {
	switch r {
	case Doctor:
		return "Doctor"
	case Patient:
		return "Patient"
	case Admin:
		return "Admin"
	}
	return ""
}

func (r Role) String() string {
	return string(r)
}
