package models

import "strings"

// UserRole distinguishes individual candidates from hiring organizations.
type UserRole string

const (
	RoleCandidate    UserRole = "candidate"
	RoleOrganization UserRole = "organization"
)

// ParseUserRole maps backend role strings onto a UserRole; unknown values yield "".
func ParseUserRole(raw string) UserRole {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "candidate", "individual", "user":
		return RoleCandidate
	case "organization", "organisation", "company", "recruiter":
		return RoleOrganization
	default:
		return ""
	}
}

// User is the authenticated account as reported by the backend.
type User struct {
	ID    ID       `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}
