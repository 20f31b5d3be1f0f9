package models

import "time"

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleElectionOfficer Role = "election_officer"
	RoleAuditor         Role = "auditor"
	RoleVoter           Role = "voter"
)

// ParseRole accepts only the enumerated role strings. Anything else reports
// false and must be treated as "no role".
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleAdmin, RoleElectionOfficer, RoleAuditor, RoleVoter:
		return Role(value), true
	default:
		return "", false
	}
}

type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
