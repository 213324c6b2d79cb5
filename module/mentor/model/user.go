package model

import "strings"

type Role string

const (
	RoleApplicant   Role = "APPLICANT"
	RoleParticipant Role = "PARTICIPANT"
	RoleAlumna      Role = "ALUMNA"
	RoleMentor      Role = "MENTOR"
)

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleApplicant, RoleParticipant, RoleAlumna, RoleMentor:
		return r, true
	}
	return "", false
}

// Identity is the verified principal behind a connection or request.
// It is produced once and never mutated afterwards.
type Identity struct {
	UserID      string
	Email       string // token subject, used as the principal name
	DisplayName string
	Role        Role
}

// Name is what other users see for this principal.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}

func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// Profile is the directory view of a user.
type Profile struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
}
