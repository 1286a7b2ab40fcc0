package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role controls which queues and actions a user sees.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleRequester Role = "requester"
	RoleApprover1 Role = "approver1"
	RoleApprover2 Role = "approver2"
	RoleReception Role = "reception"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleRequester, RoleApprover1, RoleApprover2, RoleReception:
		return true
	}
	return false
}

// StageApproverRole maps a stage to the role that reviews it.
func StageApproverRole(stage Stage) Role {
	if stage == Stage2 {
		return RoleApprover2
	}
	return RoleApprover1
}

func ParseRoleFromString(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid role %q", ErrValidation, s)
	}
	return r, nil
}

// User is a facility-side account: requester, approver, reception, or admin.
// Guests are not users.
type User struct {
	ID            string
	Email         string
	Name          string
	Role          Role
	AssignedGates []string
	Active        bool
	CreatedAt     time.Time
}
