package enums

import (
	"fmt"
	"strings"
)

// StaffRole scopes what a dashboard token may do.
type StaffRole string

const (
	// StaffRoleManager may also manage the payout account.
	StaffRoleManager StaffRole = "manager"
	StaffRoleKitchen StaffRole = "kitchen"
)

var validStaffRoles = []StaffRole{
	StaffRoleManager,
	StaffRoleKitchen,
}

func (r StaffRole) String() string {
	return string(r)
}

func (r StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseStaffRole(value string) (StaffRole, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
