package core

import "strings"

// Roles
const (
	RoleAdmin         = "admin"
	RoleAdvisor       = "advisor"
	RoleJuniorAdvisor = "junior-advisor"
	RoleBranchManager = "branch-manager"
	RoleZoneManager   = "zone-manager"
)

var (
	// StaffRoles are the roles that take trainings and evaluations.
	StaffRoles = []string{RoleAdvisor, RoleJuniorAdvisor, RoleBranchManager, RoleZoneManager}
	AllRoles   = append([]string{RoleAdmin}, StaffRoles...)

	// roleDomains maps each role to the email domain its accounts are registered under.
	roleDomains = map[string]string{
		RoleAdmin:         "adminrh.com",
		RoleAdvisor:       "adviser.com",
		RoleJuniorAdvisor: "adviserjr.com",
		RoleBranchManager: "managerbr.com",
		RoleZoneManager:   "managerzn.com",
	}
)

func IsValidRole(role string) bool {
	_, ok := roleDomains[role]
	return ok
}

func IsAdminRole(role string) bool {
	return role == RoleAdmin
}

// RoleFromEmail derives the role from the domain of an email address.
func RoleFromEmail(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "", false
	}
	domain := strings.ToLower(email[at+1:])
	for role, d := range roleDomains {
		if d == domain {
			return role, true
		}
	}
	return "", false
}

// EmailMatchesRole reports whether the (plain or institutional) email belongs to the role's domain.
func EmailMatchesRole(email, role string) bool {
	r, ok := RoleFromEmail(email)
	return ok && r == role
}

// HasRole reports whether role is in roles.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
