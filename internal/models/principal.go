package models

// Role is the access level of an authenticated principal
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// ValidRoles defines the available roles in the system
var ValidRoles = []Role{
	RoleAdmin,
	RoleEmployee,
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	for _, validRole := range ValidRoles {
		if Role(role) == validRole {
			return true
		}
	}
	return false
}

// Principal is an authenticated caller, and also the holder of assets.
// Principals are owned by the account subsystem; this service only reads them.
type Principal struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// IsAdmin checks if the principal has the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Summary returns the public fields of the principal
func (p Principal) Summary() PrincipalSummary {
	return PrincipalSummary{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
	}
}

// PrincipalSummary is the short form of a holder used in joined views
type PrincipalSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}
