package domain

// Principal is the authenticated caller attached to a request.
type Principal struct {
	AccountID   string
	Email       string
	Role        Role
	Permissions []Permission
}

func NewPrincipal(account *Account) Principal {
	return Principal{
		AccountID:   account.ID,
		Email:       account.Email,
		Role:        account.Role,
		Permissions: PermissionsFor(account.Role),
	}
}

func (p Principal) HasRole(role Role) bool {
	return p.Role == role
}

func (p Principal) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

func (p Principal) HasPermission(perm Permission) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// HasAllPermissions is true for an empty argument list.
func (p Principal) HasAllPermissions(perms ...Permission) bool {
	for _, perm := range perms {
		if !p.HasPermission(perm) {
			return false
		}
	}
	return true
}
