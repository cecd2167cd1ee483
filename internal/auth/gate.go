package auth

import "github.com/dukerupert/choreboard/internal/apperr"

func IsAdmin(a Actor) bool {
	return a.UserID != 0 && a.Admin
}

func IsOwnerOrAdmin(a Actor, targetUserID int64) bool {
	if a.UserID == 0 {
		return false
	}
	return a.UserID == targetUserID || a.Admin
}

// RequireAdmin returns a permission error unless a is an admin.
func RequireAdmin(a Actor) error {
	if !IsAdmin(a) {
		return apperr.Permission("admin access required")
	}
	return nil
}

// RequireOwnerOrAdmin returns a permission error unless a is the target user
// or an admin.
func RequireOwnerOrAdmin(a Actor, targetUserID int64) error {
	if !IsOwnerOrAdmin(a, targetUserID) {
		return apperr.Permission("access denied: only the user or an admin can perform this action")
	}
	return nil
}

// RequireUser rejects the zero Actor.
func RequireUser(a Actor) error {
	if a.UserID == 0 {
		return apperr.Permission("authentication required")
	}
	return nil
}
