package entity

import "time"

// Auth types. phone and app carry a salted password; phone also accepts
// SMS code login; the rest are third-party OAuth providers.
const (
	TypePhone  = "phone"
	TypeApp    = "app"
	TypeQQ     = "qq"
	TypeWechat = "wechat"
	TypeWeibo  = "weibo"
)

// Identity is one login credential bound to exactly one user account.
type Identity struct {
	ID          int64
	UserID      int64
	AuthType    string
	Identifier  string
	AccessToken string // bcrypt hash for credentialed types, empty otherwise
	CreateTime  time.Time
}

func Known(t string) bool {
	return IsCredentialed(t) || IsThirdParty(t)
}

// IsCredentialed reports whether t logs in with a password.
func IsCredentialed(t string) bool {
	return t == TypePhone || t == TypeApp
}

func IsThirdParty(t string) bool {
	switch t {
	case TypeQQ, TypeWechat, TypeWeibo:
		return true
	}
	return false
}

// SupportsCode reports whether t may log in with a pre-verified one-time code.
func SupportsCode(t string) bool {
	return t == TypePhone
}
