package utilities

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes client passwords together with a per-account salt.
type PasswordHasher interface {
	Hash(password, salt string) (string, error)
	Verify(hash, password, salt string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

// NewSalt returns a fresh per-account salt.
func NewSalt() string { return NewKSUID() }

func (b BcryptHasher) Hash(password, salt string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword(salted(password, salt), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, password, salt string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), salted(password, salt)) == nil
}

func salted(password, salt string) []byte {
	return []byte(salt + ":" + password)
}
