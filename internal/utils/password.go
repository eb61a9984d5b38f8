package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of the plain password using the
// given cost.  Deployments generate the operator's hash once with this
// helper and store it in ADMIN_PASSWORD_HASH.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash against a plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
