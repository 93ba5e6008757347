package auth

import "golang.org/x/crypto/bcrypt"

// HashHostCredential hashes a controller's session-creation credential the
// same way the teacher hashes user passwords.
func HashHostCredential(credential string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareHostCredential reports whether credential matches hash.
func CompareHostCredential(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
