package testutil

import (
	"framecap/internal/capture"
	"framecap/internal/encryption"
)

// NewTestEncryptor returns the header-prefixing test encryptor.
func NewTestEncryptor() capture.Encryptor {
	return encryption.NewTestEncryptor()
}
