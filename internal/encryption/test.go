package encryption

import (
	"bytes"
	"fmt"
	"io"

	"framecap/internal/capture"
)

// TestExtension is appended to vault keys of archives "encrypted" by TestEncryptor.
const TestExtension = ".fcenc"

// testMagic marks data produced by TestEncryptor.
var testMagic = []byte("FCENC\x00\x00\x01")

// TestEncryptor prefixes a fixed header instead of encrypting, so published
// bytes differ from the plaintext archive without needing key files.
type TestEncryptor struct {
	passphrase string
}

var _ capture.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// Setup remembers passphrase; Unlock then requires the same one.
func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying archive: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (capture.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("unlocking private key: incorrect passphrase")
	}
	return testDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Extension() string { return TestExtension }

type testDecryptionContext struct{}

func (testDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return fmt.Errorf("not produced by the test encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying archive: %w", err)
	}
	return nil
}
