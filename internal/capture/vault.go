package capture

import "io"

// Vault provides an interface for archive storage backends.
// Finished archives are streamed with io.Reader/io.Writer so large sessions
// are never loaded entirely into memory.
type Vault interface {
	// PutArchive stores an archive under key, overwriting any previous value.
	// size is the number of bytes that will be read from r.
	PutArchive(key string, r io.Reader, size int64) error

	// GetArchive retrieves the archive stored under key and writes it to w.
	GetArchive(key string, w io.Writer) error

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
