package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"framecap/internal/encryption"
)

const archiveExtension = ".tar.gz"

// PassphraseFunc supplies the private key passphrase when it is needed.
type PassphraseFunc func() (string, error)

// vaultKey returns "{host_id}/{session_id}.tar.gz", plus ext when encrypted.
func vaultKey(hostID, sessionID, ext string) string {
	return hostID + "/" + sessionID + archiveExtension + ext
}

// publish uploads the finished archive, encrypting it first when an
// encryptor is configured. It returns the vault key.
func (a *CaptureApp) publish(archivePath string) (string, error) {
	upload := archivePath
	ext := ""

	if a.encryptor != nil {
		ext = a.encryptor.Extension()
		tmp, err := a.encryptToTemp(archivePath)
		if err != nil {
			return "", err
		}
		defer os.Remove(tmp)
		upload = tmp
	}

	f, err := os.Open(upload)
	if err != nil {
		return "", fmt.Errorf("opening archive for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}

	key := vaultKey(a.cfg.HostID, a.sessionID, ext)
	if err := a.vault.PutArchive(key, f, info.Size()); err != nil {
		return "", fmt.Errorf("uploading archive to vault: %w", err)
	}
	a.logger.Info("archive published", "key", key, "size", info.Size())
	return key, nil
}

func (a *CaptureApp) encryptToTemp(archivePath string) (string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(archivePath), ".framecap-encrypt-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	if err := a.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("encrypting archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("closing encrypted archive: %w", err)
	}
	return out.Name(), nil
}

// Fetch downloads the archive published for sessionID into dest. For an
// encrypted archive passphrase is called to unlock the private key.
func (a *CaptureApp) Fetch(sessionID, dest string, passphrase PassphraseFunc) error {
	if a.vault == nil {
		return errors.New("no vault configured")
	}

	rec, err := a.db.FindSession(sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if rec.VaultKey == "" {
		return fmt.Errorf("session %s was not published", sessionID)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".framecap-fetch-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if rec.Encrypted {
		err = a.fetchEncrypted(rec.VaultKey, tmp, passphrase)
	} else {
		err = a.vault.GetArchive(rec.VaultKey, tmp)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", rec.VaultKey, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	success = true
	a.logger.Info("archive fetched", "key", rec.VaultKey, "dest", dest)
	return nil
}

func (a *CaptureApp) fetchEncrypted(key string, w io.Writer, passphrase PassphraseFunc) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if passphrase == nil {
		return errors.New("archive is encrypted and no passphrase was provided")
	}
	pass, err := passphrase()
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	dc, err := enc.Unlock(pass)
	if err != nil {
		return err
	}

	// Decrypt while downloading.
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(a.vault.GetArchive(key, pw))
	}()
	err = dc.Decrypt(pr, w)
	pr.CloseWithError(err)
	return err
}
