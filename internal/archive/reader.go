package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Entry describes one frame stored in an archive.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
	Data    []byte // only populated when requested
}

// List reads every entry of a tar.gz stream in order.
// When withData is true each entry's payload is loaded into Data.
func List(r io.Reader, withData bool) ([]Entry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var entries []Entry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", len(entries)+1, err)
		}

		e := Entry{Name: hdr.Name, Size: hdr.Size, ModTime: hdr.ModTime}
		if withData {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("reading payload of %s: %w", hdr.Name, err)
			}
			e.Data = data
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ListFile opens the archive at path and lists its entries.
func ListFile(path string, withData bool) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	return List(f, withData)
}
