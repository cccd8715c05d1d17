package transfer

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Packager adds named items to an archive one at a time
type Packager interface {
	Add(name string, data []byte) error
	// Close finalizes the archive. It does not close the underlying writer.
	Close() error
}

// ZipPackager writes a deflate-compressed zip archive incrementally
type ZipPackager struct {
	zw      *zip.Writer
	modTime time.Time
	entries int
}

// NewZipPackager starts a zip archive on w. level follows compress/flate:
// 0 stores without compression, 1-9 trade speed for size, -1 is the
// library default.
func NewZipPackager(w io.Writer, level int) (*ZipPackager, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &ZipPackager{zw: zw, modTime: time.Now()}, nil
}

func checkLevel(level int) error {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return fmt.Errorf("invalid compression level %d", level)
	}
	return nil
}

// Add writes one entry. Duplicate names are written as given.
func (p *ZipPackager) Add(name string, data []byte) error {
	method := zip.Deflate
	if len(data) == 0 {
		method = zip.Store
	}
	fw, err := p.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: p.modTime,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", name, err)
	}
	p.entries++
	return nil
}

// Entries returns the number of items added so far
func (p *ZipPackager) Entries() int {
	return p.entries
}

// Close writes the central directory
func (p *ZipPackager) Close() error {
	return p.zw.Close()
}

// DefaultArchiveName is the file name used when the caller gives none
func DefaultArchiveName(now time.Time) string {
	return fmt.Sprintf("images-%d.zip", now.UnixMilli())
}
