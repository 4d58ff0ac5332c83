package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/internal/validation"
)

// DetectCompression sniffs the compression wrapper from the archive's
// leading magic bytes.
func DetectCompression(archivePath string) (CompressionType, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	magic := make([]byte, 6)
	n, err := file.Read(magic)
	if err != nil {
		return "", errors.NewIO("read magic bytes", archivePath, err)
	}
	if n < 2 {
		return "", errors.NewValidation("archive", "file too small to detect compression")
	}

	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}

	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}

	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Reader iterates a corpus archive's tar entries, decompressing
// transparently.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens a corpus archive. The compression wrapper is detected
// from content, not the file name.
func NewReader(path string) (*Reader, error) {
	compression, err := DetectCompression(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}

	var reader io.Reader
	var decompressor io.Closer
	switch compression {
	case CompressionGzip:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	default:
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		// The xz reader holds no resources that need closing.
		reader = xzr
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive and any decompressor that needs it.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Visitor receives each archive entry. Return stop to end iteration.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks the archive entries in order.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// ReadManifest reads and parses the manifest from a corpus archive.
func ReadManifest(path string) (*Manifest, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var data []byte
	err = r.Iterate(func(header *tar.Header, content io.Reader) (bool, error) {
		if header.Name != ManifestName {
			return false, nil
		}
		var err error
		data, err = io.ReadAll(content)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.NewValidation("archive", "no manifest.json entry")
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.NewParse("corpus manifest", path, err.Error())
	}
	return m, nil
}

// Unpack extracts a corpus archive into destDir, verifying each entry
// against the manifest. Translator sources are flattened out of the
// translators/ prefix so destDir is loadable as a translator directory,
// with the manifest written alongside them. Every archive entry must be
// listed in the manifest with a matching BLAKE3 digest, and every listed
// entry must be present in the archive.
func Unpack(archivePath, destDir string) (*Manifest, error) {
	manifest, err := ReadManifest(archivePath)
	if err != nil {
		return nil, err
	}

	// Screen the manifest before touching the filesystem.
	for _, entry := range manifest.Entries {
		if err := validation.ValidateFilename(entry.Name); err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", entry.Name, err)
		}
		if !validation.IsPathSafe(destDir, entry.Name) {
			return nil, fmt.Errorf("manifest entry %q: %w", entry.Name, validation.ErrPathTraversal)
		}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, errors.NewIO("create directory", destDir, err)
	}

	r, err := NewReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	seen := make(map[string]bool, len(manifest.Entries))
	err = r.Iterate(func(header *tar.Header, content io.Reader) (bool, error) {
		if header.Typeflag != tar.TypeReg {
			return false, nil
		}

		data, err := io.ReadAll(io.LimitReader(content, validation.MaxFileSize+1))
		if err != nil {
			return false, fmt.Errorf("read %s: %w", header.Name, err)
		}
		if int64(len(data)) > validation.MaxFileSize {
			return false, fmt.Errorf("archive entry %q exceeds the size limit", header.Name)
		}

		if header.Name == ManifestName {
			if err := os.WriteFile(filepath.Join(destDir, ManifestName), data, 0644); err != nil {
				return false, errors.NewIO("write", ManifestName, err)
			}
			return false, nil
		}

		name, ok := strings.CutPrefix(header.Name, entryPrefix)
		if !ok {
			return false, fmt.Errorf("unexpected archive entry %q", header.Name)
		}
		if err := validation.ValidateFilename(name); err != nil {
			return false, fmt.Errorf("archive entry %q: %w", header.Name, err)
		}
		entry, ok := manifest.Entry(name)
		if !ok {
			return false, fmt.Errorf("archive entry %q not listed in manifest", header.Name)
		}

		sum := blake3.Sum256(data)
		if hex.EncodeToString(sum[:]) != entry.BLAKE3 {
			return false, fmt.Errorf("digest mismatch for %q", name)
		}

		if err := os.WriteFile(filepath.Join(destDir, name), data, 0644); err != nil {
			return false, errors.NewIO("write", name, err)
		}
		seen[name] = true
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	for _, entry := range manifest.Entries {
		if !seen[entry.Name] {
			return nil, fmt.Errorf("manifest entry %q missing from archive", entry.Name)
		}
	}

	return manifest, nil
}
