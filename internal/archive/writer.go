package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/translator"
)

// CompressionType selects the compression wrapped around the tar stream.
type CompressionType string

const (
	// CompressionXZ is the default and compresses best.
	CompressionXZ CompressionType = "xz"
	// CompressionGzip is faster and stdlib-only.
	CompressionGzip CompressionType = "gzip"
)

// PackOptions configures corpus packing.
type PackOptions struct {
	// Compression selects the algorithm. Defaults to XZ.
	Compression CompressionType
	// Name is recorded in the manifest. Defaults to the base name of
	// the source directory.
	Name string
}

// DefaultPackOptions returns the default packing options.
func DefaultPackOptions() *PackOptions {
	return &PackOptions{Compression: CompressionXZ}
}

// Pack loads the translators in srcDir and writes them into a compressed
// tar archive at dstPath: the manifest first, then each source under
// translators/. Files that do not parse as translators are skipped the
// same way registry loading skips them.
func Pack(srcDir, dstPath string, opts *PackOptions) (*Manifest, error) {
	if opts == nil {
		opts = DefaultPackOptions()
	}

	reg, err := translator.LoadDir(srcDir)
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		return nil, errors.NewValidation("corpus", fmt.Sprintf("no translators found in %s", srcDir))
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(srcDir)
	}

	manifest := NewManifest(name)
	var sources [][]byte
	for _, tr := range reg.All() {
		data, err := os.ReadFile(tr.Path)
		if err != nil {
			return nil, errors.NewIO("read", tr.Path, err)
		}
		manifest.Entries = append(manifest.Entries, Entry{
			Name:         filepath.Base(tr.Path),
			TranslatorID: tr.TranslatorID,
			Label:        tr.Label,
			SizeBytes:    int64(len(data)),
			BLAKE3:       tr.Hash(),
			Tests:        len(tr.Tests()),
		})
		sources = append(sources, data)
	}
	manifest.TranslatorCount = len(manifest.Entries)

	file, err := os.Create(dstPath)
	if err != nil {
		return nil, errors.NewIO("create", dstPath, err)
	}
	defer file.Close()

	var compressWriter io.WriteCloser
	switch opts.Compression {
	case CompressionGzip:
		compressWriter, err = gzip.NewWriterLevel(file, gzip.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ:
		fallthrough
	default:
		compressWriter, err = xz.NewWriter(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
	}

	tarWriter := tar.NewWriter(compressWriter)

	// One timestamp across all headers keeps repeated packs comparable.
	now := time.Now()

	manifestData, err := manifest.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := writeToTar(tarWriter, ManifestName, manifestData, now); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	for i, entry := range manifest.Entries {
		if err := writeToTar(tarWriter, entryPrefix+entry.Name, sources[i], now); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", entry.Name, err)
		}
	}

	// Close order matters: tar flushes into the compressor, the
	// compressor flushes into the file.
	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := compressWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewIO("close", dstPath, err)
	}

	return manifest, nil
}

// writeToTar writes one regular file entry.
func writeToTar(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
