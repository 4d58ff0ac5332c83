// Package archive packs translator corpora into compressed tar archives
// and unpacks them with integrity checks. Every archive carries a
// manifest listing its translators with BLAKE3 digests that are verified
// on extraction.
package archive

import (
	"encoding/json"
	"time"
)

// Version is the corpus archive format version.
const Version = "1.0.0"

// ManifestName is the archive entry holding the manifest.
const ManifestName = "manifest.json"

// entryPrefix is the directory translator sources live under inside the
// archive.
const entryPrefix = "translators/"

// Manifest describes the contents of a corpus archive.
type Manifest struct {
	FormatVersion   string   `json:"format_version"`
	Name            string   `json:"name"`
	CreatedAt       string   `json:"created_at"`
	Tool            ToolInfo `json:"tool"`
	TranslatorCount int      `json:"translator_count"`
	Entries         []Entry  `json:"entries"`
}

// ToolInfo records the tool that wrote the archive.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry describes one translator source inside the archive.
type Entry struct {
	// Name is the file name under translators/ in the archive.
	Name         string `json:"name"`
	TranslatorID string `json:"translator_id"`
	Label        string `json:"label"`
	SizeBytes    int64  `json:"size_bytes"`
	// BLAKE3 is the hex digest of the source file, checked on unpack.
	BLAKE3 string `json:"blake3"`
	// Tests counts the fixtures embedded in the source.
	Tests int `json:"tests,omitempty"`
}

// NewManifest creates an empty manifest for a corpus with the given name.
func NewManifest(name string) *Manifest {
	return &Manifest{
		FormatVersion: Version,
		Name:          name,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Tool: ToolInfo{
			Name:    "translate",
			Version: Version,
		},
	}
}

// Entry returns the manifest entry with the given name.
func (m *Manifest) Entry(name string) (*Entry, bool) {
	for i := range m.Entries {
		if m.Entries[i].Name == name {
			return &m.Entries[i], true
		}
	}
	return nil, false
}

// ToJSON serializes the manifest.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses a manifest from JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
