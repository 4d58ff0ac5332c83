package testcase

import (
	"encoding/hex"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/zeebo/blake3"

	"github.com/zotero/translate/core/errors"
)

// jsonCanonicalize is swappable in tests.
var jsonCanonicalize = jsoncanonicalizer.Transform

// CanonicalJSON returns the RFC 8785 canonical form of the test. Two
// tests with the same content canonicalize to the same bytes even when
// their source fixtures were formatted differently.
func (t *Test) CanonicalJSON() ([]byte, error) {
	data, err := t.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "serializing test")
	}
	canonical, err := jsonCanonicalize(data)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalizing test")
	}
	return canonical, nil
}

// Digest returns the hex BLAKE3 digest of the canonical form, used to
// key results and detect fixture drift between runs.
func (t *Test) Digest() (string, error) {
	canonical, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
