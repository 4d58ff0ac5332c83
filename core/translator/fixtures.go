package translator

import (
	"encoding/json"
	"strings"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/testcase"
)

// Fixture block delimiters embedded in translator source.
const (
	fixtureBegin = "/** BEGIN TEST CASES **/"
	fixtureEnd   = "/** END TEST CASES **/"
)

const fixtureAssignPrefix = "var testCases"

// ParseFixtures extracts the embedded test case block from translator
// source. A missing block is not an error and yields no tests; a block
// that is present but malformed is reported so tooling can warn, with
// the module still treated as having zero tests.
func ParseFixtures(source string) ([]*testcase.Test, error) {
	begin := strings.Index(source, fixtureBegin)
	if begin < 0 {
		return nil, nil
	}
	rest := source[begin+len(fixtureBegin):]
	end := strings.Index(rest, fixtureEnd)
	if end < 0 {
		return nil, errors.NewParse("test cases", "", "begin marker without end marker")
	}

	block := strings.TrimSpace(rest[:end])
	if after, ok := strings.CutPrefix(block, fixtureAssignPrefix); ok {
		after = strings.TrimSpace(after)
		if eq, ok := strings.CutPrefix(after, "="); ok {
			block = strings.TrimSpace(eq)
		}
	}
	block = strings.TrimSuffix(strings.TrimSpace(block), ";")
	if block == "" {
		return nil, nil
	}

	tests, err := testcase.ParseList([]byte(block))
	if err != nil {
		return nil, err
	}
	return tests, nil
}

// Tests returns the translator's embedded fixtures. Modules without a
// parseable fixture block have zero tests.
func (t *Translator) Tests() []*testcase.Test {
	tests, _ := ParseFixtures(t.Source)
	return tests
}

// TestsChecked is Tests with the parse failure surfaced, for tooling
// that distinguishes "no fixtures" from "broken fixtures".
func (t *Translator) TestsChecked() ([]*testcase.Test, error) {
	return ParseFixtures(t.Source)
}

// ReplaceFixtures returns source with its embedded test case block
// replaced by tests, tab-indented in fixture key order. Sources without
// a block gain one at the end, so recording works on translators that
// have never had tests.
func ReplaceFixtures(source string, tests []*testcase.Test) (string, error) {
	data := []byte("[]")
	if len(tests) > 0 {
		var err error
		data, err = json.MarshalIndent(tests, "", "\t")
		if err != nil {
			return "", errors.Wrap(err, "encoding test cases")
		}
	}
	block := fixtureBegin + "\n" + fixtureAssignPrefix + " = " + string(data) + "\n" + fixtureEnd

	begin := strings.Index(source, fixtureBegin)
	if begin < 0 {
		return strings.TrimRight(source, "\n") + "\n\n" + block + "\n", nil
	}
	rest := source[begin+len(fixtureBegin):]
	end := strings.Index(rest, fixtureEnd)
	if end < 0 {
		return "", errors.NewParse("test cases", "", "begin marker without end marker")
	}
	endAbs := begin + len(fixtureBegin) + end + len(fixtureEnd)
	return source[:begin] + block + source[endAbs:], nil
}
