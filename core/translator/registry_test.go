package translator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/item"
)

func makeTranslator(t *testing.T, id, label, target string, priority int, kind Kind) *Translator {
	t.Helper()
	return &Translator{Metadata: Metadata{
		TranslatorID:   id,
		Label:          label,
		Target:         target,
		Priority:       priority,
		TranslatorType: kind,
	}}
}

func TestLoadDir(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "translators-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(tempDir)

	if err := os.WriteFile(filepath.Join(tempDir, "example.js"), []byte(sampleSource), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "broken.js"), []byte("not a translator"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "README.md"), []byte("# docs"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	reg, err := LoadDir(tempDir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 translator, got %d", reg.Len())
	}
	tr, err := reg.Get("96b9f483-c44d-5784-cdad-ce21b984fe01")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tr.Path == "" {
		t.Error("loaded translator has no path")
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir("/nonexistent/translator/dir"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestRegistryLookup(t *testing.T) {
	a := makeTranslator(t, "id-a", "Alpha", "", 100, KindImport)
	b := makeTranslator(t, "id-b", "Beta", "", 100, KindImport)
	reg := NewRegistry(b, a)

	if got := reg.All(); len(got) != 2 || got[0].Label != "Alpha" {
		t.Errorf("All not sorted by label: %v", got)
	}

	if _, err := reg.Get("id-b"); err != nil {
		t.Errorf("Get by id failed: %v", err)
	}
	if _, err := reg.Lookup("Beta"); err != nil {
		t.Errorf("Lookup by label failed: %v", err)
	}

	_, err := reg.Get("id-missing")
	if err == nil {
		t.Fatal("expected not found")
	}
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %T", err)
	}
}

func TestRegistryReplacesDuplicateID(t *testing.T) {
	first := makeTranslator(t, "id-a", "First", "", 100, KindImport)
	second := makeTranslator(t, "id-a", "Second", "", 100, KindImport)
	reg := NewRegistry(first, second)
	if reg.Len() != 1 {
		t.Fatalf("duplicate id not replaced, len=%d", reg.Len())
	}
	tr, _ := reg.Get("id-a")
	if tr.Label != "Second" {
		t.Errorf("later registration should win, got %q", tr.Label)
	}
}

func TestForURLRanking(t *testing.T) {
	specific := makeTranslator(t, "id-s", "Specific Site", `^https?://site\.example\.org/`, 90, KindWeb)
	generic := makeTranslator(t, "id-g", "Generic Meta", `^https?://`, 300, KindWeb)
	importer := makeTranslator(t, "id-i", "RIS Import", "", 100, KindImport)
	other := makeTranslator(t, "id-o", "Other Site", `^https?://other\.example\.org/`, 100, KindWeb)
	reg := NewRegistry(generic, specific, importer, other)

	matched := reg.ForURL("https://site.example.org/article/1")
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matched))
	}
	if matched[0].TranslatorID != "id-s" || matched[1].TranslatorID != "id-g" {
		t.Errorf("priority order wrong: %v, %v", matched[0].Label, matched[1].Label)
	}
}

type stubHandler struct {
	itemType string
}

func (s stubHandler) Detect(ctx context.Context, caps *Capabilities) (string, error) {
	return s.itemType, nil
}

func (s stubHandler) Extract(ctx context.Context, caps *Capabilities) ([]item.Item, error) {
	return []item.Item{item.New(s.itemType)}, nil
}

func TestHandlerRegistry(t *testing.T) {
	ClearHandlers()
	defer ClearHandlers()

	RegisterHandler("id-b", stubHandler{itemType: "book"})
	RegisterHandler("id-a", stubHandler{itemType: "journalArticle"})

	h, ok := HandlerFor("id-a")
	if !ok {
		t.Fatal("registered handler not found")
	}
	name, err := h.Detect(context.Background(), &Capabilities{})
	if err != nil || name != "journalArticle" {
		t.Errorf("Detect returned %q, %v", name, err)
	}

	ids := Handlers()
	if len(ids) != 2 || ids[0] != "id-a" || ids[1] != "id-b" {
		t.Errorf("Handlers not sorted: %v", ids)
	}

	RegisterHandler("id-a", stubHandler{itemType: "webpage"})
	h, _ = HandlerFor("id-a")
	if name, _ := h.Detect(context.Background(), &Capabilities{}); name != "webpage" {
		t.Error("re-registration should replace the handler")
	}

	ClearHandlers()
	if len(Handlers()) != 0 {
		t.Error("ClearHandlers left bindings behind")
	}
}
