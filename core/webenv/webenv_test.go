package webenv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/item"
	"github.com/zotero/translate/core/translator"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>  Sample Article  </title>
<meta name="citation_title" content="On Sampling">
<meta name="citation_author" content="Roe, Jane">
<meta name="citation_author" content="Doe, John">
<meta property="og:type" content="article">
</head>
<body>
<h1>On Sampling</h1>
<a class="pdf" href="/files/sample.pdf">PDF</a>
</body>
</html>`

func servePage(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestAcquirePage(t *testing.T) {
	server := servePage(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/article", http.StatusFound)
			return
		}
		w.Write([]byte(samplePage))
	})

	env := NewHTTP(HTTPConfig{})
	page, err := env.AcquirePage(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("AcquirePage failed: %v", err)
	}
	defer env.Release(page)

	if !strings.HasSuffix(page.URL(), "/article") {
		t.Errorf("final URL not recorded after redirect: %q", page.URL())
	}
	if page.Title() != "Sample Article" {
		t.Errorf("unexpected title %q", page.Title())
	}
	if got := page.Meta("citation_title"); got != "On Sampling" {
		t.Errorf("Meta(citation_title) = %q", got)
	}
	if got := page.Meta("og:type"); got != "article" {
		t.Errorf("property meta not matched: %q", got)
	}
	authors := page.MetaAll("citation_author")
	if len(authors) != 2 || authors[0] != "Roe, Jane" {
		t.Errorf("MetaAll(citation_author) = %v", authors)
	}
	if got := page.Text("h1"); len(got) != 1 || got[0] != "On Sampling" {
		t.Errorf("Text(h1) = %v", got)
	}
	if got := page.Attr("a.pdf", "href"); len(got) != 1 || got[0] != "/files/sample.pdf" {
		t.Errorf("Attr(a.pdf, href) = %v", got)
	}
	htmlOut, err := page.HTML()
	if err != nil || !strings.Contains(htmlOut, "<h1>On Sampling</h1>") {
		t.Errorf("HTML() = %q, %v", htmlOut, err)
	}
	if !env.Loaded(page) {
		t.Error("parsed page should report loaded")
	}
}

func TestAcquirePageStatusError(t *testing.T) {
	server := servePage(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	env := NewHTTP(HTTPConfig{})
	_, err := env.AcquirePage(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	var ioErr *errors.IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("expected IOError, got %T", err)
	}
}

func TestCookieScopes(t *testing.T) {
	var firstRequestCookies []string
	server := servePage(t, func(w http.ResponseWriter, r *http.Request) {
		firstRequestCookies = append(firstRequestCookies, r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		w.Write([]byte(samplePage))
	})

	env := NewHTTP(HTTPConfig{})
	pageA, err := env.AcquirePage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("AcquirePage failed: %v", err)
	}
	defer env.Release(pageA)

	pageB, err := env.AcquirePage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("AcquirePage failed: %v", err)
	}
	defer env.Release(pageB)

	if firstRequestCookies[0] != "" || firstRequestCookies[1] != "" {
		t.Errorf("cookie leaked across acquires: %v", firstRequestCookies)
	}

	// A fetch inside one page's scope carries that scope's cookie.
	hp := pageA.(*httpPage)
	if _, err := hp.fetch(context.Background(), server.URL+"/again"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got := firstRequestCookies[2]; !strings.Contains(got, "session=abc") {
		t.Errorf("page-scoped fetch missing cookie: %q", got)
	}
}

func TestUserAgentHeader(t *testing.T) {
	var gotUA string
	server := servePage(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(samplePage))
	})

	env := NewHTTP(HTTPConfig{UserAgent: "custom-agent/2.0"})
	page, err := env.AcquirePage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("AcquirePage failed: %v", err)
	}
	env.Release(page)
	if gotUA != "custom-agent/2.0" {
		t.Errorf("User-Agent not applied: %q", gotUA)
	}
}

type envStubHandler struct {
	detected string
	items    []item.Item
	fail     error
}

func (h envStubHandler) Detect(ctx context.Context, caps *translator.Capabilities) (string, error) {
	return h.detected, h.fail
}

func (h envStubHandler) Extract(ctx context.Context, caps *translator.Capabilities) ([]item.Item, error) {
	if h.fail != nil {
		return nil, h.fail
	}
	return h.items, nil
}

func TestExtract(t *testing.T) {
	translator.ClearHandlers()
	defer translator.ClearHandlers()

	server := servePage(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	})
	env := NewHTTP(HTTPConfig{})
	page, err := env.AcquirePage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("AcquirePage failed: %v", err)
	}
	defer env.Release(page)

	tr := &translator.Translator{Metadata: translator.Metadata{
		TranslatorID:   "env-test-id",
		Label:          "Env Test",
		TranslatorType: translator.KindWeb,
	}}

	t.Run("no handler bound", func(t *testing.T) {
		_, err := env.Extract(context.Background(), page, tr, nil)
		if err == nil {
			t.Fatal("expected error without a handler")
		}
	})

	translator.RegisterHandler("env-test-id", envStubHandler{
		detected: "journalArticle",
		items:    []item.Item{item.New("journalArticle").Set("title", "On Sampling")},
	})

	t.Run("detection and extraction", func(t *testing.T) {
		result, err := env.Extract(context.Background(), page, tr, &Hooks{})
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if result.DetectedItemType != "journalArticle" {
			t.Errorf("detected %q", result.DetectedItemType)
		}
		if len(result.Items) != 1 || result.Items[0].GetString("title") != "On Sampling" {
			t.Errorf("items %v", result.Items)
		}
	})

	t.Run("undetected yields empty result", func(t *testing.T) {
		translator.RegisterHandler("env-test-id", envStubHandler{detected: ""})
		result, err := env.Extract(context.Background(), page, tr, nil)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if result.DetectedItemType != "" || result.Items != nil || result.Reason != "" {
			t.Errorf("expected empty result, got %+v", result)
		}
	})

	t.Run("handler failure becomes reason", func(t *testing.T) {
		translator.RegisterHandler("env-test-id", envStubHandler{
			detected: "journalArticle",
			fail:     errors.ErrDetectionFailed,
		})
		result, err := env.Extract(context.Background(), page, tr, nil)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if result.Reason == "" {
			t.Error("handler failure should surface as a reason")
		}
	})
}

func TestReleaseTolerant(t *testing.T) {
	env := NewHTTP(HTTPConfig{})
	env.Release(nil)

	server := servePage(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	})
	page, err := env.AcquirePage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("AcquirePage failed: %v", err)
	}
	env.Release(page)
	env.Release(page)
}
