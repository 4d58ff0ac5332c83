package webenv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/translator"
)

const (
	defaultUserAgent = "translate-tester/1.0"
	defaultTimeout   = 30 * time.Second

	// maxBodyBytes bounds how much of a response is read into memory.
	maxBodyBytes = 16 << 20
)

// HTTPConfig configures the default environment. The zero value works.
type HTTPConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the underlying round tripper, mainly for
	// tests that stub the network.
	Transport http.RoundTripper
}

// HTTPEnvironment fetches documents over plain HTTP and executes
// translators through their registered handlers.
type HTTPEnvironment struct {
	cfg HTTPConfig
}

// NewHTTP builds the default HTTP-backed environment.
func NewHTTP(cfg HTTPConfig) *HTTPEnvironment {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPEnvironment{cfg: cfg}
}

// httpPage is one fetched document plus the cookie-scoped client that
// fetched it, kept so translator-initiated requests share the scope.
type httpPage struct {
	finalURL string
	doc      *goquery.Document
	root     *html.Node
	client   *http.Client
	ua       string
}

// AcquirePage fetches url and parses the response as HTML. The client
// is built per call with a fresh cookie jar, so cookies set during one
// run never leak into another.
func (e *HTTPEnvironment) AcquirePage(ctx context.Context, url string) (Page, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating cookie jar")
	}
	client := &http.Client{
		Jar:       jar,
		Timeout:   e.cfg.Timeout,
		Transport: e.cfg.Transport,
	}

	body, finalURL, err := get(ctx, client, url, e.cfg.UserAgent)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewParse("document", url, err.Error())
	}

	return &httpPage{
		finalURL: finalURL,
		doc:      doc,
		root:     firstNode(doc),
		client:   client,
		ua:       e.cfg.UserAgent,
	}, nil
}

// Loaded reports true for any page this environment produced: a fully
// read and parsed response is as loaded as plain HTTP can confirm.
func (e *HTTPEnvironment) Loaded(page Page) bool {
	_, ok := page.(*httpPage)
	return ok
}

// Extract resolves the translator's execution handler and drives the
// detection-then-extraction pipeline against the page.
func (e *HTTPEnvironment) Extract(ctx context.Context, page Page, tr *translator.Translator, hooks *Hooks) (*translator.Result, error) {
	if hooks == nil {
		hooks = &Hooks{}
	}
	handler, ok := translator.HandlerFor(tr.TranslatorID)
	if !ok {
		return nil, errors.NewUnsupported("translator execution",
			fmt.Sprintf("no execution handler bound for %s", tr.TranslatorID))
	}

	caps := &translator.Capabilities{
		Translator: tr,
		Input:      page.URL(),
		Document:   page,
		Debug:      hooks.Debug,
		Error:      hooks.Error,
		Select:     hooks.Select,
	}
	if hp, ok := page.(*httpPage); ok {
		caps.Fetch = hp.fetch
	}

	detected, err := handler.Detect(ctx, caps)
	if err != nil {
		return &translator.Result{Reason: err.Error()}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if detected == "" {
		return &translator.Result{}, nil
	}

	items, err := handler.Extract(ctx, caps)
	if err != nil {
		return &translator.Result{DetectedItemType: detected, Reason: err.Error()}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &translator.Result{DetectedItemType: detected, Items: items}, nil
}

// Release drops connections held by the page's cookie-scoped client.
func (e *HTTPEnvironment) Release(page Page) {
	hp, ok := page.(*httpPage)
	if !ok || hp.client == nil {
		return
	}
	hp.client.CloseIdleConnections()
	hp.client = nil
}

func get(ctx context.Context, client *http.Client, url, ua string) (body []byte, finalURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errors.NewValidationValue("url", url, err.Error())
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", errors.NewIO("fetch page", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", errors.NewIO("fetch page", url,
			fmt.Errorf("server returned %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", errors.NewIO("read page body", url, err)
	}
	return data, resp.Request.URL.String(), nil
}

func firstNode(doc *goquery.Document) *html.Node {
	if len(doc.Nodes) > 0 {
		return doc.Nodes[0]
	}
	return nil
}

func (p *httpPage) URL() string {
	return p.finalURL
}

func (p *httpPage) Title() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

func (p *httpPage) Meta(key string) string {
	all := p.MetaAll(key)
	if len(all) == 0 {
		return ""
	}
	return all[0]
}

func (p *httpPage) MetaAll(key string) []string {
	var out []string
	p.doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok {
			name, _ = s.Attr("property")
		}
		if name != key {
			return
		}
		if content, ok := s.Attr("content"); ok {
			out = append(out, content)
		}
	})
	return out
}

func (p *httpPage) Text(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func (p *httpPage) Attr(selector, attr string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok {
			out = append(out, v)
		}
	})
	return out
}

func (p *httpPage) HTML() (string, error) {
	if p.root == nil {
		return "", errors.Wrap(errors.ErrInternal, "page has no parsed document")
	}
	var sb strings.Builder
	if err := html.Render(&sb, p.root); err != nil {
		return "", errors.Wrap(err, "rendering document")
	}
	return sb.String(), nil
}

// fetch issues a translator-initiated GET inside the page's cookie
// scope.
func (p *httpPage) fetch(ctx context.Context, url string) ([]byte, error) {
	if p.client == nil {
		return nil, errors.Wrap(errors.ErrInternal, "page already released")
	}
	body, _, err := get(ctx, p.client, url, p.ua)
	return body, err
}
