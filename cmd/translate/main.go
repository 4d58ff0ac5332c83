// Command translate is the CLI for the translator test framework.
// It inspects translator modules, runs their recorded tests, manages
// run history and fixture corpora, and serves the REST API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/zotero/translate/core/query"
	"github.com/zotero/translate/core/runner"
	"github.com/zotero/translate/core/sqlite"
	"github.com/zotero/translate/core/testcase"
	"github.com/zotero/translate/core/translator"
	"github.com/zotero/translate/internal/api"
	"github.com/zotero/translate/internal/archive"
	"github.com/zotero/translate/internal/history"
	"github.com/zotero/translate/internal/logging"
	"github.com/zotero/translate/internal/validation"

	// Register the built-in extraction handlers.
	_ "github.com/zotero/translate/internal/builtin"
)

const version = "0.4.0"

// CLI defines the command-line interface for translate.
var CLI struct {
	// Global flags
	TranslatorDir string `name:"translator-dir" short:"d" env:"TRANSLATE_DIR" default:"translators" help:"Directory containing translator modules" type:"path"`
	HistoryDB     string `name:"history-db" env:"TRANSLATE_HISTORY_DB" help:"Run history database path" type:"path"`
	LogLevel      string `name:"log-level" env:"TRANSLATE_LOG_LEVEL" default:"info" help:"Log level (debug, info, warn, error)"`
	LogFormat     string `name:"log-format" default:"text" help:"Log format (text, json)"`

	// Command groups (noun-first organization)
	Translators TranslatorsGroup `cmd:"" help:"Translator inspection (list, show, hash)"`
	Tests       TestsGroup       `cmd:"" help:"Recorded test operations (list, extract, run, record)"`
	Search      SearchGroup      `cmd:"" help:"Search input tools"`
	Runs        RunsGroup        `cmd:"" help:"Run history (list, show)"`
	Corpus      CorpusGroup      `cmd:"" help:"Fixture corpus archives (pack, unpack)"`
	Serve       ServeCmd         `cmd:"" help:"Start REST API + WebSocket server"`
	Version     VersionCmd       `cmd:"" help:"Print version information"`
}

// TranslatorsGroup contains translator inspection operations.
type TranslatorsGroup struct {
	List TranslatorsListCmd `cmd:"" help:"List loaded translators"`
	Show TranslatorShowCmd  `cmd:"" help:"Show one translator's metadata"`
	Hash TranslatorHashCmd  `cmd:"" help:"Print translator source digests"`
}

// TestsGroup contains recorded test operations.
type TestsGroup struct {
	List    TestsListCmd    `cmd:"" help:"List recorded tests"`
	Extract TestsExtractCmd `cmd:"" help:"Extract recorded tests as JSON"`
	Run     TestsRunCmd     `cmd:"" help:"Run recorded tests and report outcomes"`
	Record  TestsRecordCmd  `cmd:"" help:"Re-run tests and record observed results as fixtures"`
}

// SearchGroup contains search input tools.
type SearchGroup struct {
	Parse SearchParseCmd `cmd:"" help:"Parse free text into a structured search query"`
}

// RunsGroup contains run history operations.
type RunsGroup struct {
	List RunsListCmd `cmd:"" help:"List recorded runs"`
	Show RunsShowCmd `cmd:"" help:"Show one recorded run"`
}

// CorpusGroup contains fixture corpus archive operations.
type CorpusGroup struct {
	Pack   CorpusPackCmd   `cmd:"" help:"Pack a translator directory into a corpus archive"`
	Unpack CorpusUnpackCmd `cmd:"" help:"Unpack a corpus archive into a translator directory"`
}

// TranslatorsListCmd lists loaded translators.
type TranslatorsListCmd struct {
	Kind string `help:"Filter by kind (import, export, web, search)"`
	URL  string `help:"Show only web translators whose target matches this URL, in priority order"`
}

func (c *TranslatorsListCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	var list []*translator.Translator
	if c.URL != "" {
		list = reg.ForURL(c.URL)
	} else {
		list = reg.All()
	}

	if c.Kind != "" {
		kind, ok := kindFromName(c.Kind)
		if !ok {
			return fmt.Errorf("unknown kind %q (want import, export, web or search)", c.Kind)
		}
		filtered := list[:0]
		for _, tr := range list {
			if tr.Supports(kind) {
				filtered = append(filtered, tr)
			}
		}
		list = filtered
	}

	if len(list) == 0 {
		fmt.Printf("No translators found in %s\n", reg.Dir())
		return nil
	}

	fmt.Printf("Translators in %s:\n\n", reg.Dir())
	fmt.Printf("%-38s %-20s %5s  %s\n", "ID", "KIND", "TESTS", "LABEL")
	for _, tr := range list {
		fmt.Printf("%-38s %-20s %5d  %s\n",
			tr.TranslatorID, tr.TranslatorType.String(), len(tr.Tests()), tr.Label)
	}
	fmt.Printf("\nTotal: %d translator(s)\n", len(list))
	return nil
}

// TranslatorShowCmd shows one translator's metadata.
type TranslatorShowCmd struct {
	Translator string `arg:"" help:"Translator ID or label"`
}

func (c *TranslatorShowCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	tr, err := reg.Lookup(c.Translator)
	if err != nil {
		return err
	}

	tests, testsErr := tr.TestsChecked()

	fmt.Printf("  Label:        %s\n", tr.Label)
	fmt.Printf("  ID:           %s\n", tr.TranslatorID)
	if tr.Creator != "" {
		fmt.Printf("  Creator:      %s\n", tr.Creator)
	}
	fmt.Printf("  Kind:         %s\n", tr.TranslatorType.String())
	if tr.Target != "" {
		fmt.Printf("  Target:       %s\n", tr.Target)
	}
	fmt.Printf("  Priority:     %d\n", tr.Priority)
	if tr.LastUpdated != "" {
		fmt.Printf("  Last Updated: %s\n", tr.LastUpdated)
	}
	fmt.Printf("  BLAKE3:       %s\n", tr.Hash())
	if testsErr != nil {
		fmt.Printf("  Tests:        broken fixture block (%v)\n", testsErr)
	} else {
		fmt.Printf("  Tests:        %d\n", len(tests))
	}
	if tr.Path != "" {
		fmt.Printf("  Path:         %s\n", tr.Path)
	}
	return nil
}

// TranslatorHashCmd prints translator source digests.
type TranslatorHashCmd struct {
	Translator string `arg:"" optional:"" help:"Translator ID or label (default: all)"`
}

func (c *TranslatorHashCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	if c.Translator != "" {
		tr, err := reg.Lookup(c.Translator)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", tr.Hash(), tr.Label)
		return nil
	}

	for _, tr := range reg.All() {
		fmt.Printf("%s  %s\n", tr.Hash(), tr.Label)
	}
	return nil
}

// TestsListCmd lists recorded tests.
type TestsListCmd struct {
	Translator string `arg:"" optional:"" help:"Translator ID or label (default: summarize all)"`
}

func (c *TestsListCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	if c.Translator == "" {
		total := 0
		fmt.Printf("%5s  %s\n", "TESTS", "TRANSLATOR")
		for _, tr := range reg.All() {
			n := len(tr.Tests())
			if n == 0 {
				continue
			}
			fmt.Printf("%5d  %s\n", n, tr.Label)
			total += n
		}
		fmt.Printf("\nTotal: %d test(s)\n", total)
		return nil
	}

	tr, err := reg.Lookup(c.Translator)
	if err != nil {
		return err
	}
	tests, err := tr.TestsChecked()
	if err != nil {
		return fmt.Errorf("broken fixture block in %s: %w", tr.Label, err)
	}
	if len(tests) == 0 {
		fmt.Printf("No recorded tests in %s\n", tr.Label)
		return nil
	}

	fmt.Printf("Recorded tests in %s:\n\n", tr.Label)
	for i, tc := range tests {
		fmt.Printf("  %d. [%s] %s\n", i, tc.Type, inputSummary(tc))
		if tc.Defer.Set {
			fmt.Printf("       defer: %s\n", deferSummary(tc.Defer))
		}
		if !tc.DetectedItemType.Absent() {
			fmt.Printf("       detect: %s\n", tc.DetectedItemType.String())
		}
		if tc.Items.Present() {
			if tc.Items.Multiple {
				fmt.Printf("       items: multiple\n")
			} else {
				fmt.Printf("       items: %d\n", tc.Items.Count())
			}
		}
	}
	fmt.Printf("\nTotal: %d test(s)\n", len(tests))
	return nil
}

// TestsExtractCmd extracts recorded tests as JSON.
type TestsExtractCmd struct {
	Translator string `arg:"" help:"Translator ID or label"`
	Index      int    `default:"-1" help:"Extract only the test at this index"`
	Out        string `short:"o" help:"Output file or directory (default: stdout)" type:"path"`
}

func (c *TestsExtractCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	tr, err := reg.Lookup(c.Translator)
	if err != nil {
		return err
	}
	tests, err := tr.TestsChecked()
	if err != nil {
		return fmt.Errorf("broken fixture block in %s: %w", tr.Label, err)
	}
	if len(tests) == 0 {
		return fmt.Errorf("no recorded tests in %s", tr.Label)
	}

	if c.Index >= 0 {
		if c.Index >= len(tests) {
			return fmt.Errorf("test index %d out of range (have %d)", c.Index, len(tests))
		}
		tests = tests[c.Index : c.Index+1]
	}

	data, err := json.MarshalIndent(tests, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode tests: %w", err)
	}

	if c.Out == "" {
		fmt.Println(string(data))
		return nil
	}

	outPath := c.Out
	if info, err := os.Stat(outPath); err == nil && info.IsDir() {
		name, err := validation.SanitizeFilename(tr.Label + ".json")
		if err != nil {
			return fmt.Errorf("cannot derive a file name from %q: %w", tr.Label, err)
		}
		outPath = filepath.Join(outPath, name)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write tests: %w", err)
	}
	fmt.Printf("Extracted %d test(s): %s\n", len(tests), outPath)
	return nil
}

// TestsRunCmd runs recorded tests and reports outcomes.
type TestsRunCmd struct {
	Translator string        `arg:"" optional:"" help:"Translator ID or label (default: every translator with tests)"`
	Timeout    time.Duration `help:"Per-test timeout (0 = default)"`
	NoHistory  bool          `name:"no-history" help:"Skip recording reports to run history"`
}

func (c *TestsRunCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	var targets []*translator.Translator
	if c.Translator != "" {
		tr, err := reg.Lookup(c.Translator)
		if err != nil {
			return err
		}
		if _, err := tr.TestsChecked(); err != nil {
			return fmt.Errorf("broken fixture block in %s: %w", tr.Label, err)
		}
		targets = append(targets, tr)
	} else {
		for _, tr := range reg.All() {
			if len(tr.Tests()) > 0 {
				targets = append(targets, tr)
			}
		}
	}
	if len(targets) == 0 {
		fmt.Println("No recorded tests to run.")
		return nil
	}

	var store *history.Store
	if !c.NoHistory && CLI.HistoryDB != "" {
		store, err = openHistory()
		if err != nil {
			return err
		}
		defer store.Close()
	}

	run := runner.New(runner.Config{Timeout: c.Timeout})
	ctx := context.Background()

	passed, failed := 0, 0
	var failures []string
	for _, tr := range targets {
		fmt.Printf("%s\n", tr.Label)

		rep := run.RunAll(ctx, tr)
		if len(rep.Results) == 0 {
			fmt.Println("  (no tests)")
			fmt.Println()
			continue
		}
		for _, res := range rep.Results {
			printResult(res)
			if res.Status == runner.StatusSuccess {
				passed++
			} else {
				failed++
				failures = append(failures, fmt.Sprintf("%s #%d: %s", tr.Label, res.Index, res.Reason))
			}
		}

		if store != nil {
			if err := store.Record(ctx, rep); err != nil {
				logging.Warn("failed to record run", "run_id", rep.RunID, "error", err)
			} else {
				fmt.Printf("  Recorded: %s\n", rep.RunID)
			}
		}
		fmt.Println()
	}

	fmt.Printf("Results: %d passed, %d failed\n", passed, failed)

	if failed > 0 {
		fmt.Println("\nFailures:")
		for _, f := range failures {
			fmt.Printf("  - %s\n", f)
		}
		return fmt.Errorf("%d test(s) failed", failed)
	}
	return nil
}

// TestsRecordCmd re-runs tests and records observed results as fixtures.
type TestsRecordCmd struct {
	Translator string `arg:"" help:"Translator ID or label"`
	Out        string `short:"o" help:"Write the updated source here instead of in place" type:"path"`
}

func (c *TestsRecordCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	tr, err := reg.Lookup(c.Translator)
	if err != nil {
		return err
	}
	tests, err := tr.TestsChecked()
	if err != nil {
		return fmt.Errorf("broken fixture block in %s: %w", tr.Label, err)
	}
	if len(tests) == 0 {
		return fmt.Errorf("no recorded tests in %s", tr.Label)
	}

	fmt.Printf("Recording tests for %s\n", tr.Label)

	run := runner.New(runner.Config{})
	rep := run.RunAll(context.Background(), tr)

	recorded := make([]*testcase.Test, len(tests))
	updated := 0
	for i, tc := range tests {
		recorded[i] = tc
		if i < len(rep.Results) && rep.Results[i].Updated != nil {
			recorded[i] = rep.Results[i].Updated
			updated++
			fmt.Printf("  [UPDATED] %d: %s\n", i, tc.Type)
		} else {
			fmt.Printf("  [KEPT]    %d: %s (no result collected)\n", i, tc.Type)
		}
	}

	outPath := c.Out
	if outPath == "" {
		outPath = tr.Path
	}
	if outPath == "" {
		return fmt.Errorf("translator %s has no source path, use --out", tr.Label)
	}

	source, err := os.ReadFile(tr.Path)
	if err != nil {
		return fmt.Errorf("failed to read translator source: %w", err)
	}
	newSource, err := translator.ReplaceFixtures(string(source), recorded)
	if err != nil {
		return fmt.Errorf("failed to rewrite fixture block: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(newSource), 0644); err != nil {
		return fmt.Errorf("failed to write translator source: %w", err)
	}

	fmt.Printf("\nRecorded %d of %d test(s): %s\n", updated, len(tests), outPath)
	return nil
}

// SearchParseCmd parses free text into a structured search query.
type SearchParseCmd struct {
	Text []string `arg:"" help:"Search text (an identifier or field:value terms)"`
}

func (c *SearchParseCmd) Run() error {
	parsed, err := query.Parse(strings.Join(c.Text, " "))
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// RunsListCmd lists recorded runs.
type RunsListCmd struct {
	Limit int `default:"20" help:"Maximum runs to show (0 = all)"`
}

func (c *RunsListCmd) Run() error {
	store, err := openHistoryReadOnly()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-38s %-22s %-8s %-9s %s\n", "RUN", "WHEN", "STATUS", "PASS/FAIL", "TRANSLATOR")
	for _, e := range entries {
		fmt.Printf("%-38s %-22s %-8s %4d/%-4d %s\n",
			e.RunID, e.CreatedAt, e.Status, e.Passed, e.Failed, e.TranslatorLabel)
	}
	fmt.Printf("\nTotal: %d run(s)\n", len(entries))
	return nil
}

// RunsShowCmd shows one recorded run.
type RunsShowCmd struct {
	RunID string `arg:"" name:"run" help:"Run ID"`
	JSON  bool   `help:"Output the full report as JSON"`
}

func (c *RunsShowCmd) Run() error {
	store, err := openHistoryReadOnly()
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := store.Get(context.Background(), c.RunID)
	if err != nil {
		return err
	}

	if c.JSON {
		data, err := rep.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("  Run:        %s\n", rep.RunID)
	fmt.Printf("  Translator: %s (%s)\n", rep.Translator, rep.TranslatorID)
	fmt.Printf("  Hash:       %s\n", rep.TranslatorHash)
	fmt.Printf("  Created:    %s\n", rep.CreatedAt)
	fmt.Printf("  Status:     %s\n", rep.Status)
	fmt.Println()
	for _, res := range rep.Results {
		printResult(res)
	}
	return nil
}

// CorpusPackCmd packs a translator directory into a corpus archive.
type CorpusPackCmd struct {
	Out         string `arg:"" help:"Output archive path" type:"path"`
	Dir         string `help:"Translator directory to pack (default: --translator-dir)" type:"path"`
	Name        string `help:"Corpus name recorded in the manifest"`
	Compression string `default:"xz" enum:"xz,gzip" help:"Archive compression"`
}

func (c *CorpusPackCmd) Run() error {
	dir := c.Dir
	if dir == "" {
		dir = CLI.TranslatorDir
	}
	if err := validation.ValidatePath(dir); err != nil {
		return fmt.Errorf("invalid translator directory: %w", err)
	}

	opts := &archive.PackOptions{
		Compression: archive.CompressionType(c.Compression),
		Name:        c.Name,
	}
	manifest, err := archive.Pack(dir, c.Out, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Packed corpus: %s\n", c.Out)
	fmt.Printf("  Name:        %s\n", manifest.Name)
	fmt.Printf("  Translators: %d\n", manifest.TranslatorCount)
	fmt.Printf("  Created:     %s\n", manifest.CreatedAt)
	if info, err := os.Stat(c.Out); err == nil {
		fmt.Printf("  Size:        %d bytes\n", info.Size())
	}
	return nil
}

// CorpusUnpackCmd unpacks a corpus archive into a translator directory.
type CorpusUnpackCmd struct {
	Archive string `arg:"" help:"Corpus archive path" type:"existingfile"`
	Out     string `arg:"" help:"Destination directory" type:"path"`
}

func (c *CorpusUnpackCmd) Run() error {
	manifest, err := archive.Unpack(c.Archive, c.Out)
	if err != nil {
		return err
	}

	fmt.Printf("Unpacked corpus: %s\n", manifest.Name)
	fmt.Printf("  Translators: %d\n", manifest.TranslatorCount)
	fmt.Printf("  Destination: %s\n", c.Out)

	reg, err := translator.LoadDir(c.Out)
	if err != nil {
		return fmt.Errorf("unpacked directory does not load: %w", err)
	}
	fmt.Printf("  Loaded:      %d translator(s) (verified)\n", reg.Len())
	return nil
}

// ServeCmd starts the REST API and WebSocket server.
type ServeCmd struct {
	Port      int           `default:"1969" help:"HTTP server port"`
	APIKey    string        `name:"api-key" env:"TRANSLATE_API_KEY" help:"API key clients must present (enables auth)"`
	Origins   []string      `help:"Allowed CORS origins (default: allow all)"`
	RateLimit int           `name:"rate-limit" help:"Requests per minute per client (0 = disabled)"`
	RateBurst int           `name:"rate-burst" default:"10" help:"Burst size for rate limiting"`
	Reload    time.Duration `default:"5s" help:"How often translators are reloaded from disk"`
	TLSCert   string        `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey    string        `name:"tls-key" help:"TLS private key file" type:"path"`
}

func (c *ServeCmd) Run() error {
	if err := validation.ValidatePath(CLI.TranslatorDir); err != nil {
		return fmt.Errorf("invalid translator directory: %w", err)
	}
	if CLI.HistoryDB != "" {
		if err := validation.ValidatePath(CLI.HistoryDB); err != nil {
			return fmt.Errorf("invalid history database path: %w", err)
		}
	}

	cfg := api.Config{
		Port:              c.Port,
		TranslatorDir:     CLI.TranslatorDir,
		HistoryDB:         CLI.HistoryDB,
		ReloadInterval:    c.Reload,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		AllowedOrigins:    c.Origins,
		Auth: api.AuthConfig{
			Enabled: c.APIKey != "",
			APIKey:  c.APIKey,
		},
		TLS: api.TLSConfig{
			Enabled:  c.TLSCert != "" || c.TLSKey != "",
			CertFile: c.TLSCert,
			KeyFile:  c.TLSKey,
		},
	}
	if !cfg.Auth.Enabled {
		logging.Warn("authentication disabled", "hint", api.GenerateAPIKeyExample())
	}
	return api.Start(cfg)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("translate version %s\n", version)
	info := sqlite.GetInfo()
	fmt.Printf("  SQLite driver: %s (%s)\n", info.DriverType, info.Package)
	return nil
}

// Helper functions

func loadRegistry() (*translator.Registry, error) {
	if err := validation.ValidatePath(CLI.TranslatorDir); err != nil {
		return nil, fmt.Errorf("invalid translator directory: %w", err)
	}
	reg, err := translator.LoadDir(CLI.TranslatorDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load translators: %w", err)
	}
	return reg, nil
}

func openHistory() (*history.Store, error) {
	if CLI.HistoryDB == "" {
		return nil, fmt.Errorf("no history database configured (set --history-db or TRANSLATE_HISTORY_DB)")
	}
	if err := validation.ValidatePath(CLI.HistoryDB); err != nil {
		return nil, fmt.Errorf("invalid history database path: %w", err)
	}
	return history.Open(CLI.HistoryDB)
}

func openHistoryReadOnly() (*history.Store, error) {
	if CLI.HistoryDB == "" {
		return nil, fmt.Errorf("no history database configured (set --history-db or TRANSLATE_HISTORY_DB)")
	}
	if err := validation.ValidatePath(CLI.HistoryDB); err != nil {
		return nil, fmt.Errorf("invalid history database path: %w", err)
	}
	return history.OpenReadOnly(CLI.HistoryDB)
}

func kindFromName(name string) (translator.Kind, bool) {
	switch strings.ToLower(name) {
	case "import":
		return translator.KindImport, true
	case "export":
		return translator.KindExport, true
	case "web":
		return translator.KindWeb, true
	case "search":
		return translator.KindSearch, true
	}
	return 0, false
}

func printResult(res runner.TestResult) {
	if res.Status == runner.StatusSuccess {
		fmt.Printf("  [PASS] %d: %s (%dms)\n", res.Index, res.Type, res.DurationMS)
		return
	}
	fmt.Printf("  [FAIL] %d: %s: %s\n", res.Index, res.Type, res.Reason)
	if res.Diff != "" {
		for _, line := range strings.Split(strings.TrimRight(res.Diff, "\n"), "\n") {
			fmt.Printf("    %s\n", line)
		}
	}
}

func inputSummary(tc *testcase.Test) string {
	if tc.Input.IsQuery() {
		data, err := json.Marshal(tc.Input.Query)
		if err != nil {
			return "(query)"
		}
		return string(data)
	}
	text := tc.Input.Text
	if tc.Type != testcase.TypeWeb {
		text = strings.Join(strings.Fields(text), " ")
	}
	if len(text) > 72 {
		text = text[:69] + "..."
	}
	return text
}

func deferSummary(d testcase.Defer) string {
	if d.Seconds > 0 {
		return fmt.Sprintf("%gs", d.Seconds)
	}
	return "default"
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("translate"),
		kong.Description("Translator test framework for bibliographic data extraction"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.LevelFromString(CLI.LogLevel), logging.FormatFromString(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
