// Package runner drives one recorded test through a translator and
// classifies the outcome. Each invocation owns its own timeout,
// selection counter, and page handle; nothing is shared across
// concurrent runs.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/normalize"
	"github.com/zotero/translate/core/testcase"
	"github.com/zotero/translate/core/translator"
	"github.com/zotero/translate/core/webenv"
	"github.com/zotero/translate/internal/logging"
)

// Fixed run policy.
const (
	// DefaultDeferDelay is the settle wait applied when a test declares
	// defer without a duration and the page is not confirmed loaded.
	DefaultDeferDelay = 5 * time.Second

	// RunTimeout is the hard ceiling for one test run.
	RunTimeout = 15 * time.Second

	// SelectionTruncate bounds how many candidates a selection handler
	// keeps.
	SelectionTruncate = 3
)

// Config assembles a Runner. The zero value works: the default HTTP
// environment, the fixed policy constants, and a debug sink that
// forwards translator chatter to the process logger.
type Config struct {
	Environment webenv.Environment

	// Debug receives translator debug emissions.
	Debug func(msg string)

	// Progress, when set, receives each test result as RunAll settles
	// it, before the report is assembled.
	Progress func(ev Progress)

	// DeferDelay and Timeout override the fixed policy, used by tests
	// that cannot afford real waits.
	DeferDelay time.Duration
	Timeout    time.Duration
}

// Runner executes recorded tests against translators.
type Runner struct {
	env        webenv.Environment
	debug      func(msg string)
	progress   func(ev Progress)
	deferDelay time.Duration
	timeout    time.Duration
}

// New builds a Runner from the config.
func New(cfg Config) *Runner {
	if cfg.Environment == nil {
		cfg.Environment = webenv.NewHTTP(webenv.HTTPConfig{})
	}
	if cfg.Debug == nil {
		cfg.Debug = func(msg string) {
			logging.Debug("translator debug", "message", msg)
		}
	}
	if cfg.DeferDelay == 0 {
		cfg.DeferDelay = DefaultDeferDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = RunTimeout
	}
	return &Runner{
		env:        cfg.Environment,
		debug:      cfg.Debug,
		progress:   cfg.Progress,
		deferDelay: cfg.DeferDelay,
		timeout:    cfg.Timeout,
	}
}

// Run executes one test against the translator and classifies the
// result. It never panics and never returns an error: every path,
// including faults inside translator code, terminates in an Outcome.
func (r *Runner) Run(ctx context.Context, tr *translator.Translator, test *testcase.Test) Outcome {
	return r.run(ctx, tr, test, 0)
}

func (r *Runner) run(ctx context.Context, tr *translator.Translator, test *testcase.Test, index int) (outcome Outcome) {
	runID := logging.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome = failure(fmt.Sprintf("%v", rec))
		}
		logging.RunOutcome(runID, tr.TranslatorID, index, string(outcome.Status), outcome.Reason)
	}()

	logging.RunStart(runID, tr.TranslatorID, index, string(test.Type))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	switch test.Type {
	case testcase.TypeExport:
		return failure(ReasonNotSupported)
	case testcase.TypeImport, testcase.TypeSearch:
		return r.runDirect(ctx, runID, tr, test)
	case testcase.TypeWeb:
		return r.runWeb(ctx, runID, tr, test)
	default:
		return failure(fmt.Sprintf("unknown test type %q", test.Type))
	}
}

// runDirect drives import and search tests: a forced detection pass
// restricted to the translator under test, then extraction.
func (r *Runner) runDirect(ctx context.Context, runID string, tr *translator.Translator, test *testcase.Test) Outcome {
	handler, ok := translator.HandlerFor(tr.TranslatorID)
	if !ok {
		return failure(fmt.Sprintf("no execution handler bound for translator %s", tr.TranslatorID))
	}

	caps := &translator.Capabilities{
		Translator: tr,
		Input:      test.Input.Text,
		Query:      test.Input.Query,
		Debug:      r.debug,
		Error: func(err error) {
			logging.Warn("translator error", "run_id", runID, "error", err.Error())
		},
	}

	detected, err := handler.Detect(ctx, caps)
	if err != nil {
		return r.failureFromErr(err)
	}
	if detected == "" {
		return r.classify(test, "", testcase.Items{}, ReasonDetectionFailed)
	}

	records, err := handler.Extract(ctx, caps)
	if err != nil {
		return r.failureFromErr(err)
	}
	if len(records) == 0 {
		return r.classify(test, detected, testcase.Items{}, ReasonNoItems)
	}
	return r.classify(test, detected, testcase.Items{List: records}, "")
}

// runWeb drives a web test: acquire the page, optionally wait for it
// to settle, extract through the environment, release the page on
// every exit path, then shape the collected result.
func (r *Runner) runWeb(ctx context.Context, runID string, tr *translator.Translator, test *testcase.Test) Outcome {
	page, err := r.env.AcquirePage(ctx, test.Input.Text)
	if err != nil {
		return r.failureFromErr(err)
	}
	defer r.env.Release(page)

	if !r.env.Loaded(page) && test.Defer.Set {
		if err := r.settleWait(ctx, test.Defer); err != nil {
			return r.failureFromErr(err)
		}
	}

	var selections atomic.Int32
	var reported errCollector
	hooks := &webenv.Hooks{
		Debug:  r.debug,
		Error:  reported.collect,
		Select: r.selectionHandler(runID, &selections),
	}

	result, err := r.env.Extract(ctx, page, tr, hooks)
	if err != nil {
		return r.failureFromErr(err)
	}

	reason := result.Reason
	if reason == "" {
		reason = reported.message()
	}
	records := result.Items
	if len(records) == 0 && reason == "" {
		reason = ReasonNoItems
	}

	// A second selection call is a contract violation whether or not
	// records came back.
	if selections.Load() > 1 {
		return failure(ReasonMultipleSelect)
	}

	var observed testcase.Items
	switch {
	case len(records) == 0:
		// stays absent
	case selections.Load() == 1:
		observed = testcase.Items{Multiple: true}
	default:
		observed = testcase.Items{List: records}
	}
	return r.classify(test, result.DetectedItemType, observed, reason)
}

// classify applies the shared decision procedure to a collected
// result: the expected-failure check for absent items, then type,
// arity, and full structural equality, in that order.
func (r *Runner) classify(test *testcase.Test, detected string, observed testcase.Items, fallbackReason string) Outcome {
	observedExp := testcase.ExpectBool(false)
	if detected != "" {
		observedExp = testcase.ExpectType(detected)
	}

	if !observed.Present() {
		if test.DetectedItemType.IsFalse() && observedExp.IsFalse() {
			return success(nil)
		}
		if fallbackReason == "" {
			fallbackReason = ReasonDetectionFailed
		}
		return failure(fallbackReason)
	}

	observed = normalizeItems(observed)
	matched := test.DetectedItemType.Matches(observedExp)

	// On a match the updated test keeps the expectation's own spelling,
	// so a passing run round-trips to an equal test; on a mismatch it
	// records what was observed, so the discrepancy is visible.
	recorded := observedExp
	if matched {
		recorded = test.DetectedItemType
	}
	updated := test.WithObserved(recorded, observed)

	if !matched {
		return failureWith(ReasonWrongType, updated)
	}
	if test.Items.Multiple != observed.Multiple {
		if test.Items.Multiple {
			return failureWith(reasonArityWantMultiple, updated)
		}
		return failureWith(reasonArityGotMultiple, updated)
	}

	expected := test.WithObserved(test.DetectedItemType, normalizeItems(test.Items))
	if !expected.Equals(updated) {
		return failureWith(ReasonDataMismatch, updated)
	}
	return success(updated)
}

// settleWait pauses for the test's declared defer duration, or the
// default delay for the boolean form, racing the run's deadline.
func (r *Runner) settleWait(ctx context.Context, d testcase.Defer) error {
	delay := r.deferDelay
	if d.Seconds > 0 {
		delay = time.Duration(d.Seconds * float64(time.Second))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// selectionHandler builds the per-run resolver for ambiguous
// multi-candidate detection: truncate the candidate list, count the
// call, schedule the callback asynchronously, and hand the same
// answer back directly for callers that ignore the callback.
func (r *Runner) selectionHandler(runID string, counter *atomic.Int32) translator.SelectFunc {
	return func(candidates []translator.Candidate, callback func([]translator.Candidate)) []translator.Candidate {
		count := counter.Add(1)
		kept := candidates
		if len(kept) > SelectionTruncate {
			kept = kept[:SelectionTruncate]
		}
		logging.SelectionEvent(runID, int(count), len(candidates), len(kept))
		if callback != nil {
			go callback(kept)
		}
		return kept
	}
}

func (r *Runner) failureFromErr(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errors.ErrTimeout) {
		return failure(ReasonTimedOut)
	}
	return failure(err.Error())
}

func normalizeItems(items testcase.Items) testcase.Items {
	if items.Multiple || items.List == nil {
		return items
	}
	return testcase.Items{List: normalize.All(items.List)}
}

// errCollector keeps the first error reported through the error sink.
type errCollector struct {
	mu    sync.Mutex
	first error
}

func (c *errCollector) collect(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.first == nil {
		c.first = err
	}
}

func (c *errCollector) message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.first == nil {
		return ""
	}
	return c.first.Error()
}
