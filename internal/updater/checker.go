package updater

import (
	"context"
	"sync"
	"time"

	"github.com/aetherment-labs/aetherment/internal/metrics"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// DefaultConcurrency bounds parallel checks during a sweep.
const DefaultConcurrency = 4

// Installer installs a mod resolved from its repository.
type Installer interface {
	DownloadMod(ctx context.Context, m *mod.Mod) error
}

// Checker runs auto-update sweeps.
type Checker struct {
	remote      mod.RemoteRepository
	installer   Installer
	metrics     *metrics.Metrics
	concurrency int
	reportDir   string
	force       bool
	checkOnly   bool

	wg   sync.WaitGroup
	mu   sync.Mutex
	last *Report
}

// Option configures a Checker.
type Option func(*Checker)

// WithMetrics records check outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithConcurrency sets how many mods are checked at once.
func WithConcurrency(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithReportDir persists each sweep report in dir.
func WithReportDir(dir string) Option {
	return func(c *Checker) {
		c.reportDir = dir
	}
}

// WithForce installs whatever the repository serves, even when the
// installed version is not older.
func WithForce(force bool) Option {
	return func(c *Checker) {
		c.force = force
	}
}

// WithCheckOnly reports available updates without installing them.
func WithCheckOnly(checkOnly bool) Option {
	return func(c *Checker) {
		c.checkOnly = checkOnly
	}
}

// NewChecker creates a Checker.
func NewChecker(remote mod.RemoteRepository, installer Installer, opts ...Option) *Checker {
	c := &Checker{
		remote:      remote,
		installer:   installer,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sweep checks every auto-update mod in mods. A failing check is recorded
// in the report and never stops the others.
func (c *Checker) Sweep(ctx context.Context, mods []mod.Mod) *Report {
	start := time.Now()

	var targets []mod.Mod
	for _, m := range mods {
		if m.AutoUpdate && !m.Local && !m.Repo.IsZero() {
			targets = append(targets, m)
		}
	}

	results := make([]Result, len(targets))
	p := pool.New().WithMaxGoroutines(c.concurrency)
	for i := range targets {
		p.Go(func() {
			results[i] = c.check(ctx, targets[i])
		})
	}
	p.Wait()

	report := &Report{CheckedAt: start, Results: results}
	c.metrics.SweepDone(time.Since(start).Seconds())

	c.mu.Lock()
	c.last = report
	c.mu.Unlock()

	if c.reportDir != "" {
		if err := SaveReport(c.reportDir, report); err != nil {
			log.Warn().Err(err).Msg("Could not save update report")
		}
	}

	log.Info().
		Int("checked", len(results)).
		Int("updated", report.Count(OutcomeUpdated)).
		Int("failed", report.Count(OutcomeFailed)).
		Dur("took", time.Since(start)).
		Msg("Update sweep finished")
	return report
}

// Start runs Sweep in the background. Cancel ctx to abort it; Wait joins it.
func (c *Checker) Start(ctx context.Context, mods []mod.Mod) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Sweep(ctx, mods)
	}()
}

// Wait blocks until background sweeps have finished.
func (c *Checker) Wait() {
	c.wg.Wait()
}

// Last returns the report of the most recent sweep, or nil.
func (c *Checker) Last() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Checker) check(ctx context.Context, m mod.Mod) Result {
	res := Result{
		ID:             m.ID,
		Repo:           m.Repo.String(),
		CurrentVersion: m.Version,
	}
	logger := log.With().Str("mod", m.ID).Str("repo", res.Repo).Logger()

	fail := func(err error, msg string) Result {
		logger.Error().Err(err).Msg(msg)
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		c.metrics.Check(metrics.CheckFailed)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err, "Update check skipped")
	}

	latest, err := c.remote.GetMod(ctx, m.Repo, m.ID)
	if err != nil {
		return fail(err, "Update check failed")
	}
	if latest == nil {
		logger.Warn().Msg("Mod no longer in its repository")
		res.Outcome = OutcomeMissing
		c.metrics.Check(metrics.CheckMissing)
		return res
	}
	res.LatestVersion = latest.Version

	if !c.force && !NeedsUpdate(m.Version, latest.Version) {
		res.Outcome = OutcomeUpToDate
		c.metrics.Check(metrics.CheckUpToDate)
		return res
	}

	if c.checkOnly {
		res.Outcome = OutcomeAvailable
		c.metrics.Check(metrics.CheckAvailable)
		return res
	}

	if err := c.installer.DownloadMod(ctx, latest); err != nil {
		return fail(err, "Update install failed")
	}
	res.Outcome = OutcomeUpdated
	c.metrics.Check(metrics.CheckUpdated)
	return res
}
