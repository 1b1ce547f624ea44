package sla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

const sourceScanner = "scanner"

// ScannerConfig contains scanner configuration.
type ScannerConfig struct {
	Interval         time.Duration
	BatchSize        int
	Workers          int
	OperationTimeout time.Duration
	// WarningRatio is the consumed share of a deadline budget at which an
	// approaching-deadline warning is sent. Zero disables warnings.
	WarningRatio float64
}

// DefaultScannerConfig returns default scanner configuration.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Interval:         5 * time.Minute,
		BatchSize:        500,
		Workers:          4,
		OperationTimeout: 10 * time.Second,
		WarningRatio:     0.8,
	}
}

// ScanResult summarizes one scan cycle.
type ScanResult struct {
	Scanned   int
	Breached  int
	Repaired  int
	Warned    int
	Conflicts int
	Failed    int
	Duration  time.Duration
}

type outcome int

const (
	outcomeUntouched outcome = iota
	outcomeBreached
	outcomeRepaired
	outcomeWarned
	outcomeConflict
	outcomeFailed
)

func (r *ScanResult) add(o outcome) {
	r.Scanned++
	switch o {
	case outcomeBreached:
		r.Breached++
	case outcomeRepaired:
		r.Repaired++
	case outcomeWarned:
		r.Warned++
	case outcomeConflict:
		r.Conflicts++
	case outcomeFailed:
		r.Failed++
	}
}

// Scanner periodically evaluates open SLAs and records breaches.
type Scanner struct {
	config   ScannerConfig
	repo     Repository
	notifier Notifier
	lock     ScanLock
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScanner creates a new breach scanner. A nil lock uses a LocalLock.
func NewScanner(config ScannerConfig, repo Repository, notifier Notifier, lock ScanLock) *Scanner {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultScannerConfig().BatchSize
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if lock == nil {
		lock = NewLocalLock()
	}
	return &Scanner{
		config:   config,
		repo:     repo,
		notifier: notifier,
		lock:     lock,
		now:      func() time.Time { return time.Now().UTC() },
		stopCh:   make(chan struct{}),
	}
}

// Start launches the scan loop. The first scan runs immediately. A tick
// that arrives while the previous scan is still running is skipped.
func (s *Scanner) Start(ctx context.Context) {
	slog.Info("starting sla scanner",
		"interval", s.config.Interval,
		"batch_size", s.config.BatchSize,
		"workers", s.config.Workers,
	)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the scan loop and waits for a running scan to finish.
func (s *Scanner) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("sla scanner stopped")
}

func (s *Scanner) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scanner) trigger(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.RunScan(ctx, s.now())
		switch {
		case errors.Is(err, ErrScanInProgress):
			slog.Info("sla scan skipped, previous scan still running")
		case err != nil && ctx.Err() == nil:
			slog.Error("sla scan failed", "error", err)
		}
	}()
}

// RunScan evaluates every open SLA as of now. It returns ErrScanInProgress
// without scanning when another scan holds the lock. Failures on single
// SLAs are counted in the result and never abort the cycle.
func (s *Scanner) RunScan(ctx context.Context, now time.Time) (ScanResult, error) {
	release, acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		recordScan("error", 0)
		return ScanResult{}, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !acquired {
		recordScan("skipped", 0)
		return ScanResult{}, ErrScanInProgress
	}
	defer release()

	start := time.Now()
	var (
		mu     sync.Mutex
		result ScanResult
		g      errgroup.Group
		seen   = make(map[string]struct{})
		after  string
	)
	g.SetLimit(s.config.Workers)

	finish := func(err error) (ScanResult, error) {
		_ = g.Wait()
		result.Duration = time.Since(start)
		if err != nil {
			recordScan("error", result.Duration)
			return result, err
		}
		recordScan("success", result.Duration)
		slog.Info("sla scan completed",
			"scanned", result.Scanned,
			"breached", result.Breached,
			"repaired", result.Repaired,
			"warned", result.Warned,
			"conflicts", result.Conflicts,
			"failed", result.Failed,
			"duration", result.Duration,
		)
		return result, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		listCtx, cancel := withTimeout(ctx, s.config.OperationTimeout)
		page, err := s.repo.ListOpen(listCtx, after, s.config.BatchSize)
		cancel()
		if err != nil {
			return finish(fmt.Errorf("list open slas: %w", err))
		}

		for _, item := range page {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}

			g.Go(func() error {
				o := s.processSLA(ctx, item, now)
				mu.Lock()
				result.add(o)
				mu.Unlock()
				return nil
			})
		}

		if len(page) < s.config.BatchSize {
			return finish(nil)
		}
		after = page[len(page)-1].ID
	}
}

// processSLA evaluates one SLA and writes the resulting transition. A
// version conflict reloads the record and evaluates it once more before the
// SLA is left to the next cycle.
func (s *Scanner) processSLA(ctx context.Context, item *domain.SLA, now time.Time) outcome {
	logger := slog.With("sla_id", item.ID, "incident_id", item.IncidentID)

	cur := item
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			reloaded, err := s.reload(ctx, cur.ID)
			if err != nil {
				logger.Warn("failed to reload sla after conflict", "error", err)
				return outcomeFailed
			}
			cur = reloaded
		}

		d, err := s.decide(cur, now)
		if err != nil {
			logger.Error("failed to evaluate sla", "status", cur.Status, "error", err)
			return outcomeFailed
		}
		if d.result == outcomeUntouched {
			return outcomeUntouched
		}

		opCtx, cancel := withTimeout(ctx, s.config.OperationTimeout)
		err = s.repo.ConditionalUpdate(opCtx, &d.next, cur.Version)
		cancel()
		if errors.Is(err, ErrVersionConflict) {
			recordConflict(sourceScanner)
			logger.Debug("sla changed during scan", "version", cur.Version, "attempt", attempt+1)
			continue
		}
		if err != nil {
			logger.Warn("failed to update sla", "error", err)
			return outcomeFailed
		}

		switch d.result {
		case outcomeBreached:
			recordTransition(sourceScanner, "breach_"+string(*d.next.BreachedDeadline))
			logger.Info("sla breached", "deadline", *d.next.BreachedDeadline, "priority", d.next.Priority)
		case outcomeRepaired:
			logger.Info("breach notice recovered", "priority", d.next.Priority)
		case outcomeWarned:
			recordTransition(sourceScanner, "warning")
		}
		for _, notice := range d.notices {
			dispatchNotice(ctx, s.notifier, s.config.OperationTimeout, notice)
		}
		return d.result
	}

	logger.Info("sla left for next scan after repeated conflicts")
	return outcomeConflict
}

func (s *Scanner) reload(ctx context.Context, id string) (*domain.SLA, error) {
	opCtx, cancel := withTimeout(ctx, s.config.OperationTimeout)
	defer cancel()
	return s.repo.GetByID(opCtx, id)
}

type decision struct {
	result  outcome
	next    domain.SLA
	notices []domain.Notice
}

// decide computes the write the scanner should make for an SLA as of now.
func (s *Scanner) decide(cur *domain.SLA, now time.Time) (decision, error) {
	switch cur.Status {
	case domain.SLAStatusMet:
		return decision{result: outcomeUntouched}, nil

	case domain.SLAStatusBreached:
		if cur.BreachNotifiedAt != nil {
			return decision{result: outcomeUntouched}, nil
		}
		next, err := MarkBreachNotified(*cur, now)
		if err != nil {
			return decision{}, err
		}
		return decision{
			result:  outcomeRepaired,
			next:    next,
			notices: []domain.Notice{breachNotice(&next, now)},
		}, nil

	case domain.SLAStatusActive, domain.SLAStatusPaused:
		if kind, overdue := OverdueDeadline(cur, now); overdue {
			next, err := Breach(*cur, kind, now)
			if err != nil {
				return decision{}, err
			}
			if next, err = MarkBreachNotified(next, now); err != nil {
				return decision{}, err
			}
			return decision{
				result:  outcomeBreached,
				next:    next,
				notices: []domain.Notice{breachNotice(&next, now)},
			}, nil
		}
		return s.decideWarnings(cur, now)

	default:
		return decision{}, fmt.Errorf("%w: %q", ErrUnknownStatus, cur.Status)
	}
}

// decideWarnings marks every deadline of an ACTIVE SLA that crossed the
// warning ratio and was not warned about before.
func (s *Scanner) decideWarnings(cur *domain.SLA, now time.Time) (decision, error) {
	if s.config.WarningRatio <= 0 || cur.Status != domain.SLAStatusActive {
		return decision{result: outcomeUntouched}, nil
	}

	next := *cur
	var notices []domain.Notice
	for _, kind := range []domain.DeadlineKind{domain.DeadlineResponse, domain.DeadlineResolution} {
		if cur.Satisfied(kind) || cur.WarnedAt(kind) != nil {
			continue
		}
		if ElapsedFraction(cur, kind, now) < s.config.WarningRatio {
			continue
		}
		var err error
		if next, err = MarkWarned(next, kind, now); err != nil {
			return decision{}, err
		}
		notices = append(notices, newNotice(domain.NoticeWarning, &next, kind, now))
	}

	if len(notices) == 0 {
		return decision{result: outcomeUntouched}, nil
	}
	return decision{result: outcomeWarned, next: next, notices: notices}, nil
}
