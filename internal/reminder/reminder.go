// Package reminder sends a study digest on a cron schedule when cards or
// topics are due.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/conorfennell/revise/internal/analytics"
	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/storage"
)

// Source is the read side of the scheduler a digest is built from.
type Source interface {
	Today() time.Time
	DueCount(ctx context.Context, subjectID int64) (int, error)
	OverdueCount(ctx context.Context, subjectID int64) (int, error)
	DueCountsBySubject(ctx context.Context) ([]storage.SubjectCount, error)
	DueTopics(ctx context.Context, subjectID int64) ([]domain.TopicState, error)
	Streak(ctx context.Context) (analytics.StreakSummary, error)
}

// Digest summarises what is waiting to be studied.
type Digest struct {
	Date     time.Time
	Due      int
	Overdue  int
	Subjects []storage.SubjectCount
	Topics   []string
	Streak   analytics.StreakSummary
}

// Empty reports whether there is nothing to remind about.
func (d Digest) Empty() bool {
	return d.Due == 0 && len(d.Topics) == 0
}

// Text renders the digest as a plain text message.
func (d Digest) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revision for %s\n", domain.FormatDate(d.Date))
	fmt.Fprintf(&b, "%d cards due", d.Due)
	if d.Overdue > 0 {
		fmt.Fprintf(&b, " (%d overdue)", d.Overdue)
	}
	b.WriteString("\n")
	for _, s := range d.Subjects {
		fmt.Fprintf(&b, "  %s: %d\n", s.SubjectName, s.Count)
	}
	if len(d.Topics) > 0 {
		fmt.Fprintf(&b, "Topics to revisit: %s\n", strings.Join(d.Topics, ", "))
	}
	if d.Streak.Current > 0 {
		fmt.Fprintf(&b, "Current streak: %d days, keep it going!\n", d.Streak.Current)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildDigest collects today's due work from source.
func BuildDigest(ctx context.Context, source Source) (Digest, error) {
	d := Digest{Date: source.Today()}
	var err error
	if d.Due, err = source.DueCount(ctx, 0); err != nil {
		return d, err
	}
	if d.Overdue, err = source.OverdueCount(ctx, 0); err != nil {
		return d, err
	}
	if d.Subjects, err = source.DueCountsBySubject(ctx); err != nil {
		return d, err
	}
	topics, err := source.DueTopics(ctx, 0)
	if err != nil {
		return d, err
	}
	for _, t := range topics {
		d.Topics = append(d.Topics, t.Topic)
	}
	if d.Streak, err = source.Streak(ctx); err != nil {
		return d, err
	}
	return d, nil
}

// Notifier delivers a digest.
type Notifier interface {
	Notify(ctx context.Context, d Digest) error
}

// LogNotifier writes digests to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, d Digest) error {
	n.Logger.InfoContext(ctx, "Study reminder",
		"date", domain.FormatDate(d.Date),
		"due", d.Due,
		"overdue", d.Overdue,
		"topics", d.Topics,
		"streak", d.Streak.Current,
	)
	return nil
}

// Scheduler runs the reminder job on a cron expression.
type Scheduler struct {
	cron     *gocron.Scheduler
	source   Source
	notifier Notifier
	log      *slog.Logger
}

// NewScheduler evaluates cron expressions in loc.
func NewScheduler(source Source, notifier Notifier, logger *slog.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()
	return &Scheduler{cron: cron, source: source, notifier: notifier, log: logger}
}

// Start registers the job and starts the scheduler without blocking. The job
// runs with ctx until Stop is called.
func (s *Scheduler) Start(ctx context.Context, expr string) error {
	if _, err := s.cron.Cron(expr).Do(s.run, ctx); err != nil {
		return fmt.Errorf("failed to schedule reminder %q: %w", expr, err)
	}
	s.cron.StartAsync()
	s.log.Info("Reminder scheduled", "cron", expr)
	return nil
}

// Stop terminates the scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("Reminder failed", "error", err)
	}
}

// RunOnce builds a digest and sends it unless nothing is due. It reports
// whether a reminder was sent.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	d, err := BuildDigest(ctx, s.source)
	if err != nil {
		return false, fmt.Errorf("failed to build digest: %w", err)
	}
	if d.Empty() {
		s.log.Debug("Nothing due, skipping reminder", "date", domain.FormatDate(d.Date))
		return false, nil
	}
	if err := s.notifier.Notify(ctx, d); err != nil {
		return false, fmt.Errorf("failed to send reminder: %w", err)
	}
	return true, nil
}
