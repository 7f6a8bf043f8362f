package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/importer"
	"github.com/conorfennell/revise/internal/reminder"
	"github.com/conorfennell/revise/internal/retrieval"
	"github.com/conorfennell/revise/internal/web"
	"github.com/conorfennell/revise/internal/workbook"
)

const shutdownTimeout = 10 * time.Second

func serveFlags(fs *pflag.FlagSet) {
	fs.Bool("no-import", false, "disable POST /api/import")
}

func runServe(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	opts := web.Options{
		Logger:       a.log,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		DefaultLimit: a.cfg.Review.DefaultLimit,
	}
	if noImport, _ := fs.GetBool("no-import"); !noImport {
		opts.Importer = a.importer()
	}
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           web.NewServer(a.svc, opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var sched *reminder.Scheduler
	if a.cfg.Reminder.Enabled {
		var err error
		if sched, err = a.scheduler(); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if sched != nil {
		if err := sched.Start(ctx, a.cfg.Reminder.Cron); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	}
	g.Go(func() error {
		a.log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *app) scheduler() (*reminder.Scheduler, error) {
	var notifier reminder.Notifier = reminder.LogNotifier{Logger: a.log}
	if tg := a.cfg.Reminder.Telegram; tg.Token != "" {
		n, err := reminder.NewTelegramNotifier(tg.Token, tg.ChatID)
		if err != nil {
			return nil, err
		}
		notifier = n
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	return reminder.NewScheduler(a.svc, notifier, a.log, loc), nil
}

func runRemind(ctx context.Context, a *app, _ *pflag.FlagSet) error {
	sched, err := a.scheduler()
	if err != nil {
		return err
	}
	sent, err := sched.RunOnce(ctx)
	if err != nil {
		return err
	}
	if !sent {
		fmt.Fprintln(a.out, "Nothing due, no reminder sent.")
	}
	return nil
}

func runDue(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	subjectID, _ := fs.GetInt64("subject")
	cards, err := a.svc.DueCards(ctx, subjectID, a.cfg.Review.DefaultLimit)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		fmt.Fprintln(a.out, "No cards due.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tEASE\tTOPIC\tQUESTION")
	for _, c := range cards {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%s\n", c.ID, domain.FormatDate(c.NextReview), c.EaseFactor, c.Topic, firstLine(c.Question))
	}
	return tw.Flush()
}

func gradeFlags(fs *pflag.FlagSet) {
	fs.Int("elapsed", -1, "seconds spent on the card (omitted when negative)")
}

func runGrade(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if fs.NArg() != 2 {
		return errors.New("grade needs a card ID and a quality")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid card ID %q", fs.Arg(0))
	}
	quality, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid quality %q", fs.Arg(1))
	}
	var elapsed *int
	if e, _ := fs.GetInt("elapsed"); e >= 0 {
		elapsed = &e
	}
	card, err := a.svc.GradeReview(ctx, id, quality, elapsed)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Card %d next due %s (interval %d days, ease %.2f)\n",
		card.ID, domain.FormatDate(card.NextReview), card.Interval, card.EaseFactor)
	return nil
}

func runStats(ctx context.Context, a *app, _ *pflag.FlagSet) error {
	st, err := a.svc.Stats(ctx)
	if err != nil {
		return err
	}
	streak, err := a.svc.Streak(ctx)
	if err != nil {
		return err
	}
	m, err := a.svc.Maturity(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Cards\t%d\n", st.Total)
	fmt.Fprintf(tw, "Due\t%d (%d overdue)\n", st.Due, st.Overdue)
	fmt.Fprintf(tw, "New\t%d\n", st.New)
	fmt.Fprintf(tw, "Reviewed today\t%d\n", st.ReviewedToday)
	fmt.Fprintf(tw, "Accuracy (7 days)\t%.1f%%\n", st.Accuracy7d*100)
	fmt.Fprintf(tw, "Streak\t%d days (longest %d)\n", streak.Current, streak.Longest)
	fmt.Fprintf(tw, "Maturity\t%d new, %d learning, %d young, %d mature\n", m.New, m.Learning, m.Young, m.Mature)
	return tw.Flush()
}

func rebuildFlags(fs *pflag.FlagSet) {
	fs.Bool("verify", false, "only report dates where the totals disagree with the ledger")
}

func runRebuild(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if verify, _ := fs.GetBool("verify"); verify {
		diffs, err := a.svc.VerifyDailyAggregates(ctx)
		if err != nil {
			return err
		}
		for _, d := range diffs {
			fmt.Fprintf(a.out, "%s: cached %d reviews, ledger %d\n",
				domain.FormatDate(d.Date), d.Cached.CardsReviewed, d.Ledger.CardsReviewed)
		}
		fmt.Fprintf(a.out, "%d inconsistent days\n", len(diffs))
		return nil
	}
	days, err := a.svc.RebuildDailyAggregates(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Rebuilt %d days\n", days)
	return nil
}

func runSyncTopics(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	subjectID, _ := fs.GetInt64("subject")
	n, err := a.svc.SyncTopicsFromCards(ctx, subjectID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %d topic states\n", n)
	return nil
}

func gradeTopicFlags(fs *pflag.FlagSet) {
	fs.Int64("subject", 0, "subject ID of the topic")
	fs.String("topic", "", "topic name")
	fs.Float64("score", -1, "assessment score in percent")
}

func runGradeTopic(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	subjectID, _ := fs.GetInt64("subject")
	topic, _ := fs.GetString("topic")
	score, _ := fs.GetFloat64("score")
	ts, err := a.svc.GradeTopic(ctx, subjectID, topic, score)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Topic %q next due %s (average %.1f%% over %d assessments)\n",
		ts.Topic, domain.FormatDate(ts.NextReview), ts.AverageScore, ts.AssessmentCount)
	return nil
}

func importFlags(fs *pflag.FlagSet) {
	fs.String("subject", "", "subject name (default derived from the source)")
	fs.String("sheet", "", "worksheet to read from an .xlsx file")
}

func runImport(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if fs.NArg() != 1 {
		return errors.New("import needs a source")
	}
	source := fs.Arg(0)
	subject, _ := fs.GetString("subject")
	imp := a.importer()

	if !strings.EqualFold(filepath.Ext(source), ".xlsx") {
		rep, err := imp.Import(ctx, source, subject)
		if err != nil {
			return err
		}
		return printReport(a, rep.Subject.Name, rep)
	}

	f, err := os.Open(source)
	if err != nil {
		return err
	}
	defer f.Close()
	sheet, _ := fs.GetString("sheet")
	cards, rowErrs, err := workbook.ReadCards(f, sheet)
	if err != nil {
		return err
	}
	if subject == "" {
		subject = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	sub, err := a.svc.EnsureSubject(ctx, subject)
	if err != nil {
		return err
	}
	rep, err := imp.ImportCards(ctx, sub.ID, cards)
	if err != nil {
		return err
	}
	for _, re := range rowErrs {
		rep.Errors = append(rep.Errors, re)
	}
	return printReport(a, sub.Name, rep)
}

func printReport(a *app, subject string, rep importer.Report) error {
	fmt.Fprintf(a.out, "%s: %d cards parsed, %d inserted, %d already stored, %d duplicates, %d no longer in source\n",
		subject, rep.Parsed, rep.Inserted, rep.Existing, rep.Duplicates, rep.Stale)
	for _, err := range rep.Errors {
		fmt.Fprintf(a.out, "  - %v\n", err)
	}
	return nil
}

func runExport(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if fs.NArg() != 1 {
		return errors.New("export needs an output .xlsx path")
	}
	subjectID, _ := fs.GetInt64("subject")
	cards, err := a.svc.ListCards(ctx, subjectID)
	if err != nil {
		return err
	}
	events, err := a.svc.ReviewHistory(ctx, 0, 0)
	if err != nil {
		return err
	}
	if subjectID != 0 {
		keep := make(map[int64]bool, len(cards))
		for _, c := range cards {
			keep[c.ID] = true
		}
		filtered := events[:0]
		for _, e := range events {
			if keep[e.CardID] {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	f, err := os.Create(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := workbook.Write(f, cards, events); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d cards and %d reviews to %s\n", len(cards), len(events), fs.Arg(0))
	return nil
}

func searchFlags(fs *pflag.FlagSet) {
	fs.Int64("subject", 0, "restrict to one subject ID (0 for all)")
	fs.Int("top", retrieval.DefaultLimit, "number of results")
}

func runSearch(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("search needs a query")
	}
	subjectID, _ := fs.GetInt64("subject")
	top, _ := fs.GetInt("top")

	cards, err := a.svc.ListCards(ctx, subjectID)
	if err != nil {
		return err
	}
	r, err := retrieval.New(ctx, retrieval.DocumentsFromCards(cards), nil)
	if err != nil {
		return err
	}
	results, err := r.Search(ctx, query, retrieval.Options{SubjectID: subjectID, Limit: top})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(a.out, "No matches.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tTITLE")
	for _, res := range results {
		fmt.Fprintf(tw, "%d\t%.2f\t%s\n", res.ID, res.Score, firstLine(res.Title))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
