package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/conorfennell/revise/internal/config"
	"github.com/conorfennell/revise/internal/importer"
	"github.com/conorfennell/revise/internal/srs"
	"github.com/conorfennell/revise/internal/storage"
)

const usage = `usage: revise <command> [flags]

commands:
  serve         run the HTTP API (and reminders when enabled)
  due           list the cards due today
  grade         grade a card: grade <card-id> <quality 1-5>
  stats         print the dashboard summary
  rebuild       recompute the daily totals from the review ledger
  sync-topics   create topic states for the topics named on cards
  grade-topic   schedule a topic from an assessment score
  import        import a directory, git repository or .xlsx workbook
  export        write the cards and review history to an .xlsx workbook
  search        keyword search over the cards
  remind        send the study reminder once

Run 'revise <command> --help' for the flags of a command.
`

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg *config.Config
	log *slog.Logger
	db  *storage.DB
	svc *srs.Service
	out io.Writer
}

type command struct {
	flags func(*pflag.FlagSet)
	run   func(ctx context.Context, a *app, fs *pflag.FlagSet) error
}

var commands = map[string]command{
	"serve":       {flags: serveFlags, run: runServe},
	"due":         {flags: subjectFlag, run: runDue},
	"grade":       {flags: gradeFlags, run: runGrade},
	"stats":       {run: runStats},
	"rebuild":     {flags: rebuildFlags, run: runRebuild},
	"sync-topics": {flags: subjectFlag, run: runSyncTopics},
	"grade-topic": {flags: gradeTopicFlags, run: runGradeTopic},
	"import":      {flags: importFlags, run: runImport},
	"export":      {flags: subjectFlag, run: runExport},
	"search":      {flags: searchFlags, run: runSearch},
	"remind":      {run: runRemind},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "revise:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(out, usage)
		return nil
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q\n\n%s", name, usage)
	}

	fs := pflag.NewFlagSet("revise "+name, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Debug("Database opened", "path", cfg.DB.Path)

	a := &app{
		cfg: cfg,
		log: logger,
		db:  db,
		svc: srs.NewService(db, srs.WithLocation(loc), srs.WithLogger(logger)),
		out: out,
	}
	return cmd.run(ctx, a, fs)
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) importer() *importer.Importer {
	return importer.New(a.svc, a.cfg.Import.ReposDir, a.log, os.Stderr)
}

func subjectFlag(fs *pflag.FlagSet) {
	fs.Int64("subject", 0, "restrict to one subject ID (0 for all)")
}
