// Package importer reconciles markdown decks on disk or in git with the
// card store. New cards are inserted; cards that disappeared from a deck are
// reported as stale but never deleted.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/revise/internal/domain"
	"github.com/conorfennell/revise/internal/gitsource"
	"github.com/conorfennell/revise/internal/knol"
	"github.com/conorfennell/revise/internal/parser"
	"github.com/conorfennell/revise/internal/srs"
)

// Store is the part of the scheduler the importer writes through.
type Store interface {
	EnsureSubject(ctx context.Context, name string) (domain.Subject, error)
	ListCards(ctx context.Context, subjectID int64) ([]domain.Card, error)
	CreateCard(ctx context.Context, in srs.CardInput) (domain.Card, error)
}

// Report summarises one import. Every parsed card is counted once: in
// Inserted, in Existing when the subject already stores it, in Duplicates
// when it repeats a card earlier in the same import, or in Errors.
type Report struct {
	Source     string
	Path       string
	Subject    domain.Subject
	Files      int
	Parsed     int
	Inserted   int
	Existing   int
	Duplicates int
	Stale      int
	Errors     []error
}

type Importer struct {
	store    Store
	reposDir string
	log      *slog.Logger
	progress io.Writer
}

// New returns an importer that checks git sources out below reposDir.
// Clone and pull progress is written to progress when it is not nil.
func New(store Store, reposDir string, logger *slog.Logger, progress io.Writer) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, reposDir: reposDir, log: logger, progress: progress}
}

// Import reads every *.md file below source into subject. A git URL is
// cloned or pulled first. An empty subject name is derived from the source.
func (i *Importer) Import(ctx context.Context, source, subject string) (Report, error) {
	report := Report{Source: source, Path: source}

	if gitsource.IsRemote(source) {
		localPath, err := gitsource.LocalPath(i.reposDir, source)
		if err != nil {
			return report, err
		}
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return report, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, i.log, source, localPath, i.progress); err != nil {
			return report, err
		}
		report.Path = localPath
	}

	info, err := os.Stat(report.Path)
	if err != nil {
		return report, fmt.Errorf("failed to read source %s: %w", report.Path, err)
	}
	if !info.IsDir() {
		return report, fmt.Errorf("source %s is not a directory", report.Path)
	}

	if strings.TrimSpace(subject) == "" {
		subject = filepath.Base(filepath.Clean(report.Path))
	}

	var cards []domain.Card
	walkErr := filepath.WalkDir(report.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		report.Files++
		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		cards = append(cards, fileCards...)
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("failed to walk %s: %w", report.Path, walkErr)
	}

	report.Subject, err = i.store.EnsureSubject(ctx, subject)
	if err != nil {
		return report, err
	}
	if err := i.reconcile(ctx, cards, &report); err != nil {
		return report, err
	}

	i.log.Info("Import complete",
		"source", source,
		"subject", report.Subject.Name,
		"files", report.Files,
		"parsed_cards", report.Parsed,
		"inserted", report.Inserted,
		"existing", report.Existing,
		"stale", report.Stale,
		"errors", len(report.Errors),
	)
	return report, nil
}

// ImportCards inserts the cards not yet present in the subject, matching
// by content hash. Report.Stale counts existing cards absent from cards.
func (i *Importer) ImportCards(ctx context.Context, subjectID int64, cards []domain.Card) (Report, error) {
	report := Report{Subject: domain.Subject{ID: subjectID}}
	err := i.reconcile(ctx, cards, &report)
	return report, err
}

func (i *Importer) reconcile(ctx context.Context, cards []domain.Card, report *Report) error {
	existing, err := i.store.ListCards(ctx, report.Subject.ID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[c.Hash] = true
	}

	found := make(map[string]bool, len(cards))
	for _, card := range cards {
		report.Parsed++
		hash := knol.Hash(card)
		if found[hash] {
			report.Duplicates++
			continue
		}
		found[hash] = true
		if known[hash] {
			report.Existing++
			continue
		}

		_, err := i.store.CreateCard(ctx, srs.CardInput{
			SubjectID: report.Subject.ID,
			Question:  card.Question,
			Answer:    card.Answer,
			Topic:     card.Topic,
		})
		switch {
		case err == nil:
			report.Inserted++
			i.log.Debug("New card inserted", "hash", hash)
		case errors.Is(err, srs.ErrInvalidInput):
			report.Errors = append(report.Errors, fmt.Errorf("card %q: %w", card.Question, err))
		default:
			return err
		}
	}

	for _, c := range existing {
		if !found[c.Hash] {
			report.Stale++
		}
	}
	return nil
}
