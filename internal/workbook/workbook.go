// Package workbook exports cards and the review ledger to .xlsx and imports
// cards from spreadsheets.
package workbook

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/revise/internal/domain"
)

const (
	CardsSheet   = "Cards"
	ReviewsSheet = "Reviews"
	defaultSheet = "Sheet1"
)

// Card columns start with question, answer and topic so an exported sheet
// can be imported again.
var (
	cardHeader = []any{
		"Question", "Answer", "Topic", "Subject ID", "Card ID", "Ease Factor",
		"Interval", "Repetitions", "Next Review", "Times Reviewed", "Times Correct",
	}
	reviewHeader = []any{
		"ID", "Card ID", "Quality", "Reviewed At", "Review Date", "Elapsed Seconds",
		"Ease Before", "Ease After", "Interval Before", "Interval After",
	}
)

// Write renders cards and events as a workbook with one sheet each.
func Write(w io.Writer, cards []domain.Card, events []domain.ReviewEvent) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(defaultSheet, CardsSheet)
	if _, err := f.NewSheet(ReviewsSheet); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", ReviewsSheet, err)
	}

	rows := make([][]any, 0, len(cards)+1)
	rows = append(rows, cardHeader)
	for _, c := range cards {
		rows = append(rows, []any{
			c.Question, c.Answer, c.Topic, c.SubjectID, c.ID, c.EaseFactor,
			c.Interval, c.Repetitions, domain.FormatDate(c.NextReview), c.TimesReviewed, c.TimesCorrect,
		})
	}
	if err := writeRows(f, CardsSheet, rows); err != nil {
		return err
	}

	rows = make([][]any, 0, len(events)+1)
	rows = append(rows, reviewHeader)
	for _, e := range events {
		var elapsed any = ""
		if e.ElapsedSeconds != nil {
			elapsed = *e.ElapsedSeconds
		}
		rows = append(rows, []any{
			e.ID, e.CardID, e.Quality, e.ReviewedAt.UTC().Format(time.RFC3339),
			domain.FormatDate(e.ReviewDate), elapsed, e.EaseBefore, e.EaseAfter,
			e.IntervalBefore, e.IntervalAfter,
		})
	}
	if err := writeRows(f, ReviewsSheet, rows); err != nil {
		return err
	}

	if err := f.SetColWidth(CardsSheet, "A", "B", 48); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}

// RowError reports an unusable spreadsheet row.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ReadCards reads question, answer and topic from columns A to C of sheet,
// skipping the header row and blank rows. An empty sheet name picks the
// Cards sheet when present and the first sheet otherwise. Rows without a
// question or an answer are reported and skipped.
func ReadCards(r io.Reader, sheet string) ([]domain.Card, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = pickSheet(f.GetSheetList())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	var cards []domain.Card
	var rowErrs []RowError
	for i, row := range rows {
		if i == 0 {
			continue
		}
		question, answer, topic := cell(row, 0), cell(row, 1), cell(row, 2)
		switch {
		case question == "" && answer == "" && topic == "":
			continue
		case question == "":
			rowErrs = append(rowErrs, RowError{Row: i + 1, Err: fmt.Errorf("question cannot be empty")})
		case answer == "":
			rowErrs = append(rowErrs, RowError{Row: i + 1, Err: fmt.Errorf("answer cannot be empty")})
		default:
			cards = append(cards, domain.Card{Question: question, Answer: answer, Topic: topic})
		}
	}
	return cards, rowErrs, nil
}

func pickSheet(sheets []string) string {
	for _, s := range sheets {
		if s == CardsSheet {
			return s
		}
	}
	if len(sheets) > 0 {
		return sheets[0]
	}
	return defaultSheet
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
