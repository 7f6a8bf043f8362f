// Package parser reads flashcards from markdown decks.
//
// A card starts at a "Q:" line and may carry "A:" and "T:" (topic) blocks.
// Blocks run until the next prefix, a "---" separator or the end of input,
// so questions and answers can span several lines. Cards without both a
// question and an answer are dropped.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/revise/internal/domain"
)

type field int

const (
	none field = iota
	question
	answer
	topic
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", question},
	{"A:", answer},
	{"T:", topic},
}

const separator = "---"

// ParseFile reads a deck from the given path.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

type deck struct {
	cards   []domain.Card
	current domain.Card
	field   field
	lines   []string
}

// flushBlock stores the lines collected for the open block on the current
// card. Trailing blank lines belong to no field.
func (d *deck) flushBlock() {
	text := strings.TrimRight(strings.Join(d.lines, "\n"), "\n ")
	switch d.field {
	case question:
		d.current.Question = text
	case answer:
		d.current.Answer = text
	case topic:
		d.current.Topic = strings.TrimSpace(text)
	}
	d.lines = nil
}

func (d *deck) finishCard() {
	d.flushBlock()
	if d.current.Question != "" && d.current.Answer != "" {
		d.cards = append(d.cards, d.current)
	}
	d.current = domain.Card{}
	d.field = none
}

// Parse reads a deck from r.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	d := &deck{}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if strings.TrimSpace(line) == separator {
			d.finishCard()
			continue
		}

		f, rest := matchPrefix(line)
		switch {
		case f == question:
			d.finishCard()
			d.field = question
			d.lines = append(d.lines, rest)
		case f != none:
			if d.field == none {
				// An answer or topic outside a card is ignored.
				continue
			}
			d.flushBlock()
			d.field = f
			d.lines = append(d.lines, rest)
		case d.field != none:
			d.lines = append(d.lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	d.finishCard()
	return d.cards, nil
}

func matchPrefix(line string) (field, string) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return p.field, strings.TrimPrefix(rest, " ")
		}
	}
	return none, line
}
