package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/revise/internal/domain"
)

// Normalize lowercases and trims the question, answer and topic of a card,
// folds CRLF line endings and joins the parts with newlines so adjacent
// fields cannot run together.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		p = strings.ToLower(p)
		return strings.TrimSpace(p)
	}

	return strings.Join([]string{
		normalizePart(card.Question),
		normalizePart(card.Answer),
		normalizePart(card.Topic),
	}, "\n")
}

// Hash returns the hex SHA-256 of the normalized card. Two cards with the
// same hash are treated as the same card by the importer.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", sum)
}
