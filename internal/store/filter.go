package store

import (
	"strings"

	"github.com/mdkanban/mdkanban/internal/card"
)

// Filter narrows the board to matching cards. The zero Filter matches
// everything.
type Filter struct {
	// Search matches title or content, case-insensitively.
	Search string `json:"search,omitempty"`

	// Tags matches cards carrying at least one of the tags.
	Tags []string `json:"tags,omitempty"`

	// Assignee matches the assignee exactly.
	Assignee string `json:"assignee,omitempty"`
}

// IsZero reports whether f matches every card.
func (f Filter) IsZero() bool {
	return f.Search == "" && len(f.Tags) == 0 && f.Assignee == ""
}

// Matches reports whether c passes every criterion set on f.
func (f Filter) Matches(c card.Card) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Title), q) && !strings.Contains(strings.ToLower(c.Content), q) {
			return false
		}
	}

	if len(f.Tags) > 0 && !hasAnyTag(c.Metadata.Tags, f.Tags) {
		return false
	}

	if f.Assignee != "" && (c.Metadata.Assignee == nil || *c.Metadata.Assignee != f.Assignee) {
		return false
	}
	return true
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Filter returns a board with the same columns holding only the cards f
// matches.
func (b Board) Filter(f Filter) Board {
	if f.IsZero() {
		return b
	}
	cols := make([]Column, len(b.Columns))
	for i, col := range b.Columns {
		cards := make([]card.Card, 0, len(col.Cards))
		for _, c := range col.Cards {
			if f.Matches(c) {
				cards = append(cards, c)
			}
		}
		cols[i] = Column{ID: col.ID, Title: col.Title, Cards: cards}
	}
	return Board{Columns: cols}
}
