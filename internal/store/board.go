package store

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mdkanban/mdkanban/internal/card"
)

// Column is one workflow bucket. Cards keep their appearance order.
type Column struct {
	ID string `json:"id"`

	// Title is the display name derived from ID: "in-progress" shows as
	// "In Progress".
	Title string      `json:"title"`
	Cards []card.Card `json:"cards"`
}

// ColumnTitle returns the display name of a column id.
func ColumnTitle(id string) string {
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(id))
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Board is the ordered set of configured columns. Every configured column is
// present, even when empty.
//
// Board values are never modified in place once published: mutations build a
// new Columns slice, sharing the card slices of untouched columns.
type Board struct {
	Columns []Column `json:"columns"`
}

func newBoard(ids []string) Board {
	cols := make([]Column, len(ids))
	for i, id := range ids {
		cols[i] = Column{ID: id, Title: ColumnTitle(id), Cards: []card.Card{}}
	}
	return Board{Columns: cols}
}

// Column returns the column with the given id.
func (b Board) Column(id string) (Column, bool) {
	if i := b.columnIndex(id); i >= 0 {
		return b.Columns[i], true
	}
	return Column{}, false
}

// Find returns the card with the given id from any column.
func (b Board) Find(id string) (card.Card, bool) {
	ci, idx, ok := b.locate(id)
	if !ok {
		return card.Card{}, false
	}
	return b.Columns[ci].Cards[idx], true
}

// Len returns the number of cards on the board.
func (b Board) Len() int {
	n := 0
	for _, col := range b.Columns {
		n += len(col.Cards)
	}
	return n
}

func (b Board) columnIndex(id string) int {
	for i, col := range b.Columns {
		if col.ID == id {
			return i
		}
	}
	return -1
}

func (b Board) locate(id string) (colIdx, cardIdx int, ok bool) {
	for ci, col := range b.Columns {
		for i, c := range col.Cards {
			if c.ID == id {
				return ci, i, true
			}
		}
	}
	return -1, -1, false
}

// clone returns a deep copy safe to hand to callers.
func (b Board) clone() Board {
	cols := make([]Column, len(b.Columns))
	for i, col := range b.Columns {
		cards := make([]card.Card, len(col.Cards))
		for j, c := range col.Cards {
			cards[j] = c.Clone()
		}
		cols[i] = Column{ID: col.ID, Title: col.Title, Cards: cards}
	}
	return Board{Columns: cols}
}

// withCards returns a board whose column ci holds cards.
func (b Board) withCards(ci int, cards []card.Card) Board {
	cols := make([]Column, len(b.Columns))
	copy(cols, b.Columns)
	cols[ci] = Column{ID: cols[ci].ID, Title: cols[ci].Title, Cards: cards}
	return Board{Columns: cols}
}

// remove drops the card with id, reporting where it was.
func (b Board) remove(id string) (out Board, removed card.Card, colIdx, cardIdx int, ok bool) {
	ci, idx, ok := b.locate(id)
	if !ok {
		return b, card.Card{}, -1, -1, false
	}
	src := b.Columns[ci].Cards
	cards := make([]card.Card, 0, len(src)-1)
	cards = append(cards, src[:idx]...)
	cards = append(cards, src[idx+1:]...)
	return b.withCards(ci, cards), src[idx], ci, idx, true
}

// insert places c in column ci at idx, or appends when idx is out of range.
func (b Board) insert(ci, idx int, c card.Card) Board {
	src := b.Columns[ci].Cards
	if idx < 0 || idx > len(src) {
		idx = len(src)
	}
	cards := make([]card.Card, 0, len(src)+1)
	cards = append(cards, src[:idx]...)
	cards = append(cards, c)
	cards = append(cards, src[idx:]...)
	return b.withCards(ci, cards)
}

// replace swaps the card with c's id for c, in place.
func (b Board) replace(c card.Card) (Board, bool) {
	ci, idx, ok := b.locate(c.ID)
	if !ok {
		return b, false
	}
	cards := make([]card.Card, len(b.Columns[ci].Cards))
	copy(cards, b.Columns[ci].Cards)
	cards[idx] = c
	return b.withCards(ci, cards), true
}
