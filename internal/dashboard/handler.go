package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/store"
)

// RequestIDHeader carries the per-request id. A client-supplied value is
// echoed back.
const RequestIDHeader = "X-Request-ID"

// CardView is a card as clients receive it, with its body rendered.
type CardView struct {
	card.Card
	HTML string `json:"html"`
}

// ColumnView is a column of rendered cards.
type ColumnView struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Cards []CardView `json:"cards"`
}

// BoardView is the payload of GET /api/board and of board broadcasts.
type BoardView struct {
	Columns []ColumnView `json:"columns"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
	Status  string       `json:"status"`
}

func newCardView(c card.Card, logger *log.Logger) CardView {
	html, err := card.RenderHTML(c.Content)
	if err != nil {
		logger.Printf("Failed to render card %s: %v", c.ID, err)
	}
	return CardView{Card: c, HTML: html}
}

func newBoardView(snap store.Snapshot, logger *log.Logger) BoardView {
	view := BoardView{
		Columns: make([]ColumnView, len(snap.Board.Columns)),
		Loading: snap.Loading,
		Error:   snap.Error,
		Status:  snap.Status(),
	}
	for i, col := range snap.Board.Columns {
		cards := make([]CardView, len(col.Cards))
		for j, c := range col.Cards {
			cards[j] = newCardView(c, logger)
		}
		view.Columns[i] = ColumnView{ID: col.ID, Title: col.Title, Cards: cards}
	}
	return view
}

func boardMessage(snap store.Snapshot, logger *log.Logger) (Message, error) {
	data, err := json.Marshal(newBoardView(snap, logger))
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MessageTypeBoard, Timestamp: time.Now(), Data: data}, nil
}

type createRequest struct {
	Title    string     `json:"title"`
	Column   string     `json:"column"`
	Content  string     `json:"content"`
	Tags     []string   `json:"tags"`
	Assignee *string    `json:"assignee"`
	DueDate  *time.Time `json:"dueDate"`
}

type updateRequest struct {
	Title        *string    `json:"title"`
	Content      *string    `json:"content"`
	Tags         *[]string  `json:"tags"`
	Assignee     *string    `json:"assignee"`
	DueDate      *time.Time `json:"dueDate"`
	ClearDueDate bool       `json:"clearDueDate"`
}

func (r updateRequest) patch() card.Patch {
	p := card.Patch{
		Title:        r.Title,
		Content:      r.Content,
		Assignee:     r.Assignee,
		DueDate:      r.DueDate,
		ClearDueDate: r.ClearDueDate,
	}
	if r.Tags != nil {
		p.Tags = append([]string{}, (*r.Tags)...)
	}
	return p
}

type moveRequest struct {
	Column string `json:"column"`
}

// handleBoard serves the board, optionally narrowed by ?search=, ?tag=
// (repeatable or comma separated) and ?assignee=.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	snap := s.store.State()
	snap.Board = snap.Board.Filter(filterFromQuery(r.URL.Query()))
	writeJSON(w, http.StatusOK, newBoardView(snap, s.logger))
}

func filterFromQuery(q url.Values) store.Filter {
	f := store.Filter{
		Search:   strings.TrimSpace(q.Get("search")),
		Assignee: strings.TrimSpace(q.Get("assignee")),
	}
	for _, raw := range q["tag"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}
	return f
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, ok := s.store.Card(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, store.NotFoundMessage)
		return
	}
	writeJSON(w, http.StatusOK, newCardView(c, s.logger))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Column == "" {
		req.Column = s.store.Columns()[0]
	}

	var meta *card.Metadata
	if req.Tags != nil || req.Assignee != nil || req.DueDate != nil {
		meta = &card.Metadata{Tags: req.Tags, Assignee: req.Assignee, DueDate: req.DueDate}
	}

	c, err := s.store.AddCard(r.Context(), req.Title, req.Column, req.Content, meta)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCardView(c, s.logger))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}

	c, err := s.store.UpdateCard(r.Context(), id, req.patch())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if c.ID == "" {
		writeError(w, http.StatusNotFound, store.NotFoundMessage)
		return
	}
	writeJSON(w, http.StatusOK, newCardView(c, s.logger))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Column == "" {
		writeError(w, http.StatusBadRequest, "column is required")
		return
	}

	c, err := s.store.MoveCard(r.Context(), id, req.Column)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if c.ID == "" {
		writeError(w, http.StatusNotFound, store.NotFoundMessage)
		return
	}
	writeJSON(w, http.StatusOK, newCardView(c, s.logger))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Card(id); !ok {
		writeError(w, http.StatusNotFound, store.NotFoundMessage)
		return
	}
	if err := s.store.DeleteCard(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.LoadCards(r.Context()); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBoardView(s.store.State(), s.logger))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.store.State()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"board":   snap.Status(),
		"cards":   snap.Board.Len(),
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>mdk dashboard</title>
</head>
<body>
    <h1>mdk dashboard</h1>
    <p>Board: <a href="/api/board">/api/board</a></p>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// writeStoreError maps store failures onto status codes. The store has
// already recorded the failure in its state.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case store.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrUnknownColumn):
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
