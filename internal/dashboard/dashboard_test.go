package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/fsadapter"
	"github.com/mdkanban/mdkanban/internal/store"
	"github.com/mdkanban/mdkanban/internal/watcher"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)

	memory := fsadapter.NewMemory("")
	for _, col := range store.DefaultColumns {
		if err := memory.Mkdir(context.Background(), card.ColumnPath(fsadapter.DefaultMount, col), fsadapter.MkdirOptions{Recursive: true}); err != nil {
			t.Fatalf("Mkdir() failed: %v", err)
		}
	}
	st, err := store.New(memory, watcher.NewManual(), store.WithLogger(quiet))
	if err != nil {
		t.Fatalf("store.New() failed: %v", err)
	}
	srv, err := NewServer(st, &Config{Addr: "127.0.0.1:0", Logger: quiet})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return srv, st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestNewServer_RequiresStore(t *testing.T) {
	if _, err := NewServer(nil, nil); err == nil {
		t.Error("NewServer(nil) should fail")
	}
}

func TestAPI_CardLifecycle(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/cards", `{"title":"Write docs","content":"Some *emphasis*","tags":["docs"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created CardView
	decodeBody(t, rec, &created)
	if created.Column != "backlog" {
		t.Errorf("Column = %q, want backlog (first column)", created.Column)
	}
	if !strings.Contains(created.HTML, "<em>emphasis</em>") {
		t.Errorf("HTML = %q, want rendered body", created.HTML)
	}
	if len(created.Metadata.Tags) != 1 || created.Metadata.Tags[0] != "docs" {
		t.Errorf("Tags = %v", created.Metadata.Tags)
	}

	rec = do(t, h, http.MethodGet, "/api/cards/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPatch, "/api/cards/"+created.ID, `{"title":"Write better docs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated CardView
	decodeBody(t, rec, &updated)
	if updated.Title != "Write better docs" || updated.ID != created.ID {
		t.Errorf("updated = %+v", updated.Card)
	}

	rec = do(t, h, http.MethodPost, "/api/cards/"+created.ID+"/move", `{"column":"done"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", rec.Code, rec.Body.String())
	}
	if c, _ := st.Card(created.ID); c.Column != "done" {
		t.Errorf("store column = %q, want done", c.Column)
	}

	rec = do(t, h, http.MethodDelete, "/api/cards/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if _, ok := st.Card(created.ID); ok {
		t.Error("card should be gone")
	}
}

func TestAPI_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		method, target, body string
	}{
		{http.MethodGet, "/api/cards/missing", ""},
		{http.MethodPatch, "/api/cards/missing", `{"title":"x"}`},
		{http.MethodPost, "/api/cards/missing/move", `{"column":"done"}`},
		{http.MethodDelete, "/api/cards/missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
		})
	}
}

func TestAPI_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name, body string
	}{
		{"malformed json", `{"title":`},
		{"unknown field", `{"title":"x","priority":1}`},
		{"missing title", `{"column":"backlog"}`},
		{"unknown column", `{"title":"x","column":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/cards", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAPI_BoardAndReload(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()

	if _, err := st.AddCard(context.Background(), "One", "in-progress", "# One", nil); err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}

	rec := do(t, h, http.MethodPost, "/api/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/board", "")
	var view BoardView
	decodeBody(t, rec, &view)
	if view.Status != "idle" {
		t.Errorf("Status = %q, want idle", view.Status)
	}
	if len(view.Columns) != 3 {
		t.Fatalf("len(Columns) = %d, want 3", len(view.Columns))
	}
	cards := view.Columns[1].Cards
	if len(cards) != 1 || cards[0].Title != "One" || !strings.Contains(cards[0].HTML, "<h1>One</h1>") {
		t.Errorf("in-progress cards = %+v", cards)
	}
}

func TestAPI_BoardFilter(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()
	ctx := context.Background()

	bob := "bob"
	if _, err := st.AddCard(ctx, "Fix login", "backlog", "cookie expiry", &card.Metadata{Tags: []string{"bug"}, Assignee: &bob}); err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}
	if _, err := st.AddCard(ctx, "Write docs", "done", "", &card.Metadata{Tags: []string{"docs"}}); err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Fix login", "Write docs"}},
		{"?search=COOKIE", []string{"Fix login"}},
		{"?tag=ui,docs", []string{"Write docs"}},
		{"?tag=ui&tag=bug", []string{"Fix login"}},
		{"?assignee=bob", []string{"Fix login"}},
		{"?search=docs&assignee=bob", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/board"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var view BoardView
			decodeBody(t, rec, &view)
			if len(view.Columns) != 3 {
				t.Fatalf("len(Columns) = %d, want 3", len(view.Columns))
			}
			var got []string
			for _, col := range view.Columns {
				for _, c := range col.Cards {
					got = append(got, c.Title)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("titles = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("titles = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/api/board", "")
	var view BoardView
	decodeBody(t, rec, &view)
	if view.Columns[1].Title != "In Progress" {
		t.Errorf("column title = %q, want In Progress", view.Columns[1].Title)
	}
}

func TestAPI_HealthAlias(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/health status = %d, want 200", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry a request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc" {
		t.Errorf("request id = %q, want echoed abc", got)
	}
}

func TestServerStartStop(t *testing.T) {
	srv, _ := newTestServer(t)

	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if strings.HasSuffix(srv.GetAddr(), ":0") {
		t.Errorf("GetAddr() = %q, want the bound port", srv.GetAddr())
	}

	resp, err := http.Get("http://" + srv.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestWebSocketBroadcast(t *testing.T) {
	srv, st := newTestServer(t)
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+srv.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	hello := readMessage(t, ctx, conn)
	if hello.Type != MessageTypeHello {
		t.Fatalf("first message type = %q, want hello", hello.Type)
	}
	var hd HelloData
	if err := json.Unmarshal(hello.Data, &hd); err != nil || hd.ClientID == "" {
		t.Errorf("hello data = %s (%v)", hello.Data, err)
	}
	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeBoard {
		t.Fatalf("second message type = %q, want board", msg.Type)
	}
	if n := srv.ClientCount(); n != 1 {
		t.Errorf("ClientCount() = %d, want 1", n)
	}

	added, err := st.AddCard(ctx, "Broadcast me", "backlog", "", nil)
	if err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}

	for {
		msg := readMessage(t, ctx, conn)
		if msg.Type != MessageTypeBoard {
			continue
		}
		var view BoardView
		if err := json.Unmarshal(msg.Data, &view); err != nil {
			t.Fatalf("Failed to decode board: %v", err)
		}
		if len(view.Columns[0].Cards) == 1 && view.Columns[0].Cards[0].ID == added.ID {
			return
		}
	}
}
