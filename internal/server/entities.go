package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/apexdraft/internal/entity"
)

// pageParams reads cursor and limit from the query string. A missing limit
// selects the collection default. Any other limit is coerced, never
// rejected: numbers are truncated, non-numeric input counts as 0, and the
// result is raised to at least 1.
func pageParams(r *http.Request) (cursor string, limit int) {
	q := r.URL.Query()
	cursor = q.Get("cursor")
	if raw := q.Get("limit"); raw != "" {
		limit = max(1, coerceLimit(raw))
	}
	return cursor, limit
}

// coerceLimit truncates raw toward zero. Unparseable, NaN and infinite
// values yield 0; huge values saturate at math.MaxInt32.
func coerceLimit(raw string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// listPage seeds col if needed and writes one page of it.
func listPage[T any](s *Server, w http.ResponseWriter, r *http.Request, col *entity.Collection[T]) {
	cursor, limit := pageParams(r)
	if err := col.EnsureSeed(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := col.List(r.Context(), cursor, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, page)
}

type deleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func deleteOne(s *Server, w http.ResponseWriter, r *http.Request, del func(context.Context, string) (bool, error)) {
	id := r.PathValue("id")
	deleted, err := del(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, deleteResult{ID: id, Deleted: deleted})
}

type deleteManyResult struct {
	DeletedCount int      `json:"deletedCount"`
	IDs          []string `json:"ids"`
}

// deleteMany accepts {"ids": [...]}; entries that are not strings are
// ignored, and at least one string id is required.
func deleteMany(s *Server, w http.ResponseWriter, r *http.Request, del func(context.Context, []string) (int, error)) {
	var body struct {
		IDs []any `json:"ids"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	ids := make([]string, 0, len(body.IDs))
	for _, v := range body.IDs {
		if id, isStr := v.(string); isStr && id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		fail(w, http.StatusBadRequest, "ids required")
		return
	}
	n, err := del(r.Context(), ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, deleteManyResult{DeletedCount: n, IDs: ids})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	listPage(s, w, r, s.users.Collection)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		fail(w, http.StatusBadRequest, "name required")
		return
	}
	u, err := s.users.Add(r.Context(), body.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	deleteOne(s, w, r, s.users.Delete)
}

func (s *Server) deleteManyUsers(w http.ResponseWriter, r *http.Request) {
	deleteMany(s, w, r, s.users.DeleteMany)
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	listPage(s, w, r, s.chats.Collection)
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		fail(w, http.StatusBadRequest, "title required")
		return
	}
	c, err := s.chats.Add(r.Context(), body.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, c.Summary())
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	deleteOne(s, w, r, s.chats.Delete)
}

func (s *Server) deleteManyChats(w http.ResponseWriter, r *http.Request) {
	deleteMany(s, w, r, s.chats.DeleteMany)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chats.Messages(r.Context(), r.PathValue("chatId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, msgs)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID any `json:"userId"`
		Text   any `json:"text"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, okUser := body.UserID.(string)
	text, okText := body.Text.(string)
	if !okUser || !okText || strings.TrimSpace(text) == "" {
		fail(w, http.StatusBadRequest, "userId and text required")
		return
	}
	msg, err := s.chats.AppendMessage(r.Context(), r.PathValue("chatId"), userID, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w, msg)
}
