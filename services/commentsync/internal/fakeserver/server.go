package fakeserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/commentsync/internal/platform/api"
	"github.com/example/commentsync/internal/platform/auth"
	"github.com/example/commentsync/internal/platform/httpserver"
	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/realtime"
	"github.com/example/commentsync/services/commentsync/internal/wire"
)

type Config struct {
	Secret    []byte
	Store     *Store
	Publisher *EventPublisher
	Redis     *RedisPublisher
	Logger    *zap.Logger
}

// Server serves the comments API under /api/v1 and the realtime stream at /ws.
type Server struct {
	store    *Store
	hub      *Hub
	emit     Emitter
	verifier auth.JWTVerifier
	log      *zap.Logger
	router   chi.Router
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("fakeserver")
	st := cfg.Store
	if st == nil {
		st = NewStore()
	}
	hub := NewHub(log)
	s := &Server{
		store:    st,
		hub:      hub,
		verifier: auth.JWTVerifier{Secret: cfg.Secret},
		log:      log,
	}
	s.emit = fanout{hub: hub, pubs: []Publisher{cfg.Publisher, cfg.Redis}, on: func(kind realtime.Kind, err error) {
		log.Warn("publish failed", zap.String("event", string(kind)), zap.Error(err))
	}}

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Get("/ws", s.serveWS)
	r.Route("/api/v1/comments", func(r chi.Router) {
		r.Use(auth.RequireUser(s.verifier))
		r.Get("/", s.listComments)
		r.Post("/", s.createComment)
		r.Get("/{id}", s.getComment)
		r.Patch("/{id}", s.updateComment)
		r.Delete("/{id}", s.deleteComment)
		r.Get("/{id}/replies", s.listReplies)
		r.Post("/{id}/reaction", s.react)
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Store() *Store { return s.store }

func (s *Server) Hub() *Hub { return s.hub }

// Close disconnects realtime clients.
func (s *Server) Close() { s.hub.Close() }

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()
	mode := domain.SortNewest
	if v := strings.TrimSpace(q.Get("sortBy")); v != "" {
		m, ok := domain.ParseSortMode(v)
		if !ok {
			api.BadRequest(w, "Validation failed", map[string][]string{"sortBy": {"Invalid sort option"}})
			return
		}
		mode = m
	}
	page, err := s.store.List("", mode, strings.TrimSpace(q.Get("cursor")), parseLimit(q.Get("limit")), viewer)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, "Comments retrieved", page)
}

func (s *Server) listReplies(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()
	page, err := s.store.List(chi.URLParam(r, "id"), domain.SortNewest, strings.TrimSpace(q.Get("cursor")), parseLimit(q.Get("limit")), viewer)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, "Replies retrieved", page)
}

func (s *Server) getComment(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	c, err := s.store.Get(chi.URLParam(r, "id"), viewer)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, "Comment retrieved", c)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	var req wire.CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "Invalid JSON", nil)
		return
	}
	if fields := validContent(req.Content); fields != nil {
		api.BadRequest(w, "Validation failed", fields)
		return
	}
	author := Author{ID: claims.Subject, FirstName: claims.FirstName, LastName: claims.LastName, Email: claims.Email}
	c, err := s.store.Create(author, req.Content, strings.TrimSpace(req.ParentCommentID))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusCreated, "Comment created", c)

	b := broadcastCopy(c)
	if c.ParentComment != nil {
		s.emit.Emit(realtime.KindReplyCreated, wire.ReplyPayload{Comment: &b, ParentID: *c.ParentComment})
		return
	}
	s.emit.Emit(realtime.KindCreated, wire.CommentPayload{Comment: &b})
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	var req wire.UpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "Invalid JSON", nil)
		return
	}
	if fields := validContent(req.Content); fields != nil {
		api.BadRequest(w, "Validation failed", fields)
		return
	}
	c, err := s.store.Update(chi.URLParam(r, "id"), viewer, req.Content)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, "Comment updated", c)

	b := broadcastCopy(c)
	s.emit.Emit(realtime.KindUpdated, wire.CommentPayload{Comment: &b})
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	removed, err := s.store.Delete(chi.URLParam(r, "id"), viewer)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, "Comment deleted", nil)
	for _, id := range removed {
		s.emit.Emit(realtime.KindDeleted, wire.DeletePayload{CommentID: id})
	}
}

func (s *Server) react(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	var req wire.ReactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "Invalid JSON", nil)
		return
	}
	kind := domain.Reaction(strings.TrimSpace(req.Type))
	if !kind.Valid() {
		api.BadRequest(w, "Validation failed", map[string][]string{"type": {"Reaction type must be like or dislike"}})
		return
	}
	c, err := s.store.React(chi.URLParam(r, "id"), viewer, kind)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	api.WriteData(w, http.StatusOK, "Reaction updated", c)

	b := broadcastCopy(c)
	s.emit.Emit(realtime.KindReacted, wire.CommentPayload{Comment: &b})
}

// serveWS authenticates with the Authorization header or a token query
// parameter, since browsers cannot set headers on WebSocket requests.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		tok = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	claims, err := s.verifier.Parse(tok)
	if err != nil || claims.Subject == "" {
		api.Unauthorized(w, "Invalid or expired token")
		return
	}
	s.hub.Serve(w, r, claims.Subject)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.NotFound(w, "Comment not found")
	case errors.Is(err, ErrForbidden):
		api.Forbidden(w, "You can only modify your own comments")
	case errors.Is(err, ErrInvalidCursor):
		api.BadRequest(w, "Validation failed", map[string][]string{"cursor": {"Invalid cursor"}})
	default:
		s.log.Error("store", zap.String("request_id", httpserver.RequestIDFromContext(r.Context())), zap.Error(err))
		api.Internal(w)
	}
}

func parseLimit(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 || n > 100 {
		return 10
	}
	return n
}

// broadcastCopy strips the viewer-relative reaction, which means nothing to
// other subscribers.
func broadcastCopy(c wire.Comment) wire.Comment {
	c.UserReaction = wire.Reaction{}
	return c
}
