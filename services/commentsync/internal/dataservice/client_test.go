package dataservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/commentsync/internal/platform/httpserver"
	"github.com/example/commentsync/services/commentsync/internal/domain"
)

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestClient(url string) *Client {
	return New(url, ClientConfig{Token: "tok", MaxRetries: 2, RetryBaseDelay: time.Millisecond})
}

func TestFetchComments_QueryAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/comments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("cursor") != "c1" || q.Get("limit") != "10" || q.Get("sortBy") != "mostLiked" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Errorf("missing request id")
		}
		writeEnvelope(w, http.StatusOK, `{"success":true,"message":"ok","data":{"data":[
			{"_id":"a","content":"first","author":{"_id":"u1","firstName":"A","lastName":"B"},"likesCount":2,"dislikesCount":0,"userReaction":"like","parentComment":null}
		],"nextCursor":"c2","hasMore":true}}`)
	}))
	defer srv.Close()

	page, err := newTestClient(srv.URL).FetchComments(context.Background(), domain.PageRequest{Cursor: "c1", Limit: 10, Sort: domain.SortMostLiked})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "c2" || !page.HasMore {
		t.Fatalf("unexpected page %+v", page)
	}
	c := page.Items[0]
	if c.ID != "a" || c.LikeCount != 2 || c.ViewerReaction != domain.ReactionLike || c.Author.DisplayName != "A B" {
		t.Fatalf("unexpected comment %+v", c)
	}
}

func TestRequestIDFromContextIsForwarded(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Request-Id")
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"_id":"a","content":"x","author":{"_id":"u1"}}}`)
	}))
	defer srv.Close()

	ctx := httpserver.ContextWithRequestID(context.Background(), "rid-1")
	if _, err := newTestClient(srv.URL).FetchComment(ctx, "a"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if id := <-got; id != "rid-1" {
		t.Fatalf("expected forwarded request id, got %q", id)
	}
}

func TestFetchReplies_NoSortParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/comments/p1/replies" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Has("sortBy") || r.URL.Query().Has("cursor") {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"data":[],"nextCursor":null,"hasMore":false}}`)
	}))
	defer srv.Close()

	page, err := newTestClient(srv.URL).FetchReplies(context.Background(), "p1", domain.PageRequest{Limit: 10, Sort: domain.SortMostLiked})
	if err != nil {
		t.Fatalf("fetch replies: %v", err)
	}
	if len(page.Items) != 0 || page.HasMore || page.NextCursor != "" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestCreateComment_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["content"] != "hi" || body["parentCommentId"] != "p1" {
			t.Errorf("unexpected body %v", body)
		}
		writeEnvelope(w, http.StatusCreated, `{"success":true,"data":{"_id":"r1","content":"hi","author":{"_id":"me"},"parentComment":"p1","userReaction":null}}`)
	}))
	defer srv.Close()

	c, err := newTestClient(srv.URL).CreateComment(context.Background(), domain.CreateInput{Content: "hi", ParentID: "p1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID != "r1" || c.ParentID != "p1" || c.ViewerReaction != domain.ReactionNone {
		t.Fatalf("unexpected comment %+v", c)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"validation", http.StatusBadRequest,
			`{"success":false,"message":"Validation failed","errors":{"content":["Content is required"]}}`,
			func(t *testing.T, err error) {
				var re *domain.RequestError
				if !errors.As(err, &re) || re.Status != 400 || re.Fields["content"][0] != "Content is required" {
					t.Fatalf("expected field errors, got %v", err)
				}
			}},
		{"forbidden", http.StatusForbidden, `{"success":false,"message":"Not allowed"}`,
			func(t *testing.T, err error) {
				var re *domain.RequestError
				if !errors.As(err, &re) || re.Status != 403 || re.Message != "Not allowed" {
					t.Fatalf("expected 403 request error, got %v", err)
				}
			}},
		{"not found", http.StatusNotFound, `{"success":false,"message":"Comment not found"}`,
			func(t *testing.T, err error) {
				var nf *domain.NotFoundError
				if !errors.As(err, &nf) || nf.ID != "x1" {
					t.Fatalf("expected not found for x1, got %v", err)
				}
			}},
		{"plain text", http.StatusBadGateway, `upstream down`,
			func(t *testing.T, err error) {
				var re *domain.RequestError
				if !errors.As(err, &re) || re.Message != "upstream down" {
					t.Fatalf("expected raw body message, got %v", err)
				}
			}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tc.status, tc.body)
			}))
			defer srv.Close()
			_, err := newTestClient(srv.URL).UpdateComment(context.Background(), "x1", "text")
			tc.check(t, err)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := newTestClient(url).DeleteComment(context.Background(), "a")
	if !domain.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestRetry_OnlyReadsAndOnlyRetryable(t *testing.T) {
	var gets, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if gets.Add(1) < 3 {
				writeEnvelope(w, http.StatusServiceUnavailable, `{"success":false,"message":"busy"}`)
				return
			}
			writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"_id":"a","content":"x","author":{"_id":"u"}}}`)
		default:
			posts.Add(1)
			writeEnvelope(w, http.StatusServiceUnavailable, `{"success":false,"message":"busy"}`)
		}
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	got, err := c.FetchComment(context.Background(), "a")
	if err != nil {
		t.Fatalf("fetch comment: %v", err)
	}
	if got.ID != "a" || gets.Load() != 3 {
		t.Fatalf("expected success on third attempt, got id=%q attempts=%d", got.ID, gets.Load())
	}

	if _, err := c.ToggleReaction(context.Background(), "a", domain.ReactionLike); err == nil {
		t.Fatal("expected error")
	}
	if posts.Load() != 1 {
		t.Fatalf("expected writes to be attempted once, got %d", posts.Load())
	}
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeEnvelope(w, http.StatusBadRequest, `{"success":false,"message":"bad cursor"}`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).FetchComments(context.Background(), domain.PageRequest{Cursor: "zz"}); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected single attempt, got %d", hits.Load())
	}
}

func TestCircuitBreaker_OpensOnNetworkErrorsOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, `{"success":false,"message":"nope"}`)
	}))
	defer srv.Close()

	cb := NewCircuitBreaker("test", 1, time.Minute, time.Minute, 2, nil)
	c := New(srv.URL, ClientConfig{RetryBaseDelay: time.Millisecond}, WithCircuitBreaker(cb))
	for i := 0; i < 3; i++ {
		_, err := c.UpdateComment(context.Background(), "a", "x")
		var re *domain.RequestError
		if !errors.As(err, &re) {
			t.Fatalf("attempt %d: expected request error, got %v", i, err)
		}
	}

	dead := New("http://127.0.0.1:1", ClientConfig{RetryBaseDelay: time.Millisecond}, WithCircuitBreaker(cb))
	for i := 0; i < 2; i++ {
		if err := dead.DeleteComment(context.Background(), "a"); !domain.IsNetwork(err) {
			t.Fatalf("attempt %d: expected network error, got %v", i, err)
		}
	}
	err := dead.DeleteComment(context.Background(), "a")
	if !domain.IsNetwork(err) {
		t.Fatalf("expected open breaker to surface as network error, got %v", err)
	}
	if cb.State().String() != "open" {
		t.Fatalf("expected open breaker, got %s", cb.State())
	}
}
