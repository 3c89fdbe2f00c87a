package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csdesk/console-cs/internal/api"
)

// quoteBackend is a minimal in-memory backend for one quote request.
type quoteBackend struct {
	t *testing.T

	mu       sync.Mutex
	quote    api.QuoteRequest
	comments []api.Comment
	failGet  bool
}

func (b *quoteBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote-requests/3", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failGet {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(b.t, w, b.quote)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/quote-requests/3/status", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Status api.QuoteStatus `json:"status"`
		}
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&payload))
		b.mu.Lock()
		b.quote.Status = payload.Status
		quote := b.quote
		b.mu.Unlock()
		writeJSON(b.t, w, quote)
	})
	mux.HandleFunc("/quote-requests/3/assignees", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			AssigneeIDs []int `json:"assignee_ids"`
		}
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&payload))
		b.mu.Lock()
		b.quote.AssigneeIDs = payload.AssigneeIDs
		quote := b.quote
		b.mu.Unlock()
		writeJSON(b.t, w, quote)
	})
	mux.HandleFunc("/quote-requests/3/comments", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			writeJSON(b.t, w, b.comments)
		case http.MethodPost:
			var payload api.CommentCreate
			require.NoError(b.t, json.NewDecoder(r.Body).Decode(&payload))
			comment := api.Comment{
				ID:        len(b.comments) + 100,
				ParentID:  payload.ParentID,
				Content:   payload.Content,
				CreatedAt: time.Now(),
			}
			b.comments = append(b.comments, comment)
			writeJSON(b.t, w, comment)
		}
	})
	return mux
}

func newQuoteBackend(t *testing.T) *quoteBackend {
	return &quoteBackend{
		t: t,
		quote: api.QuoteRequest{
			ID:               3,
			QuoteRequestText: "Need 50 seats of the pro tier",
			Status:           api.QuoteOpen,
			Organization:     "Acme",
			FailedProducts:   []string{"legacy-gateway"},
		},
		comments: []api.Comment{
			{ID: 1, Content: "checking stock", CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		},
	}
}

func TestQuoteRequestDetailLoad(t *testing.T) {
	backend := newQuoteBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewQuoteRequestDetail(testClient(t, srv), 3, nil)
	require.NoError(t, d.Load(context.Background()))

	assert.Equal(t, DetailReady, d.State())
	require.NotNil(t, d.QuoteRequest())
	assert.Equal(t, "Acme", d.QuoteRequest().Organization)
	assert.Equal(t, []string{"legacy-gateway"}, d.QuoteRequest().FailedProducts)
	assert.Len(t, d.Comments(), 1)
}

func TestQuoteRequestDetailLoadFailure(t *testing.T) {
	backend := newQuoteBackend(t)
	backend.failGet = true
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewQuoteRequestDetail(testClient(t, srv), 3, nil)
	require.Error(t, d.Load(context.Background()))
	assert.Equal(t, DetailFailed, d.State())
	assert.Nil(t, d.QuoteRequest())
}

func TestQuoteRequestStatusAndAssignees(t *testing.T) {
	backend := newQuoteBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewQuoteRequestDetail(testClient(t, srv), 3, nil)
	require.NoError(t, d.Load(context.Background()))

	require.NoError(t, d.SetStatus(context.Background(), api.QuoteDone))
	assert.Equal(t, api.QuoteDone, d.QuoteRequest().Status)

	require.NoError(t, d.SetAssignees(context.Background(), []int{4, 9}))
	assert.Equal(t, []int{4, 9}, d.QuoteRequest().AssigneeIDs)
}

func TestQuoteRequestAddComment(t *testing.T) {
	backend := newQuoteBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewQuoteRequestDetail(testClient(t, srv), 3, nil)
	require.NoError(t, d.Load(context.Background()))

	parent := 1
	require.NoError(t, d.AddComment(context.Background(), "supplier confirmed", &parent))

	comments := d.Comments()
	require.Len(t, comments, 1)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, "supplier confirmed", comments[0].Replies[0].Content)
}

func TestQuoteRequestDelete(t *testing.T) {
	backend := newQuoteBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewQuoteRequestDetail(testClient(t, srv), 3, nil)
	require.NoError(t, d.Load(context.Background()))
	require.NoError(t, d.Delete(context.Background()))
	assert.Equal(t, DetailDeleted, d.State())
}
