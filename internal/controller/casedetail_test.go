package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csdesk/console-cs/internal/api"
)

// staticTokens is an in-memory TokenSource holding a valid bearer token.
type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *staticTokens) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *staticTokens) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func testClient(t *testing.T, srv *httptest.Server) *api.Client {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return api.NewClient(srv.URL, &staticTokens{token: signed}, nil)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// caseBackend is a minimal in-memory backend for one case.
type caseBackend struct {
	t *testing.T

	mu           sync.Mutex
	kase         api.Case
	comments     []api.Comment
	checklist    []api.ChecklistItem
	failComments bool
	failToggle   bool
}

func (b *caseBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/cases/7", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			writeJSON(b.t, w, b.kase)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/cases/7/status", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Status api.CaseStatus `json:"status"`
		}
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&payload))
		b.mu.Lock()
		b.kase.Status = payload.Status
		kase := b.kase
		b.mu.Unlock()
		writeJSON(b.t, w, kase)
	})
	mux.HandleFunc("/cases/7/comments/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failComments {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
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
	mux.HandleFunc("/cases/7/checklists", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			writeJSON(b.t, w, b.checklist)
		case http.MethodPost:
			var payload struct {
				Content string `json:"content"`
			}
			require.NoError(b.t, json.NewDecoder(r.Body).Decode(&payload))
			item := api.ChecklistItem{ID: len(b.checklist) + 50, CaseID: 7, Content: payload.Content}
			b.checklist = append(b.checklist, item)
			writeJSON(b.t, w, item)
		}
	})
	mux.HandleFunc("/checklists/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failToggle {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var payload struct {
			IsDone bool `json:"is_done"`
		}
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&payload))
		item := b.checklist[0]
		item.IsDone = payload.IsDone
		b.checklist[0] = item
		writeJSON(b.t, w, item)
	})
	return mux
}

func newCaseBackend(t *testing.T) *caseBackend {
	parent := 1
	return &caseBackend{
		t: t,
		kase: api.Case{
			ID:       7,
			Title:    "VPN drops every hour",
			Status:   api.CaseOpen,
			Priority: api.PriorityHigh,
		},
		comments: []api.Comment{
			{ID: 1, Content: "root", CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
			{ID: 2, ParentID: &parent, Content: "reply", CreatedAt: time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)},
		},
		checklist: []api.ChecklistItem{
			{ID: 11, CaseID: 7, Content: "Collect logs"},
		},
	}
}

func TestCaseDetailLoad(t *testing.T) {
	backend := newCaseBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewCaseDetail(testClient(t, srv), 7, nil)
	require.NoError(t, d.Load(context.Background()))

	assert.Equal(t, DetailReady, d.State())
	require.NotNil(t, d.Case())
	assert.Equal(t, "VPN drops every hour", d.Case().Title)

	comments := d.Comments()
	require.Len(t, comments, 1)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, 2, comments[0].Replies[0].ID)

	assert.Len(t, d.Checklist(), 1)
}

func TestCaseDetailLoadAnyLegFailure(t *testing.T) {
	backend := newCaseBackend(t)
	backend.failComments = true
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewCaseDetail(testClient(t, srv), 7, nil)
	err := d.Load(context.Background())
	require.Error(t, err)

	// One failed leg means no partial record.
	assert.Equal(t, DetailFailed, d.State())
	assert.Nil(t, d.Case())
	assert.Error(t, d.Err())
}

func TestCaseDetailSetStatus(t *testing.T) {
	backend := newCaseBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewCaseDetail(testClient(t, srv), 7, nil)
	require.NoError(t, d.Load(context.Background()))

	var changes int
	d.OnChange(func() { changes++ })

	require.NoError(t, d.SetStatus(context.Background(), api.CaseDone))
	assert.Equal(t, api.CaseDone, d.Case().Status)
	assert.Equal(t, 1, changes)
}

func TestCaseDetailAddCommentRefetchesTree(t *testing.T) {
	backend := newCaseBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewCaseDetail(testClient(t, srv), 7, nil)
	require.NoError(t, d.Load(context.Background()))

	parent := 1
	require.NoError(t, d.AddComment(context.Background(), "second reply", &parent))

	comments := d.Comments()
	require.Len(t, comments, 1)
	assert.Len(t, comments[0].Replies, 2, "the tree is rebuilt from the server after posting")
}

func TestToggleChecklistOptimisticRollback(t *testing.T) {
	backend := newCaseBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewCaseDetail(testClient(t, srv), 7, nil)
	require.NoError(t, d.Load(context.Background()))

	var mu sync.Mutex
	var observed []bool
	d.OnChange(func() {
		mu.Lock()
		observed = append(observed, d.Checklist()[0].IsDone)
		mu.Unlock()
	})

	// Success path: flips and stays flipped.
	require.NoError(t, d.ToggleChecklist(context.Background(), 11))
	assert.True(t, d.Checklist()[0].IsDone)

	// Failure path: flips immediately, then rolls back when the server
	// rejects it.
	backend.mu.Lock()
	backend.failToggle = true
	backend.mu.Unlock()

	err := d.ToggleChecklist(context.Background(), 11)
	require.Error(t, err)
	assert.True(t, d.Checklist()[0].IsDone, "failed toggle restores the previous state")

	mu.Lock()
	defer mu.Unlock()
	// optimistic flip (true), merge (true), optimistic flip (false), rollback (true)
	require.Len(t, observed, 4)
	assert.False(t, observed[2], "the optimistic flip is visible before the server answers")
	assert.True(t, observed[3])
}

func TestCaseDetailDelete(t *testing.T) {
	backend := newCaseBackend(t)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	d := NewCaseDetail(testClient(t, srv), 7, nil)
	require.NoError(t, d.Load(context.Background()))
	require.NoError(t, d.Delete(context.Background()))
	assert.Equal(t, DetailDeleted, d.State())
}

// fakeMemoSource backs a MemoPanel without a server.
type fakeMemoSource struct {
	mu      sync.Mutex
	memos   []api.Memo
	nextID  int
	failDel bool
}

func (f *fakeMemoSource) source() api.MemoSource {
	return api.MemoSource{
		List: func(ctx context.Context, ownerID int) ([]api.Memo, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			out := make([]api.Memo, len(f.memos))
			copy(out, f.memos)
			return out, nil
		},
		Create: func(ctx context.Context, ownerID int, content string) (*api.Memo, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.nextID++
			memo := api.Memo{ID: f.nextID, ProductID: ownerID, Content: content}
			f.memos = append(f.memos, memo)
			return &memo, nil
		},
		Delete: func(ctx context.Context, memoID int) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.failDel {
				return errors.New("delete rejected")
			}
			for i := range f.memos {
				if f.memos[i].ID == memoID {
					f.memos = append(f.memos[:i], f.memos[i+1:]...)
					break
				}
			}
			return nil
		},
	}
}

func TestMemoPanelDeleteRollback(t *testing.T) {
	src := &fakeMemoSource{
		memos:  []api.Memo{{ID: 1, Content: "first"}, {ID: 2, Content: "second"}, {ID: 3, Content: "third"}},
		nextID: 3,
	}
	panel := NewMemoPanel(src.source(), 5, nil)
	require.NoError(t, panel.Load(context.Background()))

	// Successful delete removes the memo.
	require.NoError(t, panel.Delete(context.Background(), 1))
	require.Len(t, panel.Memos(), 2)

	// Rejected delete restores the memo at its original position.
	src.mu.Lock()
	src.failDel = true
	src.mu.Unlock()

	err := panel.Delete(context.Background(), 2)
	require.Error(t, err)
	memos := panel.Memos()
	require.Len(t, memos, 2)
	assert.Equal(t, 2, memos[0].ID, "rolled-back memo returns to its slot")
	assert.Equal(t, 3, memos[1].ID)
}

func TestMemoPanelAdd(t *testing.T) {
	src := &fakeMemoSource{}
	panel := NewMemoPanel(src.source(), 5, nil)
	require.NoError(t, panel.Load(context.Background()))

	require.NoError(t, panel.Add(context.Background(), "ships with v2 firmware"))
	memos := panel.Memos()
	require.Len(t, memos, 1)
	assert.Equal(t, "ships with v2 firmware", memos[0].Content)
	assert.NotZero(t, memos[0].ID, "the server-assigned ID is kept")
}
