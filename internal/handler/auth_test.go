package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
	"github.com/ecclesia/internal/storage/memory"
)

type fakeUserStore struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*model.User)}
}

func (f *fakeUserStore) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.byEmail[u.Email] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeGlobalJoiner struct {
	mu     sync.Mutex
	joined []string
}

func (f *fakeGlobalJoiner) EnsureGlobalRoom(_ context.Context, userID string) (*model.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, userID)
	return &model.ChatRoom{ID: model.GlobalRoomID, Name: model.GlobalRoomName}, nil
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestRegisterJoinsGlobalRoom(t *testing.T) {
	users := newFakeUserStore()
	joiner := &fakeGlobalJoiner{}
	sessions := memory.New()
	defer sessions.Close()
	h := NewAuthHandler(users, joiner, sessions, time.Hour)

	rec := postJSON(t, h.Register, "/api/register",
		`{"email":"ana@igreja.example","password":"segredo123","first_name":"Ana","last_name":"Lima"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	assert.Empty(t, resp.User.PasswordHash)
	assert.Equal(t, model.RoleMember, resp.User.Role)

	joiner.mu.Lock()
	defer joiner.mu.Unlock()
	require.Len(t, joiner.joined, 1, "a new member is enrolled in the global room at registration")
	assert.Equal(t, resp.User.ID, joiner.joined[0])
}

func TestRegisterValidation(t *testing.T) {
	users := newFakeUserStore()
	joiner := &fakeGlobalJoiner{}
	sessions := memory.New()
	defer sessions.Close()
	h := NewAuthHandler(users, joiner, sessions, time.Hour)

	rec := postJSON(t, h.Register, "/api/register",
		`{"email":"not-an-email","password":"segredo123","first_name":"Ana"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Register, "/api/register",
		`{"email":"ana@igreja.example","password":"curta","first_name":"Ana"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Register, "/api/register",
		`{"email":"ana@igreja.example","password":"segredo123","first_name":"Ana"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, h.Register, "/api/register",
		`{"email":"ana@igreja.example","password":"segredo123","first_name":"Ana"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	joiner.mu.Lock()
	defer joiner.mu.Unlock()
	assert.Len(t, joiner.joined, 1, "only the successful registration joins the global room")
}
