package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/billbatista/acasinha-splits/ledger"
	"github.com/billbatista/acasinha-splits/session"
	"github.com/billbatista/acasinha-splits/token"
	"github.com/billbatista/acasinha-splits/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	server *httptest.Server
}

type account struct {
	ID    uuid.UUID
	Token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, configure func(*Deps)) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := user.NewMemoryRepository()
	issuer, err := token.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	deps := Deps{
		Ledger:   ledger.NewService(ledger.NewMemoryRepository(), ledger.WithDirectory(users), ledger.WithLogger(logger)),
		Users:    users,
		Sessions: session.NewMemoryRepository(time.Hour),
		Tokens:   issuer,
		Logger:   logger,
	}
	if configure != nil {
		configure(&deps)
	}
	a := New(deps)
	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)
	return &testServer{t: t, server: server}
}

func (s *testServer) do(method, path, bearer string, body any) (*http.Response, []byte) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(s.t, err)
			raw = string(encoded)
		}
		reader = bytes.NewBufferString(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, data
}

func (s *testServer) register(email string) account {
	s.t.Helper()

	resp, body := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "hunter2", "name": "Test",
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		User  user.User `json:"user"`
		Token string    `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(body, &out))
	return account{ID: out.User.ID, Token: out.Token}
}

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	ana := s.register("ana@example.com")

	resp, _ := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "ana@example.com", "password": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "nope", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decodeBody[authResponse](t, body)
	assert.NotEmpty(t, login.Token)

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)

	resp, body = s.do(http.MethodGet, "/api/users/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ana.ID, decodeBody[user.User](t, body).ID)

	resp, body = s.do(http.MethodPatch, "/api/users/me", login.Token, map[string]string{"name": "Ana Paula"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ana Paula", decodeBody[user.User](t, body).Name)

	resp, _ = s.do(http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionCookie(t *testing.T) {
	s := newTestServer(t)
	s.register("bia@example.com")

	resp, _ := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "bia@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	call := func(method, path string) int {
		req, err := http.NewRequest(method, s.server.URL+path, nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie.Value})
		resp, err := s.server.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/users/me/balance"))
	assert.Equal(t, http.StatusNoContent, call(http.MethodPost, "/api/auth/logout"))
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/api/users/me/balance"))
}

func TestEventPaymentFlow(t *testing.T) {
	s := newTestServer(t)
	ana := s.register("ana@example.com")
	bia := s.register("bia@example.com")

	resp, body := s.do(http.MethodPost, "/api/events", ana.Token, map[string]any{
		"title": "Dinner",
		"total": "20.00",
		"participants": []map[string]any{
			{"user_id": ana.ID},
			{"user_id": bia.ID},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decodeBody[eventView](t, body)
	require.Len(t, created.Entries, 2)
	assert.Equal(t, "20.00", created.Totals.Obligation.String())

	var biaEntry ledger.Entry
	for _, e := range created.Entries {
		if e.UserID == bia.ID {
			biaEntry = e
		}
	}
	assert.Equal(t, "10.00", biaEntry.Obligation.String())

	resp, body = s.do(http.MethodPost, "/api/payments", bia.Token, map[string]any{
		"entry_id": biaEntry.ID, "amount": "10.01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))

	resp, body = s.do(http.MethodPost, "/api/payments", bia.Token, map[string]any{
		"entry_id": biaEntry.ID, "amount": "0",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = s.do(http.MethodPost, "/api/payments", bia.Token, map[string]any{
		"entry_id": biaEntry.ID, "amount": "4.00", "version": 0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	paid := decodeBody[paymentResponse](t, body)
	assert.Equal(t, bia.ID, paid.Payment.PayerID)
	assert.Equal(t, int64(1), paid.Entry.Version)

	resp, _ = s.do(http.MethodPost, "/api/payments", bia.Token, map[string]any{
		"entry_id": biaEntry.ID, "amount": "1.00", "version": 0,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/api/users/me/balance", ana.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	anaBalance := decodeBody[balanceResponse](t, body)
	assert.Equal(t, "6.00", anaBalance.OwedToUser.String())
	assert.Equal(t, "10.00", anaBalance.OwedByUser.String())
	assert.Equal(t, "-4.00", anaBalance.Net.String())

	resp, body = s.do(http.MethodGet, "/api/users/"+bia.ID.String()+"/balance", bia.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "6.00", decodeBody[balanceResponse](t, body).OwedByUser.String())

	resp, _ = s.do(http.MethodGet, "/api/users/"+bia.ID.String()+"/balance", ana.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/api/entries/"+biaEntry.ID.String(), ana.Token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/events/"+created.Event.ID.String()+"/cancel", bia.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(http.MethodPost, "/api/events/"+created.Event.ID.String()+"/cancel", ana.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeBody[eventView](t, body).Event.Cancelled)

	resp, body = s.do(http.MethodGet, "/api/users/me/balance", bia.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, decodeBody[balanceResponse](t, body).OwedByUser)
}

func TestEventManagement(t *testing.T) {
	s := newTestServer(t)
	ana := s.register("ana@example.com")
	bia := s.register("bia@example.com")
	caio := s.register("caio@example.com")

	resp, body := s.do(http.MethodPost, "/api/events", ana.Token, map[string]any{
		"title": "Trip",
		"total": 9000,
		"participants": []map[string]any{
			{"user_id": ana.ID},
			{"user_id": bia.ID, "included": false},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decodeBody[eventView](t, body)
	eventPath := "/api/events/" + created.Event.ID.String()
	assert.Equal(t, 1, created.Totals.Settled+created.Totals.Open)

	resp, body = s.do(http.MethodPatch, eventPath, ana.Token, map[string]string{"title": "Beach trip"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Beach trip", decodeBody[eventView](t, body).Event.Title)

	resp, body = s.do(http.MethodPost, eventPath+"/entries", ana.Token, map[string]any{
		"user_id": caio.ID, "obligation": "15.50",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	caioEntry := decodeBody[ledger.Entry](t, body)
	assert.Equal(t, 2, caioEntry.Position)

	resp, _ = s.do(http.MethodPost, eventPath+"/entries", ana.Token, map[string]any{
		"user_id": caio.ID, "obligation": "1.00",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	entryPath := "/api/entries/" + caioEntry.ID.String()
	resp, _ = s.do(http.MethodPatch, entryPath, ana.Token, map[string]any{"obligation": "20.00"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(http.MethodPatch, entryPath, ana.Token, map[string]any{"obligation": "20.00", "version": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "20.00", decodeBody[ledger.Entry](t, body).Obligation.String())

	resp, _ = s.do(http.MethodDelete, entryPath, bia.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = s.do(http.MethodDelete, entryPath, ana.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/api/events", ana.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]ledger.Event](t, body), 1)

	resp, _ = s.do(http.MethodDelete, eventPath, ana.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, eventPath, ana.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestParticipantFindsWhatTheyOwe(t *testing.T) {
	s := newTestServer(t)
	ana := s.register("ana@example.com")
	bia := s.register("bia@example.com")
	caio := s.register("caio@example.com")

	resp, body := s.do(http.MethodGet, "/api/users?email=BIA@example.com", ana.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	found := decodeBody[user.User](t, body)
	assert.Equal(t, bia.ID, found.ID)
	assert.NotContains(t, string(body), "password")

	resp, _ = s.do(http.MethodGet, "/api/users?email=ghost@example.com", ana.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/api/users", ana.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/api/users?email=bia@example.com", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(http.MethodPost, "/api/events", ana.Token, map[string]any{
		"title":        "Groceries",
		"total":        "30.00",
		"participants": []map[string]any{{"user_id": ana.ID}, {"user_id": found.ID}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	eventPath := "/api/events/" + decodeBody[eventView](t, body).Event.ID.String()

	resp, body = s.do(http.MethodGet, "/api/users/me/entries", bia.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	owed := decodeBody[[]ledger.Participation](t, body)
	require.Len(t, owed, 1)
	assert.Equal(t, "Groceries", owed[0].Event.Title)
	assert.Equal(t, "15.00", owed[0].Owed.String())

	resp, body = s.do(http.MethodPost, "/api/payments", bia.Token, map[string]any{
		"entry_id": owed[0].Entry.ID, "amount": "15.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.True(t, decodeBody[paymentResponse](t, body).Entry.Settled)

	resp, body = s.do(http.MethodGet, "/api/users/me/entries", caio.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, _ = s.do(http.MethodGet, eventPath, bia.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, eventPath, caio.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSecureCookies(t *testing.T) {
	for _, secure := range []bool{false, true} {
		s := newTestServerWith(t, func(d *Deps) { d.SecureCookies = secure })
		s.register("dora@example.com")

		resp, _ := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "dora@example.com", "password": "hunter2"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var cookie *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == session.CookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.Equal(t, secure, cookie.Secure)
	}
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)
	ana := s.register("ana@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/events", `{"title":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/events", `{"title":"x","total":"1.00","colour":"red"}`, http.StatusBadRequest},
		{"too precise", http.MethodPost, "/api/events", `{"title":"x","total":"1.001","participants":[]}`, http.StatusBadRequest},
		{"bad event id", http.MethodGet, "/api/events/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown event", http.MethodGet, "/api/events/" + uuid.NewString(), nil, http.StatusNotFound},
		{"unknown participant", http.MethodPost, "/api/events", map[string]any{
			"title": "x", "total": "1.00", "participants": []map[string]any{{"user_id": uuid.New()}},
		}, http.StatusNotFound},
		{"unknown entry", http.MethodPost, "/api/payments", map[string]any{
			"entry_id": uuid.New(), "amount": "1.00",
		}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(tt.method, tt.path, ana.Token, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrInvalidInput, http.StatusBadRequest},
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{ledger.ErrForbidden, http.StatusForbidden},
		{ledger.ErrNotFound, http.StatusNotFound},
		{ledger.ErrVersionConflict, http.StatusConflict},
		{ledger.ErrAlreadyExists, http.StatusConflict},
		{ledger.ErrOverPayment, http.StatusUnprocessableEntity},
		{ledger.ErrDeleteWithBalance, http.StatusUnprocessableEntity},
		{ledger.ErrEventCancelled, http.StatusUnprocessableEntity},
		{ledger.ErrEntrySettled, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
