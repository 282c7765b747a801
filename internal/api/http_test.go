package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtding233/techrace-backend/internal/engine"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPGameFlow(t *testing.T) {
	h := NewHandler(newTestGames(t), nil).Routes()

	rec := do(t, h, http.MethodPost, "/games", `{"max_rounds": 3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created createResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, 3, created.Config.MaxRounds)
	require.Equal(t, engine.StatusAwaitingSubmissions, created.Status)
	base := "/games/" + created.ID

	rec = do(t, h, http.MethodPost, base+"/teams/US/validate", `{"BR": 25}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var b budgetResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.False(t, b.OK)
	require.Equal(t, 12, b.Budget.Budget)

	rec = do(t, h, http.MethodPost, base+"/teams/US/allocation", `{"SE": 1, "BR": 2, "AR": {"L": 2}, "IM": "open"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.True(t, b.OK)
	require.Equal(t, 5, b.Used)
	require.Equal(t, 7, b.Remaining)

	rec = do(t, h, http.MethodPost, base+"/teams/US/forecast", `{"tier": "L", "dice": 2, "trials": 50}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/resolve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st engine.GameState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, 2, st.Round)

	rec = do(t, h, http.MethodPost, base+"/resolve", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var e errResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	require.Equal(t, string(engine.CodeAlreadyResolved), e.Code)

	rec = do(t, h, http.MethodPost, base+"/open", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, base+"?role=China", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.NotContains(t, st.PrivateLogs, engine.Team("US"))

	rec = do(t, h, http.MethodGet, "/games", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPErrors(t *testing.T) {
	games := newTestGames(t)
	h := NewHandler(games, nil).Routes()
	id := createTestGame(t, games)
	base := "/games/" + id

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/games/nope?role=GM", "", http.StatusNotFound},
		{http.MethodGet, base, "", http.StatusBadRequest},
		{http.MethodGet, base + "?role=Atlantis", "", http.StatusNotFound},
		{http.MethodPost, base + "/teams/US/allocation", `{"BR": -1}`, http.StatusBadRequest},
		{http.MethodPost, base + "/teams/US/allocation", `{"bogus": 1}`, http.StatusBadRequest},
		{http.MethodPost, base + "/teams/Atlantis/allocation", `{}`, http.StatusNotFound},
		{http.MethodPost, base + "/resolve?force=maybe", "", http.StatusBadRequest},
		{http.MethodPost, base + "/teams/US/forecast", `{"tier": "L", "dice": 9223372036854775807}`, http.StatusBadRequest},
		{http.MethodPost, base + "/teams/US/forecast", `{"tier": "L", "dice": 1, "trials": 1000000}`, http.StatusBadRequest},
		{http.MethodPost, base + "/teams/US/allocation", `{"BR": 9223372036854775807, "TE": 1}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := do(t, h, c.method, c.path, c.body)
		require.Equal(t, c.want, rec.Code, "%s %s: %s", c.method, c.path, rec.Body.String())
	}
}

func TestHTTPIncompleteNeedsForce(t *testing.T) {
	h := NewHandler(newTestGames(t), nil).Routes()
	rec := do(t, h, http.MethodPost, "/games", `{"require_all_submissions": true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(t, h, http.MethodPost, "/games/"+created.ID+"/resolve", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var e errResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	require.Equal(t, string(engine.CodeIncompleteSubmissions), e.Code)
	require.Equal(t, "US,China,France,Russia", e.Metadata["missing"])

	rec = do(t, h, http.MethodPost, "/games/"+created.ID+"/resolve?force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
