package rest_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedSocialLibraries sets up two friends where u2 owns a game u1 lacks.
func seedSocialLibraries(t *testing.T, h *harness) {
	t.Helper()
	h.createUser(t, 1, "u1")
	h.createUser(t, 2, "u2")
	h.createGame(t, 220, "Shared")
	h.createGame(t, 400, "Friend Pick")

	sendRequest(t, h, 1, 2)
	w := h.do(t, http.MethodPost, "/api/friendships/1/accept", map[string]interface{}{"user_id": 2})
	require.Equal(t, http.StatusOK, w.Code)

	for _, pair := range [][2]int64{{1, 1}, {2, 1}, {2, 2}} {
		w := h.do(t, http.MethodPost, "/api/users/"+itoa(pair[0])+"/library", map[string]interface{}{
			"game_id":        pair[1],
			"playtime_total": 60,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestAnalytics_Recommendations(t *testing.T) {
	h := newHarness(t)
	seedSocialLibraries(t, h)

	w := h.get(t, "/api/users/1/recommendations")
	require.Equal(t, http.StatusOK, w.Code)
	recs := decode(t, w)["recommendations"].([]interface{})
	require.Len(t, recs, 1)
	first := recs[0].(map[string]interface{})
	assert.Equal(t, "owned by friends", first["reason"])

	w = h.get(t, "/api/users/9999/recommendations")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalytics_CommonGames(t *testing.T) {
	h := newHarness(t)
	seedSocialLibraries(t, h)

	w := h.get(t, "/api/users/1/common/2")
	require.Equal(t, http.StatusOK, w.Code)
	games := decode(t, w)["games"].([]interface{})
	require.Len(t, games, 1)
	shared := games[0].(map[string]interface{})
	assert.Equal(t, "Shared", shared["game"].(map[string]interface{})["name"])
	assert.Equal(t, float64(120), shared["total_playtime"])
}

func TestAnalytics_Dashboard(t *testing.T) {
	h := newHarness(t)
	seedSocialLibraries(t, h)

	w := h.get(t, "/api/users/1/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	d := decode(t, w)
	assert.NotNil(t, d["statistics"])
	assert.NotNil(t, d["recommendations"])
	assert.NotNil(t, d["friend_activity"])

	w = h.get(t, "/api/users/9999/dashboard")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalytics_Compare(t *testing.T) {
	h := newHarness(t)
	seedSocialLibraries(t, h)

	w := h.get(t, "/api/users/1/compare/2")
	require.Equal(t, http.StatusOK, w.Code)
	cmp := decode(t, w)
	assert.Equal(t, true, cmp["are_friends"])
	statsB := cmp["stats_b"].(map[string]interface{})
	assert.Equal(t, float64(2), statsB["total_games"])
}
