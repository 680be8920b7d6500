package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGames_CreateAndGet(t *testing.T) {
	h := newHarness(t)
	id := h.createGame(t, 220, "Half-Life 2")

	w := h.get(t, "/api/games/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(id), decode(t, w)["game_id"])

	w = h.get(t, "/api/games/app/220")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.get(t, "/api/games/9999")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGames_DuplicateAppID(t *testing.T) {
	h := newHarness(t)
	h.createGame(t, 220, "Half-Life 2")

	w := h.do(t, http.MethodPost, "/api/games", map[string]interface{}{
		"steam_app_id": 220,
		"name":         "Duplicate",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGames_Search(t *testing.T) {
	h := newHarness(t)
	h.createGame(t, 220, "Half-Life 2")
	h.createGame(t, 400, "Portal")

	w := h.get(t, "/api/games/search?q=portal")
	require.Equal(t, http.StatusOK, w.Code)
	games := decode(t, w)["games"].([]interface{})
	assert.Len(t, games, 1)

	w = h.get(t, "/api/games/search")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGames_UpdateInfoAndPrices(t *testing.T) {
	h := newHarness(t)
	h.createGame(t, 220, "Half-Life 2")

	w := h.do(t, http.MethodPut, "/api/games/1/info", map[string]interface{}{
		"name":      "Half-Life 2",
		"developer": "Valve",
		"publisher": "Valve",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Valve", decode(t, w)["developer"])

	w = h.do(t, http.MethodPut, "/api/games/1/prices", map[string]interface{}{
		"price_initial": 999,
		"price_current": 499,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(499), decode(t, w)["price_current"])

	w = h.do(t, http.MethodPut, "/api/games/1/prices", map[string]interface{}{
		"price_current": -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGames_UpdateLabels(t *testing.T) {
	h := newHarness(t)
	h.createGame(t, 220, "Half-Life 2")

	w := h.do(t, http.MethodPut, "/api/games/1/labels", map[string]interface{}{
		"genres": map[string]interface{}{"Action": true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestGames_FreeAndRecent(t *testing.T) {
	h := newHarness(t)
	h.createGame(t, 220, "Free Game")
	h.createGame(t, 400, "Paid Game")
	w := h.do(t, http.MethodPut, "/api/games/2/prices", map[string]interface{}{
		"price_current": 999,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.get(t, "/api/games/free")
	require.Equal(t, http.StatusOK, w.Code)
	games := decode(t, w)["games"].([]interface{})
	assert.Len(t, games, 1)

	w = h.get(t, "/api/games/recent?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	games = decode(t, w)["games"].([]interface{})
	assert.Len(t, games, 1)
}

func TestGames_PopularAndSimilar(t *testing.T) {
	h := newHarness(t)
	u1 := h.createUser(t, 1, "u1")
	u2 := h.createUser(t, 2, "u2")
	g1 := h.createGame(t, 220, "Half-Life 2")
	g2 := h.createGame(t, 400, "Portal")

	for _, pair := range [][2]int64{{u1, g1}, {u2, g1}, {u1, g2}} {
		w := h.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/library", pair[0]), map[string]interface{}{
			"game_id": pair[1],
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := h.get(t, "/api/games/popular")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.get(t, "/api/games/1/similar")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.get(t, "/api/games/9999/similar")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
