package rest_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_CreateAndGet(t *testing.T) {
	h := newHarness(t)

	id := h.createUser(t, 76561198000000001, "gordon")

	w := h.get(t, "/api/users/1")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(id), body["user_id"])
	assert.Equal(t, "gordon", body["username"])

	w = h.get(t, "/api/users/steam/76561198000000001")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.get(t, "/api/users/9999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.get(t, "/api/users/notanumber")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsers_DuplicateSteamID(t *testing.T) {
	h := newHarness(t)

	h.createUser(t, 42, "first")
	w := h.do(t, http.MethodPost, "/api/users", map[string]interface{}{
		"steam_id": 42,
		"username": "second",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUsers_CreateValidation(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/users", map[string]interface{}{"username": "noid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsers_UpdateProfile(t *testing.T) {
	h := newHarness(t)
	id := h.createUser(t, 42, "gordon")

	w := h.do(t, http.MethodPut, "/api/users/1/profile", map[string]interface{}{
		"version": 0,
		"profile": map[string]interface{}{"display_name": "Gordon F."},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Gordon F.", decode(t, w)["display_name"])
	_ = id

	// Stale version is a conflict.
	w = h.do(t, http.MethodPut, "/api/users/1/profile", map[string]interface{}{
		"version": 0,
		"profile": map[string]interface{}{"display_name": "stale"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUsers_ActivateDeactivate(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, 42, "gordon")

	w := h.do(t, http.MethodPost, "/api/users/1/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.get(t, "/api/users/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["is_active"])

	w = h.do(t, http.MethodPost, "/api/users/1/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUsers_Search(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, 1, "alyx")
	h.createUser(t, 2, "barney")

	w := h.get(t, "/api/users/search?q=aly")
	require.Equal(t, http.StatusOK, w.Code)
	users := decode(t, w)["users"].([]interface{})
	assert.Len(t, users, 1)

	w = h.get(t, "/api/users/search")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsers_RecordLogin(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, 42, "gordon")

	w := h.do(t, http.MethodPost, "/api/users/1/login", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.get(t, "/api/users/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode(t, w)["last_login"])
}
