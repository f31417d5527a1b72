package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"focuslock/internal/api/middleware"
	"focuslock/internal/core"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStorage is an in-memory storage.Storage for handler tests
type fakeStorage struct {
	presets map[string]*core.Preset
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{presets: make(map[string]*core.Preset)}
}

func (f *fakeStorage) CreatePreset(ctx context.Context, preset *core.Preset) error {
	if err := preset.Validate(); err != nil {
		return err
	}
	f.presets[preset.ID] = preset
	return nil
}

func (f *fakeStorage) GetPreset(ctx context.Context, userID, id string) (*core.Preset, error) {
	p, ok := f.presets[id]
	if !ok || p.UserID != userID {
		return nil, core.ErrPresetNotFound
	}
	return p, nil
}

func (f *fakeStorage) ListPresets(ctx context.Context, userID string) ([]*core.Preset, error) {
	out := make([]*core.Preset, 0, len(f.presets))
	for _, p := range f.presets {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStorage) SavePreset(ctx context.Context, preset *core.Preset) error {
	if err := preset.Validate(); err != nil {
		return err
	}
	if _, ok := f.presets[preset.ID]; !ok {
		return core.ErrPresetNotFound
	}
	f.presets[preset.ID] = preset
	return nil
}

func (f *fakeStorage) DeletePreset(ctx context.Context, userID, id string) error {
	if _, ok := f.presets[id]; !ok {
		return core.ErrPresetNotFound
	}
	delete(f.presets, id)
	return nil
}

func (f *fakeStorage) SetActiveExclusive(ctx context.Context, userID, presetID string) error {
	return nil
}

func (f *fakeStorage) SetPresetActive(ctx context.Context, userID, presetID string, active bool) error {
	return nil
}

func (f *fakeStorage) GetLockStatus(ctx context.Context, userID string) (*core.LockStatus, error) {
	return &core.LockStatus{UserID: userID}, nil
}

func (f *fakeStorage) SetLockStatus(ctx context.Context, userID string, isLocked bool, endsAt, startedAt *time.Time) error {
	return nil
}

func (f *fakeStorage) GetTapoutStatus(ctx context.Context, userID string) (*core.TapoutStatus, error) {
	return &core.TapoutStatus{UserID: userID}, nil
}

func (f *fakeStorage) SaveTapoutStatus(ctx context.Context, status *core.TapoutStatus) error {
	return nil
}

func (f *fakeStorage) ConsumeTapout(ctx context.Context, userID string) (int, error) {
	return 0, core.ErrTapoutExhausted
}

func (f *fakeStorage) SetPendingTapout(ctx context.Context, pending *core.PendingTapout) error {
	return nil
}

func (f *fakeStorage) GetPendingTapout(ctx context.Context, userID string) (*core.PendingTapout, error) {
	return nil, nil
}

func (f *fakeStorage) ClearPendingTapout(ctx context.Context, userID string) error { return nil }

func (f *fakeStorage) CreateUser(ctx context.Context, user *core.User) error { return nil }

func (f *fakeStorage) GetUser(ctx context.Context, id string) (*core.User, error) {
	return nil, core.ErrUserNotFound
}

func (f *fakeStorage) ListUserIDs(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeStorage) Close() error { return nil }

// mockPresetController controls what the handlers see as the enforced session
type mockPresetController struct {
	session *core.Session
}

func (m *mockPresetController) CurrentSession(ctx context.Context, userID string) (*core.Session, error) {
	return m.session, nil
}

func (m *mockPresetController) EnableSchedule(ctx context.Context, userID, presetID string) (*core.Preset, error) {
	return nil, core.ErrPresetNotFound
}

func (m *mockPresetController) DisableSchedule(ctx context.Context, userID, presetID string) error {
	return core.ErrPresetNotFound
}

func newPresetsRouter(storage *fakeStorage, controller *mockPresetController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "u1")
	})

	h := NewPresetsHandler(storage, controller, nil)
	router.GET("/presets", h.ListPresets)
	router.POST("/presets", h.CreatePreset)
	router.GET("/presets/:id", h.GetPreset)
	router.PATCH("/presets/:id", h.UpdatePreset)
	router.DELETE("/presets/:id", h.DeletePreset)
	return router
}

func TestPresetsHandler_CreateAndGet(t *testing.T) {
	storage := newFakeStorage()
	router := newPresetsRouter(storage, &mockPresetController{})

	payload := `{"name": "Focus", "mode": "specific", "selected_apps": ["com.example.game"], "duration_minutes": 45, "strict_mode": true}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/presets", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var created presetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Focus", created.Name)
	assert.True(t, created.StrictMode)
	assert.False(t, created.IsActive)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/presets/"+created.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPresetsHandler_CreateValidationError(t *testing.T) {
	storage := newFakeStorage()
	router := newPresetsRouter(storage, &mockPresetController{})

	// Specific mode with nothing selected
	payload := `{"name": "Empty", "mode": "specific"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/presets", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
}

func TestPresetsHandler_UpdateEnforcedRejected(t *testing.T) {
	storage := newFakeStorage()
	enforced := &core.Preset{ID: "p1", UserID: "u1", Name: "Focus", Mode: core.BlockModeAll, IsActive: true}
	storage.presets["p1"] = enforced

	controller := &mockPresetController{
		session: &core.Session{Preset: enforced, Lock: &core.LockStatus{UserID: "u1", IsLocked: true}},
	}
	router := newPresetsRouter(storage, controller)

	payload := `{"name": "Renamed", "mode": "all"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/presets/p1", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PRESET_ENFORCED", body["code"])
	// Untouched
	assert.Equal(t, "Focus", storage.presets["p1"].Name)
}

func TestPresetsHandler_DeleteEnforcedRejected(t *testing.T) {
	storage := newFakeStorage()
	enforced := &core.Preset{ID: "p1", UserID: "u1", Name: "Focus", Mode: core.BlockModeAll, IsActive: true}
	storage.presets["p1"] = enforced

	controller := &mockPresetController{
		session: &core.Session{Preset: enforced, Lock: &core.LockStatus{UserID: "u1", IsLocked: true}},
	}
	router := newPresetsRouter(storage, controller)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/presets/p1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, storage.presets, "p1")
}

func TestPresetsHandler_DeleteDefaultRequiresForce(t *testing.T) {
	storage := newFakeStorage()
	storage.presets["p1"] = &core.Preset{ID: "p1", UserID: "u1", Name: "Default", Mode: core.BlockModeAll, IsDefault: true}
	router := newPresetsRouter(storage, &mockPresetController{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/presets/p1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "DEFAULT_PRESET", body["code"])

	// Explicit force goes through
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/presets/p1?force=true", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, storage.presets, "p1")
}

func TestPresetsHandler_GetMissing(t *testing.T) {
	router := newPresetsRouter(newFakeStorage(), &mockPresetController{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/presets/missing", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
