package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seoulmedi/hosqa/internal/pipeline"
	"github.com/seoulmedi/hosqa/internal/pkg/errcode"
)

func TestHealthz(t *testing.T) {
	router, _ := setupRouter(t)

	env := doJSON(t, router, http.MethodGet, "/api/v1/healthz", "", "")
	require.Zero(t, env.Code)
	require.Equal(t, true, env.Data["ok"])
}

func TestStatusEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	env := doJSON(t, router, http.MethodGet, "/api/v1/status", "", "")
	require.Zero(t, env.Code)
	require.Equal(t, "ready", env.Data["state"])
	require.NotEmpty(t, env.Data["snapshot_id"])
	require.Equal(t, float64(3), env.Data["records"])
	require.Contains(t, env.Data, "uptime_s")
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	router, _ := setupRouter(t)

	env := doJSON(t, router, http.MethodPost, "/api/v1/admin/login",
		`{"operator":"admin","password":"wrong"}`, "")
	require.Equal(t, errcode.ErrUnauthorized, env.Code)

	env = doJSON(t, router, http.MethodPost, "/api/v1/admin/login",
		`{"operator":"intruder","password":"secret"}`, "")
	require.Equal(t, errcode.ErrUnauthorized, env.Code)

	env = doJSON(t, router, http.MethodPost, "/api/v1/admin/login",
		`{"operator":"admin"}`, "")
	require.Equal(t, errcode.ErrInvalid, env.Code)
}

func TestAdminRebuildRequiresToken(t *testing.T) {
	router, _ := setupRouter(t)

	env := doJSON(t, router, http.MethodPost, "/api/v1/admin/rebuild", `{}`, "")
	require.Equal(t, errcode.ErrUnauthorized, env.Code)

	env = doJSON(t, router, http.MethodPost, "/api/v1/admin/rebuild", `{}`, "bogus-token")
	require.Equal(t, errcode.ErrUnauthorized, env.Code)
}

func TestAdminLoginAndRebuild(t *testing.T) {
	router, p := setupRouter(t)

	env := doJSON(t, router, http.MethodPost, "/api/v1/admin/login",
		`{"operator":"admin","password":"secret"}`, "")
	require.Zero(t, env.Code)
	token, _ := env.Data["token"].(string)
	require.NotEmpty(t, token)
	require.Contains(t, env.Data, "expires_at")

	before := p.Status().SnapshotID
	env = doJSON(t, router, http.MethodPost, "/api/v1/admin/rebuild", `{}`, token)
	require.Zero(t, env.Code)
	require.Equal(t, true, env.Data["accepted"])

	require.Eventually(t, func() bool {
		st := p.Status()
		return st.State == pipeline.StateReady.String() && st.SnapshotID != before
	}, 10*time.Second, 20*time.Millisecond)
}
