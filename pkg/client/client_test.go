package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/javaruntime"
	"github.com/loykin/launchr/internal/launcher"
	"github.com/loykin/launchr/internal/layout"
	"github.com/loykin/launchr/internal/manager"
	"github.com/loykin/launchr/internal/server"
	"github.com/loykin/launchr/internal/settings"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fs := afero.NewMemMapFs()
	l := layout.New("/home")
	svc := launcher.New(launcher.Options{
		Fs:     fs,
		Layout: l,
		Runtime: javaruntime.New(fs, l, func(context.Context, string) (string, error) {
			return "", errors.New("not found")
		}),
		Settings:    settings.NewStore(fs, l.SettingsFile()),
		Manager:     manager.New(manager.Options{}),
		TotalMemory: func(context.Context) (uint64, error) { return 64 << 30, nil },
	})
	ts := httptest.NewServer(server.NewRouter(svc, "/api", nil).Handler(""))
	t.Cleanup(ts.Close)
	return New(Config{BaseURL: ts.URL + "/api", Timeout: 5 * time.Second})
}

func TestClientRoundTrips(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.True(t, c.IsReachable(ctx))

	versions, err := c.InstalledVersions(ctx)
	require.NoError(t, err)
	require.Empty(t, versions)

	ls, err := c.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, settings.Default(), ls)

	ls.Fullscreen = true
	require.NoError(t, c.SaveSettings(ctx, ls))
	got, err := c.Settings(ctx)
	require.NoError(t, err)
	require.True(t, got.Fullscreen)

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestClientPreservesErrorKind(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Launch(context.Background(), launcher.LaunchSpec{Version: "1.20.4"})
	require.True(t, apperr.IsKind(err, apperr.KindVersionNotFound), "got %v", err)

	_, err = c.JavaVersions(context.Background())
	require.NoError(t, err)

	_, err = c.Terminate(context.Background(), "")
	require.True(t, apperr.IsKind(err, apperr.KindInvalid), "got %v", err)
}

func TestClientUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: time.Second})
	require.False(t, c.IsReachable(context.Background()))
	_, err := c.Sessions(context.Background())
	require.True(t, apperr.IsKind(err, apperr.KindNetwork), "got %v", err)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	require.True(t, e.Retryable())
}
