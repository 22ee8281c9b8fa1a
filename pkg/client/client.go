package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/launcher"
	"github.com/loykin/launchr/internal/metrics"
)

// Client talks to a running launchr RPC server.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

const DefaultBaseURL = "http://127.0.0.1:7420/api"

func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL, Timeout: 30 * time.Second}
}

func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	h := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: h, logger: config.Logger}
}

type envelope struct {
	OK    bool              `json:"ok"`
	Data  json.RawMessage   `json:"data"`
	Error *apperr.ErrorBody `json:"error"`
}

// call performs one RPC and decodes the envelope's data into out. Server-side
// failures come back as *apperr.Error with the original kind; transport failures
// are NetworkFailure.
func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.Network("launchr server unreachable", err)
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return apperr.Serialization(fmt.Sprintf("decode %s response (status %d)", path, resp.StatusCode()), err)
	}
	if !env.OK {
		if env.Error == nil {
			return apperr.Newf(apperr.KindUnclassified, "%s failed with status %d", path, resp.StatusCode())
		}
		return apperr.New(env.Error.Kind, env.Error.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperr.Serialization("decode "+path+" data", err)
	}
	return nil
}

// IsReachable reports whether a server answers on the base URL.
func (c *Client) IsReachable(ctx context.Context) bool {
	err := c.call(ctx, http.MethodGet, "/sessions", nil, nil, nil)
	if err != nil {
		c.logger.Debug("launchr server unreachable", "error", err)
		return !apperr.IsKind(err, apperr.KindNetwork) && !errors.Is(err, context.DeadlineExceeded)
	}
	return true
}

func (c *Client) Launch(ctx context.Context, spec launcher.LaunchSpec) (launcher.LaunchOutcome, error) {
	var out launcher.LaunchOutcome
	err := c.call(ctx, http.MethodPost, "/launch_game", nil, spec, &out)
	return out, err
}

// Terminate stops a session; an empty id selects the most recent running one.
func (c *Client) Terminate(ctx context.Context, session string) (launcher.Session, error) {
	var out launcher.Session
	err := c.call(ctx, http.MethodPost, "/terminate_game", nil, map[string]string{"session": session}, &out)
	return out, err
}

func (c *Client) InstalledVersions(ctx context.Context) ([]launcher.VersionRecord, error) {
	var out []launcher.VersionRecord
	err := c.call(ctx, http.MethodGet, "/get_installed_versions", nil, nil, &out)
	return out, err
}

func (c *Client) AvailableVersions(ctx context.Context, refresh bool) ([]launcher.VersionRecord, error) {
	var out []launcher.VersionRecord
	q := map[string]string{"refresh": strconv.FormatBool(refresh)}
	err := c.call(ctx, http.MethodGet, "/available_versions", q, nil, &out)
	return out, err
}

func (c *Client) Install(ctx context.Context, version string) (launcher.InstallState, error) {
	var out launcher.InstallState
	err := c.call(ctx, http.MethodPost, "/install_version", nil, map[string]string{"version": version}, &out)
	return out, err
}

func (c *Client) InstallStatus(ctx context.Context, version string) (launcher.InstallState, error) {
	var out launcher.InstallState
	err := c.call(ctx, http.MethodGet, "/install_status", map[string]string{"version": version}, nil, &out)
	return out, err
}

func (c *Client) Installs(ctx context.Context) ([]launcher.InstallState, error) {
	var out []launcher.InstallState
	err := c.call(ctx, http.MethodGet, "/install_status", nil, nil, &out)
	return out, err
}

// WaitInstall polls until the install of version reaches a terminal stage. onState,
// when set, sees every polled state.
func (c *Client) WaitInstall(ctx context.Context, version string, every time.Duration, onState func(launcher.InstallState)) (launcher.InstallState, error) {
	if every <= 0 {
		every = 500 * time.Millisecond
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		st, err := c.InstallStatus(ctx, version)
		if err != nil {
			return st, err
		}
		if onState != nil {
			onState(st)
		}
		if st.Stage.Terminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) CancelInstall(ctx context.Context, version string) error {
	return c.call(ctx, http.MethodPost, "/cancel_install", nil, map[string]string{"version": version}, nil)
}

func (c *Client) JavaVersions(ctx context.Context) ([]launcher.RuntimeRecord, error) {
	var out []launcher.RuntimeRecord
	err := c.call(ctx, http.MethodGet, "/get_java_versions", nil, nil, &out)
	return out, err
}

func (c *Client) Settings(ctx context.Context) (launcher.LaunchSettings, error) {
	var out launcher.LaunchSettings
	err := c.call(ctx, http.MethodGet, "/get_game_settings", nil, nil, &out)
	return out, err
}

func (c *Client) SaveSettings(ctx context.Context, ls launcher.LaunchSettings) error {
	return c.call(ctx, http.MethodPost, "/save_game_settings", nil, ls, nil)
}

func (c *Client) Sessions(ctx context.Context) ([]launcher.Session, error) {
	var out []launcher.Session
	err := c.call(ctx, http.MethodGet, "/sessions", nil, nil, &out)
	return out, err
}

func (c *Client) Session(ctx context.Context, id string) (launcher.Session, error) {
	var out launcher.Session
	err := c.call(ctx, http.MethodGet, "/sessions/"+id, nil, nil, &out)
	return out, err
}

func (c *Client) Usage(ctx context.Context, id string) (metrics.Usage, error) {
	var out metrics.Usage
	err := c.call(ctx, http.MethodGet, "/sessions/"+id+"/usage", nil, nil, &out)
	return out, err
}
