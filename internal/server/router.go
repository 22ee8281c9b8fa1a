package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/config"
	"github.com/loykin/launchr/internal/launcher"
	"github.com/loykin/launchr/internal/metrics"
)

// Router exposes the launcher operations as JSON over HTTP. Every response body is
// an apperr.Envelope.
// Endpoints (relative to basePath):
//
//	POST /launch_game             body: LaunchSpec
//	POST /terminate_game          body: {"session": "..."} (empty = most recent)
//	GET  /get_installed_versions
//	GET  /available_versions      query: refresh=1
//	POST /install_version         body: {"version": "..."}
//	GET  /install_status          query: version=... (omitted = all installs)
//	GET  /install_events          query: version=... (server-sent events)
//	POST /cancel_install          body: {"version": "..."}
//	GET  /get_java_versions
//	GET  /get_game_settings
//	POST /save_game_settings      body: LaunchSettings
//	GET  /sessions
//	GET  /sessions/:id
//	GET  /sessions/:id/usage
type Router struct {
	svc      *launcher.Service
	basePath string
	log      *slog.Logger
}

func NewRouter(svc *launcher.Service, basePath string, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{svc: svc, basePath: sanitizeBase(basePath), log: log}
}

// Handler returns the gin engine. metricsPath, when non-empty, serves the
// prometheus registry outside basePath.
func (r *Router) Handler(metricsPath string) http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(r.log))
	g.NoRoute(func(c *gin.Context) {
		respond(c, nil, apperr.Newf(apperr.KindInvalid, "unknown operation %s %s", c.Request.Method, c.Request.URL.Path))
	})
	if metricsPath != "" {
		g.GET(sanitizeBase(metricsPath), gin.WrapH(metrics.Handler()))
	}

	group := g.Group(r.basePath)
	group.POST("/launch_game", r.handleLaunch)
	group.POST("/terminate_game", r.handleTerminate)
	group.GET("/get_installed_versions", r.handleInstalled)
	group.GET("/available_versions", r.handleAvailable)
	group.POST("/install_version", r.handleInstall)
	group.GET("/install_status", r.handleInstallStatus)
	group.GET("/install_events", r.handleInstallEvents)
	group.POST("/cancel_install", r.handleCancelInstall)
	group.GET("/get_java_versions", r.handleJavaVersions)
	group.GET("/get_game_settings", r.handleGetSettings)
	group.POST("/save_game_settings", r.handleSaveSettings)
	group.GET("/sessions", r.handleSessions)
	group.GET("/sessions/:id", r.handleSession)
	group.GET("/sessions/:id/usage", r.handleUsage)
	return g
}

// NewServer binds cfg.Listen and serves the router in the background. The listener
// is opened before returning so address errors surface to the caller.
func NewServer(cfg config.ServerConfig, metricsPath string, svc *launcher.Service, log *slog.Logger) (*http.Server, net.Addr, error) {
	r := NewRouter(svc, cfg.BasePath, log)
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r.Handler(metricsPath),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("rpc server stopped", "error", err)
		}
	}()
	return server, ln.Addr(), nil
}

// --- Handlers ---

type sessionReq struct {
	Session string `json:"session"`
}

type versionReq struct {
	Version string `json:"version"`
}

func (r *Router) handleLaunch(c *gin.Context) {
	var spec launcher.LaunchSpec
	if !bind(c, &spec, false) {
		return
	}
	out, err := r.svc.LaunchGame(c.Request.Context(), spec)
	respond(c, out, err)
}

func (r *Router) handleTerminate(c *gin.Context) {
	var req sessionReq
	if !bind(c, &req, true) {
		return
	}
	s, err := r.svc.TerminateGame(req.Session)
	respond(c, s, err)
}

func (r *Router) handleInstalled(c *gin.Context) {
	list, err := r.svc.InstalledVersions(c.Request.Context())
	respond(c, list, err)
}

func (r *Router) handleAvailable(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	list, err := r.svc.AvailableVersions(c.Request.Context(), refresh)
	respond(c, list, err)
}

func (r *Router) handleInstall(c *gin.Context) {
	var req versionReq
	if !bind(c, &req, false) {
		return
	}
	st, err := r.svc.InstallVersion(c.Request.Context(), req.Version)
	if err != nil {
		respond(c, nil, err)
		return
	}
	c.JSON(http.StatusAccepted, apperr.OK(st))
}

func (r *Router) handleInstallStatus(c *gin.Context) {
	version := c.Query("version")
	if version == "" {
		respond(c, r.svc.Installs(), nil)
		return
	}
	st, err := r.svc.InstallStatus(version)
	respond(c, st, err)
}

// handleInstallEvents streams InstallState updates until the install reaches a
// terminal stage or the client goes away.
func (r *Router) handleInstallEvents(c *gin.Context) {
	version := c.Query("version")
	ch, cancel, ok := r.svc.WatchInstall(version)
	if !ok {
		respond(c, nil, apperr.Newf(apperr.KindInvalid, "no install of %q has been started", version))
		return
	}
	defer cancel()
	c.Stream(func(w io.Writer) bool {
		select {
		case st, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("state", st)
			return !st.Stage.Terminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (r *Router) handleCancelInstall(c *gin.Context) {
	var req versionReq
	if !bind(c, &req, false) {
		return
	}
	err := r.svc.CancelInstall(req.Version)
	respond(c, gin.H{"version": req.Version, "cancelled": err == nil}, err)
}

func (r *Router) handleJavaVersions(c *gin.Context) {
	list, err := r.svc.JavaVersions(c.Request.Context())
	if list == nil && err == nil {
		list = []launcher.RuntimeRecord{}
	}
	respond(c, list, err)
}

func (r *Router) handleGetSettings(c *gin.Context) {
	ls, err := r.svc.GameSettings()
	respond(c, ls, err)
}

func (r *Router) handleSaveSettings(c *gin.Context) {
	var ls launcher.LaunchSettings
	if !bind(c, &ls, false) {
		return
	}
	if err := r.svc.SaveGameSettings(ls); err != nil {
		respond(c, nil, err)
		return
	}
	respond(c, ls, nil)
}

func (r *Router) handleSessions(c *gin.Context) {
	respond(c, r.svc.Sessions(), nil)
}

func (r *Router) handleSession(c *gin.Context) {
	id := c.Param("id")
	s, ok := r.svc.Session(id)
	if !ok {
		respond(c, nil, apperr.Newf(apperr.KindInvalid, "unknown game session %q", id))
		return
	}
	respond(c, s, nil)
}

func (r *Router) handleUsage(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	u, err := r.svc.SessionUsage(ctx, c.Param("id"))
	respond(c, u, err)
}
