// Package mcpframe assembles the MCP server core: a handler registry, the
// protocol engine, and the streamable HTTP and stdio transports.
package mcpframe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mcpframe/mcp-frame-go/auth"
	"github.com/mcpframe/mcp-frame-go/config"
	"github.com/mcpframe/mcp-frame-go/engine"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
	"github.com/mcpframe/mcp-frame-go/sessions"
	"github.com/mcpframe/mcp-frame-go/stdio"
	"github.com/mcpframe/mcp-frame-go/streaminghttp"
)

// Server is the assembled MCP server.
type Server struct {
	cfg *config.Config
	log *slog.Logger

	reg *registry.Registry
	eng *engine.Engine

	httpSrv *http.Server
}

type serverConfig struct {
	cfg         *config.Config
	log         *slog.Logger
	info        mcp.ImplementationInfo
	validator   auth.TokenValidator
	rateRPS     float64
	rateBurst   float64
	strict      bool
	engineOpts  []engine.Option
	sessionOpts []sessions.ManagerOption
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

// WithConfig supplies an explicit configuration instead of the environment.
func WithConfig(cfg *config.Config) ServerOption {
	return func(c *serverConfig) { c.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(c *serverConfig) { c.log = l }
}

// WithServerInfo sets the identity advertised from initialize.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(c *serverConfig) { c.info = info }
}

// WithTokenValidator installs the validator for auth-required tools.
func WithTokenValidator(v auth.TokenValidator) ServerOption {
	return func(c *serverConfig) { c.validator = v }
}

// WithRateLimit enables per-session request rate limiting.
func WithRateLimit(rps, burst float64) ServerOption {
	return func(c *serverConfig) {
		c.rateRPS = rps
		c.rateBurst = burst
	}
}

// WithStrictInitialize rejects requests before notifications/initialized.
func WithStrictInitialize() ServerOption {
	return func(c *serverConfig) { c.strict = true }
}

// WithEngineOptions appends raw engine options.
func WithEngineOptions(opts ...engine.Option) ServerOption {
	return func(c *serverConfig) { c.engineOpts = append(c.engineOpts, opts...) }
}

// WithSessionOptions appends raw session manager options.
func WithSessionOptions(opts ...sessions.ManagerOption) ServerOption {
	return func(c *serverConfig) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// New constructs a Server. Configuration falls back to the environment when
// WithConfig is not supplied.
func New(opts ...ServerOption) (*Server, error) {
	sc := &serverConfig{}
	for _, opt := range opts {
		opt(sc)
	}

	if sc.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		sc.cfg = cfg
	}
	if sc.log == nil {
		if sc.cfg.UseSTDIO() {
			sc.log = slog.New(slog.NewTextHandler(os.Stderr, nil))
		} else {
			sc.log = slog.Default()
		}
	}
	if sc.info.Name == "" {
		sc.info = mcp.ImplementationInfo{Name: sc.cfg.ServerName, Version: sc.cfg.ServerVersion}
	}

	reg := registry.New()

	engineOpts := []engine.Option{
		engine.WithLogger(sc.log),
		engine.WithServerInfo(sc.info),
	}
	if sc.validator != nil {
		engineOpts = append(engineOpts, engine.WithTokenValidator(sc.validator))
	}
	if sc.strict {
		engineOpts = append(engineOpts, engine.WithStrictInitialize())
	}
	engineOpts = append(engineOpts, sc.engineOpts...)

	sessionOpts := append([]sessions.ManagerOption{
		sessions.WithManagerLogger(sc.log),
	}, sc.sessionOpts...)
	if sc.rateRPS > 0 {
		sessionOpts = append(sessionOpts, sessions.WithRateLimit(sc.rateRPS, sc.rateBurst))
	}

	eng := engine.NewWithSessions(reg, sessionOpts, engineOpts...)

	return &Server{cfg: sc.cfg, log: sc.log, reg: reg, eng: eng}, nil
}

// Engine exposes the protocol engine.
func (s *Server) Engine() *engine.Engine { return s.eng }

// Registry exposes the handler registry.
func (s *Server) Registry() *registry.Registry { return s.reg }

// RegisterTool registers a constructed tool.
func (s *Server) RegisterTool(t *registry.Tool) error {
	return s.reg.RegisterTool(t)
}

// RegisterResource registers a fixed-URI resource.
func (s *Server) RegisterResource(uri string, fn registry.ResourceFunc, opts ...registry.ResourceOption) error {
	res, err := registry.NewResource(uri, fn, opts...)
	if err != nil {
		return err
	}
	return s.reg.RegisterResource(res)
}

// RegisterResourceTemplate registers an RFC 6570 resource template.
func (s *Server) RegisterResourceTemplate(expr string, fn registry.TemplateFunc, opts ...registry.TemplateOption) error {
	tmpl, err := registry.NewResourceTemplate(expr, fn, opts...)
	if err != nil {
		return err
	}
	return s.reg.RegisterResourceTemplate(tmpl)
}

// RegisterPrompt registers a prompt.
func (s *Server) RegisterPrompt(name string, fn registry.PromptFunc, opts ...registry.PromptOption) error {
	p, err := registry.NewPrompt(name, fn, opts...)
	if err != nil {
		return err
	}
	return s.reg.RegisterPrompt(p)
}

// AddTool derives the input schema from A and registers the tool in one step.
func AddTool[A any](s *Server, name string, fn func(ctx context.Context, args A) (any, error), opts ...registry.ToolOption) error {
	t, err := registry.NewTool(name, fn, opts...)
	if err != nil {
		return err
	}
	return s.RegisterTool(t)
}

// NotifyResourceUpdated pushes notifications/resources/updated to subscribed
// sessions.
func (s *Server) NotifyResourceUpdated(uri string) {
	s.eng.NotifyResourceUpdated(uri)
}

// Run serves the configured transport until the context is canceled, then
// drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.UseSTDIO() {
		s.log.Info("server.start", slog.String("transport", "stdio"))
		h := stdio.New(s.eng, stdio.WithLogger(s.log))
		err := h.Serve(ctx)
		_ = s.eng.Shutdown(context.Background())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	handler := streaminghttp.New(s.eng, streaminghttp.WithLogger(s.log))
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("server.start", slog.String("transport", "http"), slog.String("addr", s.cfg.Addr()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}

	return s.Shutdown(context.Background())
}

// Shutdown drains the engine and stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = s.eng.Shutdown(ctx)
	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}
