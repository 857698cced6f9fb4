// Package fsresources exposes a directory tree as MCP resources, pushing
// notifications/resources/updated when watched files change.
package fsresources

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/mcpframe/mcp-frame-go/engine"
	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
)

// Provider registers the files under a root directory as fixed-URI resources
// and fans out update notifications driven by filesystem events.
type Provider struct {
	eng     *engine.Engine
	root    string
	baseURI string
	log     *slog.Logger

	watcher *fsnotify.Watcher
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURI overrides the URI prefix (default "fs://workspace/").
func WithBaseURI(base string) Option {
	return func(p *Provider) {
		if base != "" {
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
			p.baseURI = base
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// New constructs a Provider rooted at dir. Symlinks in the root path are
// resolved. Files under the root are read with os.ReadFile, which follows a
// symlinked file even when its target lies outside the root.
func New(eng *engine.Engine, dir string, opts ...Option) (*Provider, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	p := &Provider{
		eng:     eng,
		root:    resolved,
		baseURI: "fs://workspace/",
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Register walks the root and registers one resource per regular file.
func (p *Provider) Register() error {
	return filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return p.registerFile(path)
	})
}

func (p *Provider) registerFile(path string) error {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return err
	}
	uri := p.uriFor(rel)
	mimeType := mime.TypeByExtension(filepath.Ext(path))

	res, err := registry.NewResource(uri, p.readFunc(path, uri, mimeType),
		registry.WithResourceName(rel),
		registry.WithMimeType(mimeType),
	)
	if err != nil {
		return err
	}
	if err := p.eng.Registry().RegisterResource(res); err != nil {
		// Already registered is fine during rescans.
		return nil
	}
	return nil
}

func (p *Provider) uriFor(rel string) string {
	return p.baseURI + filepath.ToSlash(rel)
}

func (p *Provider) readFunc(path, uri, mimeType string) registry.ResourceFunc {
	return func(ctx context.Context) (*mcp.ResourceContents, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		contents := &mcp.ResourceContents{URI: uri, MimeType: mimeType}
		if utf8.Valid(b) {
			contents.Text = string(b)
		} else {
			contents.Blob = base64.StdEncoding.EncodeToString(b)
		}
		return contents, nil
	}
}

// Watch starts the fsnotify loop: writes fan out resource-updated
// notifications to subscribed sessions, creates register new resources, and
// removals deregister them. Blocks until the context is done.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	p.watcher = watcher
	defer watcher.Close()

	if err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("watch root: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Warn("fsresources.watch.err", slog.String("err", err.Error()))
		}
	}
}

func (p *Provider) handleEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(p.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	uri := p.uriFor(rel)

	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil {
			if info.IsDir() {
				_ = p.watcher.Add(ev.Name)
				return
			}
			if err := p.registerFile(ev.Name); err != nil {
				p.log.Warn("fsresources.register.fail", slog.String("path", ev.Name), slog.String("err", err.Error()))
				return
			}
			p.eng.NotifyResourcesListChanged()
		}

	case ev.Op.Has(fsnotify.Write):
		p.eng.NotifyResourceUpdated(uri)

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		if p.eng.Registry().Deregister(registry.KindResource, uri) {
			p.eng.NotifyResourcesListChanged()
		}
	}
}
