package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/yosida95/uritemplate/v3"
)

// ResourceFunc produces the contents of a fixed-URI resource.
type ResourceFunc func(ctx context.Context) (*mcp.ResourceContents, error)

// Resource is a registered fixed-URI resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	Icons       []mcp.Icon

	// CacheTTL > 0 enables caching of read results until the TTL elapses or
	// the resource is invalidated.
	CacheTTL time.Duration

	fn ResourceFunc

	cacheMu   sync.Mutex
	cached    *mcp.ResourceContents
	fetchedAt time.Time

	wire wireCache
}

// ResourceOption configures resource construction.
type ResourceOption func(*Resource)

// WithResourceName sets the display name (defaults to the URI).
func WithResourceName(name string) ResourceOption {
	return func(r *Resource) { r.Name = name }
}

// WithResourceDescription sets the description used in listings.
func WithResourceDescription(desc string) ResourceOption {
	return func(r *Resource) { r.Description = desc }
}

// WithMimeType sets the advertised MIME type.
func WithMimeType(mt string) ResourceOption {
	return func(r *Resource) { r.MimeType = mt }
}

// WithResourceIcons attaches icon references.
func WithResourceIcons(icons ...mcp.Icon) ResourceOption {
	return func(r *Resource) { r.Icons = icons }
}

// WithCacheTTL enables content caching for reads.
func WithCacheTTL(ttl time.Duration) ResourceOption {
	return func(r *Resource) { r.CacheTTL = ttl }
}

// NewResource constructs a fixed-URI resource.
func NewResource(uri string, fn ResourceFunc, opts ...ResourceOption) (*Resource, error) {
	if fn == nil {
		return nil, fmt.Errorf("resource %q: nil handler", uri)
	}
	r := &Resource{URI: uri, Name: uri, fn: fn}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.recomputeWire(); err != nil {
		return nil, err
	}
	return r, nil
}

// Read returns the resource contents, honoring the content cache when a TTL
// is configured.
func (r *Resource) Read(ctx context.Context) (*mcp.ResourceContents, error) {
	if r.CacheTTL <= 0 {
		return r.fn(ctx)
	}

	r.cacheMu.Lock()
	if r.cached != nil && time.Since(r.fetchedAt) < r.CacheTTL {
		c := *r.cached
		r.cacheMu.Unlock()
		return &c, nil
	}
	r.cacheMu.Unlock()

	c, err := r.fn(ctx)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	cp := *c
	r.cached = &cp
	r.fetchedAt = time.Now()
	r.cacheMu.Unlock()
	return c, nil
}

// dropContentCache clears any cached read result.
func (r *Resource) dropContentCache() {
	r.cacheMu.Lock()
	r.cached = nil
	r.cacheMu.Unlock()
}

// InvalidateContent clears the content cache; call when the backing data
// changes outside the TTL window.
func (r *Resource) InvalidateContent() { r.dropContentCache() }

// Wire returns the cached serialized descriptor bytes.
func (r *Resource) Wire() json.RawMessage { return r.wire.bytes() }

// ToWireDict returns a deep copy of the descriptor dict.
func (r *Resource) ToWireDict() map[string]any { return r.wire.dict() }

func (r *Resource) recomputeWire() error {
	desc := mcp.Resource{
		URI:         r.URI,
		Name:        r.Name,
		Description: r.Description,
		MimeType:    r.MimeType,
		Icons:       r.Icons,
	}
	return r.wire.compute(desc)
}

// TemplateFunc produces contents for a URI bound from an RFC 6570 template.
type TemplateFunc func(ctx context.Context, uri string, vars map[string]string) (*mcp.ResourceContents, error)

// ResourceTemplate is a registered RFC 6570 Level-1 URI template.
type ResourceTemplate struct {
	URITemplate string
	Name        string
	Description string
	MimeType    string
	Icons       []mcp.Icon

	tmpl *uritemplate.Template
	fn   TemplateFunc

	wire wireCache
}

// TemplateOption configures resource template construction.
type TemplateOption func(*ResourceTemplate)

// WithTemplateName sets the display name.
func WithTemplateName(name string) TemplateOption {
	return func(t *ResourceTemplate) { t.Name = name }
}

// WithTemplateDescription sets the description used in listings.
func WithTemplateDescription(desc string) TemplateOption {
	return func(t *ResourceTemplate) { t.Description = desc }
}

// WithTemplateMimeType sets the advertised MIME type.
func WithTemplateMimeType(mt string) TemplateOption {
	return func(t *ResourceTemplate) { t.MimeType = mt }
}

// NewResourceTemplate constructs a resource template. The template expression
// is validated at construction.
func NewResourceTemplate(expr string, fn TemplateFunc, opts ...TemplateOption) (*ResourceTemplate, error) {
	if fn == nil {
		return nil, fmt.Errorf("resource template %q: nil handler", expr)
	}
	tmpl, err := uritemplate.New(expr)
	if err != nil {
		return nil, fmt.Errorf("resource template %q: %w", expr, err)
	}
	t := &ResourceTemplate{URITemplate: expr, Name: expr, tmpl: tmpl, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.recomputeWire(); err != nil {
		return nil, err
	}
	return t, nil
}

// Match binds a concrete URI against the template, returning the variable
// values when the URI matches.
func (t *ResourceTemplate) Match(uri string) (map[string]string, bool) {
	values := t.tmpl.Match(uri)
	if values == nil {
		return nil, false
	}
	vars := make(map[string]string, len(values))
	for _, name := range t.tmpl.Varnames() {
		vars[name] = values.Get(name).String()
	}
	return vars, true
}

// Read resolves the template for the given URI and variables.
func (t *ResourceTemplate) Read(ctx context.Context, uri string, vars map[string]string) (*mcp.ResourceContents, error) {
	return t.fn(ctx, uri, vars)
}

// Wire returns the cached serialized descriptor bytes.
func (t *ResourceTemplate) Wire() json.RawMessage { return t.wire.bytes() }

// ToWireDict returns a deep copy of the descriptor dict.
func (t *ResourceTemplate) ToWireDict() map[string]any { return t.wire.dict() }

func (t *ResourceTemplate) recomputeWire() error {
	desc := mcp.ResourceTemplate{
		URITemplate: t.URITemplate,
		Name:        t.Name,
		Description: t.Description,
		MimeType:    t.MimeType,
		Icons:       t.Icons,
	}
	return t.wire.compute(desc)
}

// PromptFunc renders a prompt with the supplied arguments.
type PromptFunc func(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error)

// Prompt is a registered prompt template.
type Prompt struct {
	Name        string
	Description string
	Arguments   []mcp.PromptArgument

	fn PromptFunc

	wire wireCache
}

// PromptOption configures prompt construction.
type PromptOption func(*Prompt)

// WithPromptDescription sets the description used in listings.
func WithPromptDescription(desc string) PromptOption {
	return func(p *Prompt) { p.Description = desc }
}

// WithPromptArguments declares the prompt's arguments.
func WithPromptArguments(args ...mcp.PromptArgument) PromptOption {
	return func(p *Prompt) { p.Arguments = args }
}

// NewPrompt constructs a prompt.
func NewPrompt(name string, fn PromptFunc, opts ...PromptOption) (*Prompt, error) {
	if fn == nil {
		return nil, fmt.Errorf("prompt %q: nil handler", name)
	}
	p := &Prompt{Name: name, fn: fn}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.recomputeWire(); err != nil {
		return nil, err
	}
	return p, nil
}

// Render produces the prompt messages for the given arguments.
func (p *Prompt) Render(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	return p.fn(ctx, args)
}

// Wire returns the cached serialized descriptor bytes.
func (p *Prompt) Wire() json.RawMessage { return p.wire.bytes() }

// ToWireDict returns a deep copy of the descriptor dict.
func (p *Prompt) ToWireDict() map[string]any { return p.wire.dict() }

func (p *Prompt) recomputeWire() error {
	desc := mcp.Prompt{
		Name:        p.Name,
		Description: p.Description,
		Arguments:   p.Arguments,
	}
	return p.wire.compute(desc)
}
