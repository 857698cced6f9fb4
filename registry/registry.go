package registry

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Kind discriminates the handler tables.
type Kind string

const (
	KindTool             Kind = "tool"
	KindResource         Kind = "resource"
	KindResourceTemplate Kind = "resource_template"
	KindPrompt           Kind = "prompt"
)

var (
	// ErrDuplicateName indicates a handler with that name already exists.
	ErrDuplicateName = errors.New("duplicate handler name")
	// ErrInvalidName indicates the name violates the naming rule.
	ErrInvalidName = errors.New("invalid handler name")
	// ErrUnsupportedParameterType indicates schema derivation failed.
	ErrUnsupportedParameterType = errors.New("unsupported parameter type")
	// ErrNotFound indicates no handler is registered under that name.
	ErrNotFound = errors.New("handler not found")
)

// Tool names: 1-128 chars drawn from letters, digits, underscore, dot, dash.
var toolNameRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,128}$`)

// DefaultPageSize bounds list responses when the client supplies no limit.
const DefaultPageSize = 50

// Registry owns the registered tools, resources, resource templates, and
// prompts. Wire bytes for each handler are computed exactly once at
// registration; list responses concatenate those cached fragments.
type Registry struct {
	mu sync.RWMutex

	tools     map[string]*Tool
	toolOrder []string

	resources     map[string]*Resource
	resourceOrder []string

	templates     map[string]*ResourceTemplate
	templateOrder []string

	prompts     map[string]*Prompt
	promptOrder []string
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		tools:     make(map[string]*Tool),
		resources: make(map[string]*Resource),
		templates: make(map[string]*ResourceTemplate),
		prompts:   make(map[string]*Prompt),
	}
}

// RegisterTool validates and inserts a tool. The tool's wire bytes must have
// been computed by its constructor; registration freezes them.
func (r *Registry) RegisterTool(t *Tool) error {
	if t == nil {
		return fmt.Errorf("%w: nil tool", ErrInvalidName)
	}
	if !toolNameRe.MatchString(t.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: tool %q", ErrDuplicateName, t.Name)
	}
	r.tools[t.Name] = t
	r.toolOrder = append(r.toolOrder, t.Name)
	return nil
}

// RegisterResource inserts a resource keyed by URI.
func (r *Registry) RegisterResource(res *Resource) error {
	if res == nil || res.URI == "" {
		return fmt.Errorf("%w: empty resource uri", ErrInvalidName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[res.URI]; exists {
		return fmt.Errorf("%w: resource %q", ErrDuplicateName, res.URI)
	}
	r.resources[res.URI] = res
	r.resourceOrder = append(r.resourceOrder, res.URI)
	return nil
}

// RegisterResourceTemplate inserts a resource template keyed by URI template.
func (r *Registry) RegisterResourceTemplate(t *ResourceTemplate) error {
	if t == nil || t.URITemplate == "" {
		return fmt.Errorf("%w: empty uri template", ErrInvalidName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.URITemplate]; exists {
		return fmt.Errorf("%w: resource template %q", ErrDuplicateName, t.URITemplate)
	}
	r.templates[t.URITemplate] = t
	r.templateOrder = append(r.templateOrder, t.URITemplate)
	return nil
}

// RegisterPrompt inserts a prompt keyed by name.
func (r *Registry) RegisterPrompt(p *Prompt) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("%w: empty prompt name", ErrInvalidName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prompts[p.Name]; exists {
		return fmt.Errorf("%w: prompt %q", ErrDuplicateName, p.Name)
	}
	r.prompts[p.Name] = p
	r.promptOrder = append(r.promptOrder, p.Name)
	return nil
}

// Tool returns the registered tool by name.
func (r *Registry) Tool(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: tool %q", ErrNotFound, name)
	}
	return t, nil
}

// Resource returns the registered resource by URI.
func (r *Registry) Resource(uri string) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[uri]
	if !ok {
		return nil, fmt.Errorf("%w: resource %q", ErrNotFound, uri)
	}
	return res, nil
}

// MatchTemplate resolves a URI against the registered templates, returning the
// first template whose pattern matches along with the bound variables.
func (r *Registry) MatchTemplate(uri string) (*ResourceTemplate, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.templateOrder {
		t := r.templates[key]
		if vars, ok := t.Match(uri); ok {
			return t, vars, true
		}
	}
	return nil, nil, false
}

// Prompt returns the registered prompt by name.
func (r *Registry) Prompt(name string) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[name]
	if !ok {
		return nil, fmt.Errorf("%w: prompt %q", ErrNotFound, name)
	}
	return p, nil
}

// Deregister removes a handler of the given kind. It reports whether anything
// was removed.
func (r *Registry) Deregister(kind Kind, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case KindTool:
		if _, ok := r.tools[name]; ok {
			delete(r.tools, name)
			r.toolOrder = removeString(r.toolOrder, name)
			return true
		}
	case KindResource:
		if _, ok := r.resources[name]; ok {
			delete(r.resources, name)
			r.resourceOrder = removeString(r.resourceOrder, name)
			return true
		}
	case KindResourceTemplate:
		if _, ok := r.templates[name]; ok {
			delete(r.templates, name)
			r.templateOrder = removeString(r.templateOrder, name)
			return true
		}
	case KindPrompt:
		if _, ok := r.prompts[name]; ok {
			delete(r.prompts, name)
			r.promptOrder = removeString(r.promptOrder, name)
			return true
		}
	}
	return false
}

func removeString(s []string, v string) []string {
	n := 0
	for _, x := range s {
		if x == v {
			continue
		}
		s[n] = x
		n++
	}
	return s[:n]
}

// Invalidate recomputes the cached schema and wire bytes for the named
// handler. The previous byte slice is abandoned, never mutated.
func (r *Registry) Invalidate(kind Kind, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case KindTool:
		if t, ok := r.tools[name]; ok {
			return t.recomputeWire()
		}
	case KindResource:
		if res, ok := r.resources[name]; ok {
			res.dropContentCache()
			return res.recomputeWire()
		}
	case KindResourceTemplate:
		if t, ok := r.templates[name]; ok {
			return t.recomputeWire()
		}
	case KindPrompt:
		if p, ok := r.prompts[name]; ok {
			return p.recomputeWire()
		}
	}
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
}

// Counts returns the number of registered handlers per kind.
func (r *Registry) Counts() (tools, resources, templates, prompts int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools), len(r.resources), len(r.templates), len(r.prompts)
}

// Names returns the registered names for a kind in insertion order.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var src []string
	switch kind {
	case KindTool:
		src = r.toolOrder
	case KindResource:
		src = r.resourceOrder
	case KindResourceTemplate:
		src = r.templateOrder
	case KindPrompt:
		src = r.promptOrder
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// ListWire returns the cached wire fragments for a page of handlers of the
// given kind, plus the cursor for the next page. Ordering is insertion-stable.
func (r *Registry) ListWire(kind Kind, cursor string, limit int) ([]json.RawMessage, string, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	start, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var order []string
	switch kind {
	case KindTool:
		order = r.toolOrder
	case KindResource:
		order = r.resourceOrder
	case KindResourceTemplate:
		order = r.templateOrder
	case KindPrompt:
		order = r.promptOrder
	default:
		return nil, "", fmt.Errorf("unknown kind %q", kind)
	}

	if start > len(order) {
		start = len(order)
	}
	end := start + limit
	if end > len(order) {
		end = len(order)
	}

	frags := make([]json.RawMessage, 0, end-start)
	for _, name := range order[start:end] {
		switch kind {
		case KindTool:
			frags = append(frags, r.tools[name].Wire())
		case KindResource:
			frags = append(frags, r.resources[name].Wire())
		case KindResourceTemplate:
			frags = append(frags, r.templates[name].Wire())
		case KindPrompt:
			frags = append(frags, r.prompts[name].Wire())
		}
	}

	next := ""
	if end < len(order) {
		next = encodeCursor(end)
	}
	return frags, next, nil
}

// ConcatWire assembles a JSON array from pre-serialized fragments without
// re-serializing the elements.
func ConcatWire(frags []json.RawMessage) json.RawMessage {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range frags {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.Write(f)
	}
	sb.WriteByte(']')
	return json.RawMessage(sb.String())
}

// Pagination cursors are opaque to clients: base64 of an offset marker.
func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte("o:" + strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor")
	}
	s := string(b)
	if !strings.HasPrefix(s, "o:") {
		return 0, fmt.Errorf("invalid cursor")
	}
	n, err := strconv.Atoi(s[2:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid cursor")
	}
	return n, nil
}
