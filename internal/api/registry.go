package api

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
)

// DefaultMenuOrder is the menu order used when a plugin doesn't set one.
const DefaultMenuOrder = 128

// Plugin is an HTTP API extension registered under its own URL prefix.
type Plugin interface {
	Name() string
	// Register adds the plugin routes to the mux, all of them under prefix.
	Register(mux *http.ServeMux, prefix string)
}

// RegisterOptions are the options of a plugin registration.
type RegisterOptions struct {
	// URLPrefix is where the plugin routes live, defaults to `/{name}`.
	URLPrefix string
	// Menu adds the plugin to the menu.
	Menu bool
	// MenuTitle defaults to the plugin name.
	MenuTitle string
	// Order sorts the menu ascending, defaults to DefaultMenuOrder.
	Order int
	// Home makes the plugin the target of `/`. Only one plugin can be home.
	Home bool
}

// MenuItem is a menu entry.
type MenuItem struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Order int    `json:"order"`
	// Current is set on the item the requested path belongs to.
	Current bool `json:"current,omitempty"`
}

// Registry holds the registered plugins and builds the API handler.
type Registry struct {
	mu      sync.Mutex
	mux     *http.ServeMux
	plugins map[string]string
	menu    []MenuItem
	home    string
	logger  log.Logger
}

// NewRegistry returns a new plugin registry with the builtin routes already registered.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.Noop
	}

	r := &Registry{
		mux:     http.NewServeMux(),
		plugins: map[string]string{},
		logger:  logger.WithValues(log.Kv{"svc": "api.Registry"}),
	}

	r.mux.HandleFunc("GET /{$}", r.handleHome)
	r.mux.HandleFunc("GET /healthz", handleHealth)
	r.mux.HandleFunc("GET /api/menu", r.handleMenu)

	return r
}

// Register registers a plugin.
func (r *Registry) Register(p Plugin, opts RegisterOptions) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin name is required: %w", model.ErrNotValid)
	}

	prefix := opts.URLPrefix
	if prefix == "" {
		prefix = "/" + name
	}
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		return fmt.Errorf("plugin %q can't be registered on the root path: %w", name, model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plugins[name]; ok {
		return fmt.Errorf("plugin %q: %w", name, model.ErrAlreadyExists)
	}
	for other, otherPrefix := range r.plugins {
		if otherPrefix == prefix {
			return fmt.Errorf("prefix %s is already used by plugin %q: %w", prefix, other, model.ErrAlreadyExists)
		}
	}
	if opts.Home && r.home != "" {
		return fmt.Errorf("home is already registered on %s: %w", r.home, model.ErrAlreadyExists)
	}

	p.Register(r.mux, prefix)
	r.plugins[name] = prefix

	if opts.Home {
		r.home = prefix
	}

	if opts.Menu {
		title := cmp.Or(opts.MenuTitle, name)
		order := opts.Order
		if order == 0 {
			order = DefaultMenuOrder
		}
		r.menu = append(r.menu, MenuItem{Name: name, Title: title, URL: prefix, Order: order})
		slices.SortStableFunc(r.menu, func(a, b MenuItem) int { return cmp.Compare(a.Order, b.Order) })
	}

	r.logger.Debugf("Plugin %s registered on %s", name, prefix)
	return nil
}

// Menu returns the menu sorted by order.
func (r *Registry) Menu() []MenuItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.menu)
}

// MenuFor returns the menu with the item that path belongs to marked as current.
// When more than one item matches, the longest URL wins.
func (r *Registry) MenuFor(path string) []MenuItem {
	menu := r.Menu()

	current := -1
	for i, item := range menu {
		if path != item.URL && !strings.HasPrefix(path, item.URL+"/") {
			continue
		}
		if current < 0 || len(item.URL) > len(menu[current].URL) {
			current = i
		}
	}
	if current >= 0 {
		menu[current].Current = true
	}

	return menu
}

// Handler returns the HTTP handler serving all the registered routes.
func (r *Registry) Handler() http.Handler { return r.mux }

func (r *Registry) handleHome(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	home := r.home
	r.mu.Unlock()

	if home == "" {
		WriteError(w, fmt.Errorf("no home registered: %w", model.ErrNotFound))
		return
	}

	http.Redirect(w, req, home, http.StatusFound)
}

// handleMenu serves the menu, `?path=` marks the item of that path as current.
func (r *Registry) handleMenu(w http.ResponseWriter, req *http.Request) {
	WriteJSON(w, http.StatusOK, r.MenuFor(req.URL.Query().Get("path")))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
