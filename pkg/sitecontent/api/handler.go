// Package api exposes the site content store over HTTP.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/assetref"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/cache"
)

// DefaultMaxUploadBytes bounds the size of a write request body.
const DefaultMaxUploadBytes int64 = 10 << 20

// multipartMemory is the part of a multipart form kept in memory; larger
// files spill to temporary files.
const multipartMemory = 8 << 20

// DefaultBundles lists the sections read together for a page.
var DefaultBundles = map[string][]string{
	"about":     {"hero", "overview", "exhibitions"},
	"home":      {"hero"},
	"portfolio": {"hero"},
}

// Handler serves the public read endpoints and the admin write endpoints
type Handler struct {
	service        sitecontent.Service
	cache          *cache.Store
	resolver       *assetref.Resolver
	assetPrefix    string
	maxUploadBytes int64
	bundles        map[string][]string
}

// Option configures a Handler
type Option func(*Handler)

// WithCache serves GET /api/homepage through store
func WithCache(store *cache.Store) Option {
	return func(h *Handler) {
		h.cache = store
	}
}

// WithResolver adds absolute asset URLs to read responses
func WithResolver(resolver *assetref.Resolver) Option {
	return func(h *Handler) {
		h.resolver = resolver
	}
}

// WithAssetPrefix sets the path stored assets are served under
func WithAssetPrefix(prefix string) Option {
	return func(h *Handler) {
		if prefix != "" {
			h.assetPrefix = "/" + strings.Trim(prefix, "/")
		}
	}
}

// WithMaxUploadBytes bounds write request bodies
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithBundle sets the sections returned for page by GET /api/pages/{page}
func WithBundle(page string, keys ...string) Option {
	return func(h *Handler) {
		h.bundles[page] = keys
	}
}

// New creates a new handler for service
func New(service sitecontent.Service, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		assetPrefix:    assetref.DefaultPrefix,
		maxUploadBytes: DefaultMaxUploadBytes,
		bundles:        make(map[string][]string, len(DefaultBundles)),
	}
	for page, keys := range DefaultBundles {
		h.bundles[page] = keys
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the complete route tree
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)
	r.Get(h.assetPrefix+"/{name}", h.ServeAsset)
	r.Head(h.assetPrefix+"/{name}", h.ServeAsset)

	r.Route("/api", func(r chi.Router) {
		r.Get("/homepage", h.GetHomepage)
		r.Get("/about", h.GetAbout)
		r.Get("/pages/{page}", h.GetPage)
		r.Get("/parts/{page}/{key}", h.GetPart)

		r.Mount("/admin", h.AdminRoutes())
	})

	return r
}

// AdminRoutes returns the routes mounted under /api/admin
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/dynamic-part/{key}", h.GetHomePart)
	r.Get("/parts/{page}", h.ListParts)
	r.Post("/parts/{page}/{key}", h.PutPart)

	for _, b := range SectionBindings {
		writer := h.SectionWriter(b)
		r.Post(b.Path, writer)
		for _, alias := range b.Aliases {
			r.Post(alias, writer)
		}
	}
	r.Post("/about/exhibitions", h.PutExhibitions)

	return r
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}
