package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/section"
)

// homepageResponse always carries data, null when the hero was never written.
type homepageResponse struct {
	Status bool      `json:"status"`
	Data   *SlotView `json:"data"`
	Cached bool      `json:"cached"`
}

// BundleResponse holds the sections of a page and their decoded descriptions
type BundleResponse struct {
	Status   bool                           `json:"status"`
	Data     map[string]*SlotView           `json:"data"`
	Sections map[string]section.Description `json:"sections,omitempty"`
}

// GetPart returns /api/parts/{page}/{key}
func (h *Handler) GetPart(w http.ResponseWriter, r *http.Request) {
	h.getPart(w, r, chi.URLParam(r, "page"), chi.URLParam(r, "key"))
}

// GetHomePart returns a section of the home page
func (h *Handler) GetHomePart(w http.ResponseWriter, r *http.Request) {
	h.getPart(w, r, "home", chi.URLParam(r, "key"))
}

func (h *Handler) getPart(w http.ResponseWriter, r *http.Request, page, key string) {
	slot, err := h.service.Find(r.Context(), page, key)
	if err != nil {
		h.renderError(w, r, "Failed to fetch dynamic part", err)
		return
	}
	if slot == nil {
		h.renderNotFound(w, r)
		return
	}

	render.JSON(w, r, Response{Status: true, Data: h.view(slot)})
}

// GetHomepage returns the home hero, through the cache when one is configured
func (h *Handler) GetHomepage(w http.ResponseWriter, r *http.Request) {
	var (
		slot   *sitecontent.Slot
		cached bool
		err    error
	)
	if h.cache != nil {
		slot, cached, err = h.cache.Lookup(r.Context(), "home", "hero")
	} else {
		slot, err = h.service.Find(r.Context(), "home", "hero")
	}
	if err != nil {
		h.renderError(w, r, "Failed to fetch homepage", err)
		return
	}

	render.JSON(w, r, homepageResponse{Status: true, Data: h.view(slot), Cached: cached})
}

// GetAbout returns the about page bundle
func (h *Handler) GetAbout(w http.ResponseWriter, r *http.Request) {
	h.bundle(w, r, "about")
}

// GetPage returns the sections of /api/pages/{page}. ?keys=a,b overrides
// the configured section list.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	h.bundle(w, r, chi.URLParam(r, "page"))
}

func (h *Handler) bundle(w http.ResponseWriter, r *http.Request, page string) {
	keys := splitKeys(r.URL.Query().Get("keys"))
	if len(keys) == 0 {
		keys = h.bundles[page]
	}

	slots, err := h.service.Bundle(r.Context(), page, keys)
	if err != nil {
		h.renderError(w, r, "Failed to fetch page", err)
		return
	}

	resp := BundleResponse{Status: true, Data: make(map[string]*SlotView, len(slots))}
	for key, slot := range slots {
		resp.Data[key] = h.view(slot)
		if slot == nil || slot.Description == nil {
			continue
		}
		d, err := section.Decode(section.KindFor(slot.Page, slot.Key), slot.Description)
		if err != nil {
			slog.Warn("Undecodable description", "page", slot.Page, "key", slot.Key, "error", err)
			continue
		}
		if resp.Sections == nil {
			resp.Sections = make(map[string]section.Description)
		}
		resp.Sections[key] = d
	}

	render.JSON(w, r, resp)
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// ListParts returns every slot of /api/admin/parts/{page}
func (h *Handler) ListParts(w http.ResponseWriter, r *http.Request) {
	slots, err := h.service.ListSlots(r.Context(), chi.URLParam(r, "page"))
	if err != nil {
		h.renderError(w, r, "Failed to list dynamic parts", err)
		return
	}

	views := make([]*SlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, h.view(slot))
	}
	render.JSON(w, r, Response{Status: true, Data: views})
}

// ServeAsset streams a stored upload
func (h *Handler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	ref := h.assetPrefix + "/" + chi.URLParam(r, "name")

	rc, meta, err := h.service.OpenAsset(r.Context(), ref)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		slog.Error("Failed to open asset", "ref", ref, "error", err)
		http.Error(w, "Failed to open asset", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	etag := ""
	if meta.ETag != "" {
		etag = strconv.Quote(meta.ETag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if !meta.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", meta.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	// names are unique per upload, so content never changes
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("Asset stream interrupted", "ref", ref, "error", err)
	}
}
