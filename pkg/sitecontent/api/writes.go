package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/section"
)

// Binding maps the form of an admin section editor onto one slot.
type Binding struct {
	Path    string
	Aliases []string
	Page    string
	Key     string
	Fields  map[string]sitecontent.Field // text inputs
	Flags   map[string]sitecontent.Field // boolean inputs stored as "true"/"false"
	Files   map[string]sitecontent.Field // file inputs
	Message string
}

// SectionBindings are the admin editors of the site.
var SectionBindings = []Binding{
	{
		Path: "/homepage/hero",
		Page: "home",
		Key:  "hero",
		Fields: map[string]sitecontent.Field{
			"quote":    sitecontent.FieldTitle1,
			"author":   sitecontent.FieldTitle2,
			"ctaLabel": sitecontent.FieldLinkTitle1,
			"ctaHref":  sitecontent.FieldLink1,
		},
		Files:   map[string]sitecontent.Field{"image": sitecontent.FieldImage1},
		Message: "Hero section updated successfully",
	},
	{
		Path:    "/portfolio/hero",
		Aliases: []string{"/portolio/hero"},
		Page:    "portfolio",
		Key:     "hero",
		Files:   map[string]sitecontent.Field{"image": sitecontent.FieldImage1},
		Message: "Hero section updated successfully",
	},
	{
		Path: "/about/hero",
		Page: "about",
		Key:  "hero",
		Fields: map[string]sitecontent.Field{
			"title":    sitecontent.FieldTitle1,
			"subtitle": sitecontent.FieldTitle2,
		},
		Flags:   map[string]sitecontent.Field{"overlay": sitecontent.FieldDesc},
		Files:   map[string]sitecontent.Field{"image": sitecontent.FieldImage1},
		Message: "About hero updated successfully",
	},
	{
		Path: "/about/overview",
		Page: "about",
		Key:  "overview",
		Fields: map[string]sitecontent.Field{
			"postTitle":   sitecontent.FieldTitle1,
			"postHref":    sitecontent.FieldLink1,
			"postExcerpt": sitecontent.FieldTitle2,
			"ctaLabel":    sitecontent.FieldLinkTitle1,
			"paragraphs":  sitecontent.FieldDesc,
		},
		Files:   map[string]sitecontent.Field{"image": sitecontent.FieldImage1},
		Message: "About overview updated successfully",
	},
}

// genericFiles are the file inputs accepted by the generic writer.
var genericFiles = map[string]sitecontent.Field{
	"image":   sitecontent.FieldImage1,
	"image_1": sitecontent.FieldImage1,
	"image_2": sitecontent.FieldImage2,
}

// PutPart upserts /api/admin/parts/{page}/{key}. Form names are slot field names.
func (h *Handler) PutPart(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		h.renderError(w, r, "Invalid form", err)
		return
	}

	patch := sitecontent.Patch{}
	names := make([]string, 0, len(r.PostForm))
	for name := range r.PostForm {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := sitecontent.ParseField(name)
		if err != nil {
			h.renderError(w, r, "Invalid form", err)
			return
		}
		patch[f] = r.PostForm.Get(name)
	}

	assets, closeAll, err := formFiles(r, genericFiles)
	defer closeAll()
	if err != nil {
		h.renderError(w, r, "Invalid form", err)
		return
	}

	h.put(w, r, sitecontent.PutSlotRequest{
		Page:   chi.URLParam(r, "page"),
		Key:    chi.URLParam(r, "key"),
		Patch:  patch,
		Assets: assets,
	}, "Dynamic part saved")
}

// SectionWriter returns the handler for one admin section editor.
// Inputs missing from the form leave their field untouched.
func (h *Handler) SectionWriter(b Binding) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.parseForm(w, r); err != nil {
			h.renderError(w, r, "Invalid form", err)
			return
		}

		patch := sitecontent.Patch{}
		for name, f := range b.Fields {
			if v, ok := formValue(r, name); ok {
				patch[f] = v
			}
		}
		for name, f := range b.Flags {
			v, ok := formValue(r, name)
			if !ok {
				continue
			}
			flag, err := section.ParseFlag(v)
			if err != nil {
				h.renderError(w, r, "Invalid form", &sitecontent.ValidationError{Field: name, Reason: fmt.Sprintf("invalid boolean %q", v)})
				return
			}
			patch[f] = section.EncodeFlag(flag)
		}

		assets, closeAll, err := formFiles(r, b.Files)
		defer closeAll()
		if err != nil {
			h.renderError(w, r, "Invalid form", err)
			return
		}

		h.put(w, r, sitecontent.PutSlotRequest{Page: b.Page, Key: b.Key, Patch: patch, Assets: assets}, b.Message)
	}
}

type exhibitionsRequest struct {
	Items json.RawMessage `json:"items"`
}

// PutExhibitions stores {"items": [...]} as the about exhibitions list
func (h *Handler) PutExhibitions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req exhibitionsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		var maxErr *http.MaxBytesError
		if !errors.As(err, &maxErr) {
			err = &sitecontent.ValidationError{Field: "body", Reason: "malformed JSON"}
		}
		h.renderError(w, r, "Invalid request body", err)
		return
	}

	items, err := section.ValidateExhibitions("items", req.Items)
	if err != nil {
		h.renderError(w, r, "Invalid exhibitions", err)
		return
	}

	h.put(w, r, sitecontent.PutSlotRequest{
		Page:  "about",
		Key:   "exhibitions",
		Patch: sitecontent.Patch{sitecontent.FieldDesc: items},
	}, "Exhibitions updated successfully")
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request, req sitecontent.PutSlotRequest, message string) {
	slot, err := h.service.PutSlot(r.Context(), req)
	if err != nil {
		h.renderError(w, r, "Failed to save dynamic part", err)
		return
	}

	slog.Info("Slot updated", "page", slot.Page, "key", slot.Key, "fields", len(req.Patch),
		"assets", len(req.Assets), "request_id", RequestIDFrom(r.Context()))

	render.JSON(w, r, Response{Status: true, Data: h.view(slot), Message: message})
}

// parseForm reads a multipart or urlencoded body, bounded by maxUploadBytes.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return &sitecontent.ValidationError{Field: "form", Reason: err.Error()}
}

func formValue(r *http.Request, name string) (string, bool) {
	values, ok := r.PostForm[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// formFiles opens the uploaded files named in inputs. The returned func
// closes every opened file.
func formFiles(r *http.Request, inputs map[string]sitecontent.Field) ([]sitecontent.AssetUpload, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	if r.MultipartForm == nil {
		return nil, closeAll, nil
	}

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	var assets []sitecontent.AssetUpload
	seen := make(map[sitecontent.Field]string)
	for _, name := range names {
		headers := r.MultipartForm.File[name]
		if len(headers) == 0 {
			continue
		}
		field := inputs[name]
		if prev, dup := seen[field]; dup {
			return nil, closeAll, &sitecontent.ValidationError{Field: name, Reason: "conflicts with file input " + prev}
		}
		seen[field] = name

		file, err := headers[0].Open()
		if err != nil {
			return nil, closeAll, err
		}
		files = append(files, file)
		assets = append(assets, sitecontent.AssetUpload{
			Field:    field,
			FileName: headers[0].Filename,
			Reader:   file,
		})
	}

	return assets, closeAll, nil
}
