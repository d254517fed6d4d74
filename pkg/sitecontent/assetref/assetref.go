// Package assetref names uploaded assets, checks that uploads are images
// and resolves stored references into absolute URLs.
package assetref

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/rand"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultPrefix is the root-relative directory references are stored under.
const DefaultPrefix = "/dynamic-parts"

// ErrNotImage is returned by Inspect when the payload is not a decodable image.
var ErrNotImage = errors.New("upload is not a supported image")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Namer generates unique object names and the references pointing at them.
type Namer struct {
	Prefix string
	Now    func() time.Time
	Rand   func() int64
}

// NewNamer returns a Namer rooted at prefix (DefaultPrefix when empty).
func NewNamer(prefix string) *Namer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Namer{
		Prefix: "/" + strings.Trim(prefix, "/"),
		Now:    time.Now,
		Rand:   func() int64 { return rand.Int63n(1e9) },
	}
}

// NewName builds "<unix-ms>-<random>-<sanitized original name>".
func (n *Namer) NewName(original string) string {
	return fmt.Sprintf("%d-%d-%s", n.Now().UnixMilli(), n.Rand(), SanitizeFileName(original))
}

// Ref returns the stored reference for an object name.
func (n *Namer) Ref(name string) string {
	return n.Prefix + "/" + name
}

// NameFromRef extracts the object name from a reference produced by Ref.
// References outside the prefix, or with nested paths, are rejected.
func (n *Namer) NameFromRef(ref string) (string, bool) {
	rest, ok := strings.CutPrefix(ref, n.Prefix+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") || rest == "." || rest == ".." {
		return "", false
	}
	return rest, true
}

// SanitizeFileName keeps the base name of an upload and replaces anything
// that is not safe in a URL path segment.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

// Info describes an inspected image.
type Info struct {
	Format      string
	ContentType string
	Width       int
	Height      int
}

// Inspect decodes the image header from r. It returns the header info and a
// reader that replays the consumed bytes followed by the rest of r.
func Inspect(r io.Reader) (Info, io.Reader, error) {
	var head bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return Info{}, nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	info := Info{
		Format:      format,
		ContentType: "image/" + format,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}
	return info, io.MultiReader(&head, r), nil
}

// Resolver turns stored references into absolute URLs for consumers.
type Resolver struct {
	base *url.URL
}

// NewResolver parses baseURL. An empty base yields a resolver that returns
// references unchanged.
func NewResolver(baseURL string) (*Resolver, error) {
	if strings.TrimSpace(baseURL) == "" {
		return &Resolver{}, nil
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}
	return &Resolver{base: u}, nil
}

// Enabled reports whether a base URL is configured.
func (r *Resolver) Enabled() bool {
	return r != nil && r.base != nil
}

// Resolve joins a reference with the base URL. Absolute http(s) references
// and empty references are returned unchanged.
func (r *Resolver) Resolve(ref string) string {
	if ref == "" || !r.Enabled() {
		return ref
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return ref
	}
	return r.base.String() + "/" + strings.TrimLeft(ref, "/")
}
