// Package photo defines the catalog record shared by the fetch client,
// the pagination controller and the presentation layer.
package photo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultBaseURL is the Lorem Picsum service root.
const DefaultBaseURL = "https://picsum.photos"

// Image sizes used by the gallery views.
const (
	ThumbnailWidth  = 300
	ThumbnailHeight = 200

	FullSizeWidth  = 800
	FullSizeHeight = 600

	OptimizedWidth  = 400
	OptimizedHeight = 300
)

// Photo is one catalog entry as returned by the list and info endpoints.
type Photo struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	URL         string `json:"url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// UnmarshalJSON accepts the id as a JSON string or an integer. Numeric ids
// are kept in their decimal form.
func (p *Photo) UnmarshalJSON(data []byte) error {
	type record Photo
	var raw struct {
		record
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}
	*p = Photo(raw.record)
	p.ID = id
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("photo id: %w", err)
		}
		return id, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("photo id must be a string or integer, got %s", raw)
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return "", fmt.Errorf("photo id must be a string or integer, got %s", raw)
	}
	return strconv.FormatInt(id, 10), nil
}

// Valid reports whether the record carries the fields every view relies on.
func (p Photo) Valid() bool {
	return p.ID != "" && p.Width > 0 && p.Height > 0
}

// Title is the display heading for the photo.
func (p Photo) Title() string {
	return "Photo #" + p.ID
}

// Description is the one-line caption shown under the title.
func (p Photo) Description() string {
	author := strings.TrimSpace(p.Author)
	if author == "" {
		author = "Unknown Author"
	}
	return "Photo by " + author
}

// Dimensions formats the original pixel size.
func (p Photo) Dimensions() string {
	return fmt.Sprintf("%d x %d pixels", p.Width, p.Height)
}

// AspectRatio formats width/height with two decimals, e.g. "1.50:1".
func (p Photo) AspectRatio() string {
	if p.Height <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f:1", float64(p.Width)/float64(p.Height))
}

// Links builds image URLs for photos against a given service root.
// The zero value uses DefaultBaseURL.
type Links struct {
	BaseURL string
}

func (l Links) base() string {
	if l.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(l.BaseURL, "/")
}

// Image returns the resize-by-URL address for a photo at width x height.
func (l Links) Image(p Photo, width, height int) string {
	if width <= 0 {
		width = OptimizedWidth
	}
	if height <= 0 {
		height = OptimizedHeight
	}
	return fmt.Sprintf("%s/id/%s/%d/%d", l.base(), p.ID, width, height)
}

// Thumbnail returns the grid-sized image URL.
func (l Links) Thumbnail(p Photo) string {
	return l.Image(p, ThumbnailWidth, ThumbnailHeight)
}

// FullSize returns the detail-sized image URL.
func (l Links) FullSize(p Photo) string {
	return l.Image(p, FullSizeWidth, FullSizeHeight)
}

// Download returns the original-size image URL, preferring the one the
// service reported.
func (l Links) Download(p Photo) string {
	if p.DownloadURL != "" {
		return p.DownloadURL
	}
	return l.Image(p, p.Width, p.Height)
}

// Source returns the photo's source page, falling back to the info endpoint.
func (l Links) Source(p Photo) string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("%s/id/%s/info", l.base(), p.ID)
}

// View is the flattened, render-ready form of a photo. It is rebuilt on
// every render and never stored.
type View struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Dimensions  string `json:"dimensions"`
	AspectRatio string `json:"aspect_ratio"`
	Thumbnail   string `json:"thumbnail"`
	FullSize    string `json:"full_size"`
	Download    string `json:"download_url"`
	Source      string `json:"url"`
}

// View computes the display fields for p.
func (l Links) View(p Photo) View {
	return View{
		ID:          p.ID,
		Author:      p.Author,
		Width:       p.Width,
		Height:      p.Height,
		Title:       p.Title(),
		Description: p.Description(),
		Dimensions:  p.Dimensions(),
		AspectRatio: p.AspectRatio(),
		Thumbnail:   l.Thumbnail(p),
		FullSize:    l.FullSize(p),
		Download:    l.Download(p),
		Source:      l.Source(p),
	}
}

// Views maps View over a slice.
func (l Links) Views(photos []Photo) []View {
	out := make([]View, 0, len(photos))
	for _, p := range photos {
		out = append(out, l.View(p))
	}
	return out
}
