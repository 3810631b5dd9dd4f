package content

// LinkPreview is page metadata fetched for a URL. When Error is set the
// remaining fields are empty and must be ignored.
type LinkPreview struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	SiteName    string   `json:"siteName,omitempty"`
	Images      []string `json:"images"`
	Favicons    []string `json:"favicons"`
	Error       string   `json:"error,omitempty"`
}

// FailedPreview returns a preview carrying only an error marker.
func FailedPreview(url, reason string) LinkPreview {
	if reason == "" {
		reason = "preview unavailable"
	}
	return LinkPreview{URL: url, Error: reason}
}

// Failed reports whether the preview holds an error marker.
func (p *LinkPreview) Failed() bool {
	return p != nil && p.Error != ""
}

// HasImage reports whether the preview is usable for a rich card.
func (p *LinkPreview) HasImage() bool {
	return p != nil && p.Error == "" && len(p.Images) > 0
}

// Clone returns a deep copy so each block owns its preview.
func (p LinkPreview) Clone() *LinkPreview {
	c := p
	if p.Images != nil {
		c.Images = append([]string(nil), p.Images...)
	}
	if p.Favicons != nil {
		c.Favicons = append([]string(nil), p.Favicons...)
	}
	return &c
}
