package model

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// Program is a meditation course composed of ordered pages.
type Program struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Instructions string     `json:"instructions"`
	Pages        []Page     `json:"pages"`
	Resources    []Resource `json:"resources"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Page is one session within a program. PageNumber is assigned once at
// creation and never renumbered, so numbers may have gaps after deletes.
type Page struct {
	ID           string     `json:"id"`
	PageNumber   int        `json:"pageNumber"`
	Instructions string     `json:"instructions"`
	Videos       []Video    `json:"videos"`
	Resources    []Resource `json:"resources"`
}

// Video URL stays empty until its upload completes.
type Video struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	URL              string   `json:"url"`
	Duration         *float64 `json:"duration,omitempty"`
	DownloadURL      string   `json:"downloadUrl,omitempty"`
	DownloadFileName string   `json:"downloadFileName,omitempty"`
}

// Resource is a downloadable file attached to a program or a page.
type Resource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// UserProgress describes a viewer's position in a program. It is not
// persisted anywhere; viewer progress lives only in the viewer session.
type UserProgress struct {
	UserID          string    `json:"userId"`
	ProgramID       string    `json:"programId"`
	CurrentPage     int       `json:"currentPage"`
	CompletedVideos []string  `json:"completedVideos"`
	LastAccessed    time.Time `json:"lastAccessed"`
}

const DefaultResourceType = "file"

// ResourceTypeFromURL returns the lower-cased extension of the URL path, or
// DefaultResourceType when there is none.
func ResourceTypeFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return DefaultResourceType
	}
	return strings.ToLower(ext)
}

// NewResource builds a resource whose type is derived from its URL.
func NewResource(name, rawURL string) Resource {
	return Resource{Name: name, URL: rawURL, Type: ResourceTypeFromURL(rawURL)}
}

// Normalize replaces nil slices with empty ones so the stored document always
// carries arrays.
func (p *Program) Normalize() {
	if p.Resources == nil {
		p.Resources = []Resource{}
	}
	if p.Pages == nil {
		p.Pages = []Page{}
	}
	for i := range p.Pages {
		pg := &p.Pages[i]
		if pg.Resources == nil {
			pg.Resources = []Resource{}
		}
		if pg.Videos == nil {
			pg.Videos = []Video{}
		}
	}
}

// Clone returns a deep copy of the program.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	c := *p
	c.Resources = cloneResources(p.Resources)
	if p.Pages != nil {
		c.Pages = make([]Page, len(p.Pages))
		for i, pg := range p.Pages {
			c.Pages[i] = pg.Clone()
		}
	}
	return &c
}

// Clone returns a deep copy of the page.
func (pg Page) Clone() Page {
	c := pg
	c.Resources = cloneResources(pg.Resources)
	if pg.Videos != nil {
		c.Videos = make([]Video, len(pg.Videos))
		for i, v := range pg.Videos {
			c.Videos[i] = v
			if v.Duration != nil {
				d := *v.Duration
				c.Videos[i].Duration = &d
			}
		}
	}
	return c
}

func cloneResources(in []Resource) []Resource {
	if in == nil {
		return nil
	}
	out := make([]Resource, len(in))
	copy(out, in)
	return out
}
