package dto

// DraftLoadDTO selects an existing program for editing
type DraftLoadDTO struct {
	ProgramID string `json:"programId" validate:"required"`
}

// DraftDetailsDTO updates program-level fields; omitted fields are unchanged
type DraftDetailsDTO struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description  *string `json:"description,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// PageUpdateDTO updates a page
type PageUpdateDTO struct {
	Instructions *string `json:"instructions,omitempty"`
}

// VideoUpdateDTO updates a video; omitted fields are unchanged
type VideoUpdateDTO struct {
	Name             *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Description      *string  `json:"description,omitempty"`
	URL              *string  `json:"url,omitempty" validate:"omitempty,url"`
	Duration         *float64 `json:"duration,omitempty" validate:"omitempty,gte=0"`
	DownloadURL      *string  `json:"downloadUrl,omitempty" validate:"omitempty,url"`
	DownloadFileName *string  `json:"downloadFileName,omitempty"`
}

// ResourceCreateDTO attaches a resource by URL
type ResourceCreateDTO struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}
