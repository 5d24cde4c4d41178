package dto

import (
	"meditation/internal/markup"
	"meditation/internal/model"
	"meditation/internal/timer"
)

// ViewerSelectDTO selects a program in the viewer
type ViewerSelectDTO struct {
	ProgramID string `json:"programId" validate:"required"`
}

// TimerActionDTO drives the meditation timer
type TimerActionDTO struct {
	Action  string `json:"action" validate:"required,oneof=toggle reset set mute"`
	Minutes int    `json:"minutes" validate:"gte=0,lte=999"`
	Seconds int    `json:"seconds" validate:"gte=0,lte=59"`
}

// VideoViewDTO is a video with its description split into emphasized lines
type VideoViewDTO struct {
	model.Video
	DescriptionLines [][]markup.Span `json:"descriptionLines"`
	Completed        bool            `json:"completed"`
}

// PageViewDTO is the current page with rendered instructions
type PageViewDTO struct {
	ID           string           `json:"id"`
	PageNumber   int              `json:"pageNumber"`
	Instructions []markup.Block   `json:"instructions"`
	Videos       []VideoViewDTO   `json:"videos"`
	Resources    []model.Resource `json:"resources"`
}

// ProgramViewDTO is the selected program without its pages
type ProgramViewDTO struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Instructions []markup.Block   `json:"instructions"`
	Resources    []model.Resource `json:"resources"`
	PageCount    int              `json:"pageCount"`
}

// ViewerStateDTO is the full viewer state of a session
type ViewerStateDTO struct {
	Program         *ProgramViewDTO `json:"program"`
	PageIndex       int             `json:"pageIndex"`
	Page            *PageViewDTO    `json:"page"`
	HasNextPage     bool            `json:"hasNextPage"`
	CompletedVideos []string        `json:"completedVideos"`
	Timer           timer.Snapshot  `json:"timer"`
}
