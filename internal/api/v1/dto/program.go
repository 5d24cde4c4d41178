package dto

import "meditation/internal/model"

// ProgramListResponseDTO is returned by the program list endpoint
type ProgramListResponseDTO struct {
	Programs []model.Program `json:"programs"`
}

// ProgramStreamFrameDTO is one websocket frame of the program change feed
type ProgramStreamFrameDTO struct {
	Type     string          `json:"type"`
	Programs []model.Program `json:"programs"`
}
