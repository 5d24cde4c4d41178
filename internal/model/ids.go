package model

import (
	"github.com/oklog/ulid/v2"
)

// NewID returns a new lexically sortable identifier with the given prefix.
func NewID(prefix string) string {
	id := ulid.Make().String()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

func NewProgramID() string { return NewID("") }
func NewPageID() string    { return NewID("page") }
func NewVideoID() string   { return NewID("video") }
