package model

import "time"

// Conversion represents one processed deck: the uploaded source presentation
// and the script deck generated from its speaker notes.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Conversion struct {
	ID             string    `json:"id"`
	SourceFilename string    `json:"source_filename"`
	SourcePath     string    `json:"source_path"`
	OutputPath     string    `json:"output_path"`
	SourceSize     int64     `json:"source_size"`
	NoteCount      int       `json:"note_count"`
	SlideCount     int       `json:"slide_count"`
	Speakers       []string  `json:"speakers"`
	CreatedAt      time.Time `json:"created_at"`
}
