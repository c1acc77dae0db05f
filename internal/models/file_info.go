package models

import "time"

// FileInfo represents metadata about a file persisted in a run workspace.
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
