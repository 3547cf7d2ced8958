package models

import (
	"time"
)

// ImageFile is a candidate image produced by the enumerator
type ImageFile struct {
	Path     string    // Absolute file path
	Name     string    // File name
	Size     int64     // File size in bytes
	ModTime  time.Time // Modification time
	IsHidden bool      // Dot-prefixed name
}
