package storage

import (
	"io"
	"mime/multipart"
)

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage persists uploaded scan photos so corrections and feedback
// review can pull up the original frame later.
type Storage interface {
	SaveFile(file multipart.File, info FileInfo) (string, error)
	SaveBytes(data []byte, info FileInfo) (string, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
}
