// Package storage fetches spreadsheet uploads from an object store.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object exceeds upload size limit")
)

// Upload is one spreadsheet fetched by key. The caller closes Body.
type Upload struct {
	Key  string
	Name string
	Size int64
	Body io.ReadCloser
}

// UploadSource fetches spreadsheets that were placed in a bucket out of band.
// Implementations validate the key and enforce the upload size limit before
// any bytes are read. Nothing is ever written back.
type UploadSource interface {
	Fetch(ctx context.Context, key string) (Upload, error)
}
