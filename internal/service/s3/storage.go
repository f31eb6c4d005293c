package s3

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// S3Object is an object body plus its metadata.
type S3Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

type s3Object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

func (o *s3Object) ContentType() string {
	return o.contentType
}

// Storage is the mirror storage: the publish service writes root layers
// through MirrorRoot and the layers endpoint reads them back with GetObject.
type Storage interface {
	UploadBytes(ctx context.Context, key, contentType string, data []byte) error
	MirrorRoot(ctx context.Context, key string, content []byte) (string, error)
	GetObject(ctx context.Context, key string) (S3Object, error)
}

var _ Storage = (*Client)(nil)
