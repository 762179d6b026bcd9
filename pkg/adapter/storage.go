package adapter

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
)

// Storage reads source documents from Cloud Storage
type Storage interface {
	// Get opens the object for reading
	Get(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	client *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrConfiguration, err), "failed to create storage client")
	}

	return &storageClient{
		client: client,
	}, nil
}

func (s *storageClient) Get(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage",
			goerr.V("bucket", bucket),
			goerr.V("object", object))
	}

	return reader, nil
}

// ParseGCSURL splits "gs://bucket/path/to/object" into bucket and object.
func ParseGCSURL(url string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(url, "gs://")
	if !ok {
		return "", "", goerr.Wrap(model.ErrInvalidInput, "not a gs:// url", goerr.V("url", url))
	}

	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", goerr.Wrap(model.ErrInvalidInput, "gs:// url needs both bucket and object", goerr.V("url", url))
	}

	return bucket, object, nil
}
