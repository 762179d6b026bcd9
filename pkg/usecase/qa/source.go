package qa

import (
	"context"
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/model"
)

//go:embed data/sample.txt
var sampleDocument string

// SampleName names the built-in document
const SampleName = "sample"

// DefaultQuestions are asked when none are given
var DefaultQuestions = []string{
	"What is LangChain?",
	"What are the key features of LangChain?",
	"Which LLM providers does LangChain support?",
	"What is data augmented generation?",
}

// SampleDocument returns the built-in document about LangChain
func SampleDocument() *model.Document {
	return &model.Document{
		ID:      model.NewDocumentID(),
		Name:    SampleName,
		Content: sampleDocument,
	}
}

// LoadDocument reads source, which is a local path, a gs:// URL or empty for the sample.
// storage may be nil unless source is a gs:// URL.
func LoadDocument(ctx context.Context, storage adapter.Storage, source string) (*model.Document, error) {
	if source == "" || source == SampleName {
		return SampleDocument(), nil
	}

	var data []byte
	if strings.HasPrefix(source, "gs://") {
		if storage == nil {
			return nil, goerr.Wrap(model.ErrConfiguration, "cloud storage client is required for gs:// sources", goerr.V("source", source))
		}

		bucket, object, err := adapter.ParseGCSURL(source)
		if err != nil {
			return nil, err
		}

		r, err := storage.Get(ctx, bucket, object)
		if err != nil {
			return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to open document", goerr.V("source", source))
		}
		defer r.Close()

		if data, err = io.ReadAll(r); err != nil {
			return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to read document", goerr.V("source", source))
		}
	} else {
		var err error
		if data, err = os.ReadFile(filepath.Clean(source)); err != nil {
			return nil, goerr.Wrap(model.Classify(model.ErrInvalidInput, err), "failed to read document", goerr.V("source", source))
		}
	}

	return &model.Document{
		ID:      model.NewDocumentID(),
		Name:    source,
		Content: string(data),
	}, nil
}
