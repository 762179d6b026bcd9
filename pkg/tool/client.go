package tool

import (
	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/repository"
)

// Client contains shared resources that tools can use. Any field may be nil.
type Client struct {
	Gemini adapter.Gemini
	Repo   repository.Repository
}
