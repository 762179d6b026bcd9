package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/repository"
	"github.com/m-mizutani/tempo/pkg/usecase/exchange"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Gemini
	geminiAPIKey    string
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string
	systemPrompt    string
	temperature     float64

	// Index
	index             string
	sqliteDSN         string
	firestoreProject  string
	firestoreDatabase string
}

// llmFlags returns flags for the model endpoint with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GOOGLE_API_KEY", "GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI, used when no API key is set",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Generative model name",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("TEMPO_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("TEMPO_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.FloatFlag{
			Name:        "temperature",
			Usage:       "Sampling temperature; negative keeps the model default",
			Value:       -1,
			Destination: &cfg.temperature,
		},
	}
}

// systemFlag returns the flag for a system instruction
func systemFlag(cfg *config) cli.Flag {
	return &cli.StringFlag{
		Name:        "system",
		Usage:       "System instruction sent with every request",
		Destination: &cfg.systemPrompt,
	}
}

// indexFlags returns flags selecting the vector index backend
func indexFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "index",
			Usage:       "Vector index backend: memory, sqlite or firestore",
			Value:       "memory",
			Sources:     cli.EnvVars("TEMPO_INDEX"),
			Destination: &cfg.index,
		},
		&cli.StringFlag{
			Name:        "sqlite-dsn",
			Usage:       "SQLite data source for the sqlite index",
			Value:       ":memory:",
			Sources:     cli.EnvVars("TEMPO_SQLITE_DSN"),
			Destination: &cfg.sqliteDSN,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for the firestore index",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID for the firestore index",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
	}
}

// newGemini creates a Gemini client. An API key selects the Gemini API
// backend, otherwise a project selects Vertex AI.
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	opts := []adapter.GeminiOption{
		adapter.WithGenerativeModel(cfg.generativeModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	}

	var (
		client *adapter.GeminiClient
		err    error
	)
	apiKey := strings.TrimSpace(cfg.geminiAPIKey)
	switch {
	case apiKey != "" && apiKey != adapter.PlaceholderAPIKey:
		client, err = adapter.NewGemini(ctx, apiKey, opts...)
	case cfg.geminiProject != "":
		client, err = adapter.NewVertexGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	default:
		return nil, goerr.Wrap(model.ErrConfiguration,
			"no Gemini credential: set GOOGLE_API_KEY (or --gemini-api-key) or --gemini-project")
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newExchanger creates the exchange client with the configured options
func (cfg *config) newExchanger(gemini adapter.Gemini) (*exchange.Exchanger, error) {
	var opts []exchange.Option
	if cfg.systemPrompt != "" {
		opts = append(opts, exchange.WithSystemPrompt(cfg.systemPrompt))
	}
	if cfg.temperature >= 0 {
		opts = append(opts, exchange.WithTemperature(float32(cfg.temperature)))
	}
	return exchange.New(gemini, opts...)
}

// newRepository creates the configured vector index
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.index {
	case "", "memory":
		return repository.NewMemory(), nil
	case "sqlite":
		repo, err := repository.NewSQLite(ctx, cfg.sqliteDSN)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "firestore":
		repo, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, goerr.Wrap(model.ErrConfiguration, "unknown index backend",
			goerr.V("index", cfg.index),
			goerr.V("supported", []string{"memory", "sqlite", "firestore"}))
	}
}
