package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/vecingest"
	"github.com/poiesic/vecingest/ai/mock"
	"github.com/poiesic/vecingest/config"
	"github.com/poiesic/vecingest/storage"
	"github.com/poiesic/vecingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testCSV = `product_title,rating,review
Nova Phone X,5,Battery backup is excellent.
Pulse Earbuds,4,Sound quality is crisp.
`

// setupTestEnv points the configuration at a temporary store and data file
// and makes the service use a mock provider.
func setupTestEnv(t *testing.T) *mock.MockProvider {
	t.Helper()
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "reviews.csv")
	require.NoError(t, os.WriteFile(dataFile, []byte(testCSV), 0644))

	t.Setenv(config.KeyStoreProvider, "badger")
	t.Setenv(config.KeyStoreEndpoint, filepath.Join(dir, "store"))
	t.Setenv(config.KeyStoreNamespace, "cli")
	t.Setenv(config.KeyDataFile, dataFile)

	provider := mock.NewMockProvider()
	previous := openService
	openService = func(ctx context.Context, cfg config.Config, opts ...vecingest.Option) (*vecingest.Service, error) {
		// each command closes its service; hand out a provider that survives that
		p := mock.NewMockProviderWithServices(provider.GetMockEmbedder(), provider.GetMockGenerator())
		return vecingest.Open(ctx, cfg, append(opts, vecingest.WithProvider(p))...)
	}
	t.Cleanup(func() { openService = previous })
	return provider
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"vecingest", "--env-file", ""}, args...))
	return stdout.String(), err
}

func TestSetupLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	for _, level := range []string{"debug", "info", "WARN", "error"} {
		t.Run(level, func(t *testing.T) {
			_, err := runApp(t, "--log-level", level, "status", "--help")
			assert.NoError(t, err)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		_, err := runApp(t, "--log-level", "verbose", "status")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestIngestCommandFlags(t *testing.T) {
	app := newApp()
	var ingest *cli.Command
	for _, cmd := range app.Commands {
		if cmd.Name == "ingest" {
			ingest = cmd
		}
	}
	require.NotNil(t, ingest)

	values := map[string]int{}
	for _, flag := range ingest.Flags {
		if f, ok := flag.(*cli.IntFlag); ok {
			values[f.Name] = f.Value
		}
	}
	assert.Equal(t, 100, values["batch-size"])
	assert.Equal(t, 1, values["concurrency"])
	assert.Equal(t, 100, values["report-interval"])

	t.Run("batch-size must be positive", func(t *testing.T) {
		setupTestEnv(t)
		_, err := runApp(t, "ingest", "--batch-size", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size")
	})

	t.Run("concurrency must be positive", func(t *testing.T) {
		setupTestEnv(t)
		_, err := runApp(t, "ingest", "--concurrency", "-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "concurrency")
	})
}

func TestIngestCommand(t *testing.T) {
	provider := setupTestEnv(t)

	out, err := runApp(t, "ingest", "--batch-size", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 documents in flipkart_database/cli")
	assert.Equal(t, 2, provider.GetMockEmbedder().CallCount())

	t.Run("load existing makes no embedding calls", func(t *testing.T) {
		provider.GetMockEmbedder().Reset()
		out, err := runApp(t, "ingest", "--load-existing", "--check")
		require.NoError(t, err)
		assert.Contains(t, out, "2 documents")
		assert.Zero(t, provider.GetMockEmbedder().CallCount())
	})
}

// brokenCountStore fails every Count call.
type brokenCountStore struct {
	storage.VectorStore
}

func (s brokenCountStore) Count(ctx context.Context, namespace string) (int, error) {
	return 0, errors.New("count unavailable")
}

func TestIngestCommand_CountFailureIsWarning(t *testing.T) {
	provider := setupTestEnv(t)
	store, err := badger.NewMemoryVectorStore(config.Defaults().Collection)
	require.NoError(t, err)

	previous := openService
	openService = func(ctx context.Context, cfg config.Config, opts ...vecingest.Option) (*vecingest.Service, error) {
		return previous(ctx, cfg, append(opts, vecingest.WithStore(brokenCountStore{store}))...)
	}
	t.Cleanup(func() { openService = previous })

	previousLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previousLogger) })

	out, err := runApp(t, "--log-level", "error", "ingest")
	require.NoError(t, err)
	assert.NotContains(t, out, "documents in")
	assert.Equal(t, 1, provider.GetMockEmbedder().CallCount())
}

func TestDefaultActionIngests(t *testing.T) {
	setupTestEnv(t)

	out, err := runApp(t)
	require.NoError(t, err)
	assert.Contains(t, out, "2 documents in flipkart_database/cli")
}

func TestIngestCommand_CheckEmptyCollection(t *testing.T) {
	setupTestEnv(t)

	_, err := runApp(t, "ingest", "--load-existing", "--check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection is empty")
}

func TestIngestCommand_MissingDataFile(t *testing.T) {
	setupTestEnv(t)
	t.Setenv(config.KeyDataFile, filepath.Join(t.TempDir(), "missing.csv"))

	_, err := runApp(t, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion failed")
}

func TestSearchAndAsk(t *testing.T) {
	provider := setupTestEnv(t)
	_, err := runApp(t, "ingest")
	require.NoError(t, err)

	out, err := runApp(t, "search", "Sound", "quality", "is", "crisp.")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 hits")
	assert.Contains(t, out, "Pulse Earbuds: 'Sound quality is crisp.'")

	out, err = runApp(t, "ask", "-k", "1", "Battery backup is excellent.")
	require.NoError(t, err)
	assert.Equal(t, mock.DefaultReply+"\n", out)
	assert.Contains(t, provider.GetMockGenerator().LastPrompt(), "Nova Phone X")

	_, err = runApp(t, "search")
	assert.Error(t, err)
	_, err = runApp(t, "ask")
	assert.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	setupTestEnv(t)

	out, err := runApp(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Store: badger")
	assert.Contains(t, out, "Collection: flipkart_database")
	assert.Contains(t, out, "Namespace: cli")
	assert.Contains(t, out, "Embedding provider: openai (mock-embedding)")
	assert.Contains(t, out, "Documents: 0")
}
