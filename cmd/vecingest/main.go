// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/vecingest"
	"github.com/poiesic/vecingest/config"
	"github.com/poiesic/vecingest/index"
	"github.com/poiesic/vecingest/ingestion"
	"github.com/poiesic/vecingest/search"
	"github.com/urfave/cli/v2"
)

// openService builds the service; tests replace it to inject fakes.
var openService = func(ctx context.Context, cfg config.Config, opts ...vecingest.Option) (*vecingest.Service, error) {
	return vecingest.Open(ctx, cfg, opts...)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vecingest",
		Usage: "Load product reviews into a vector index and query them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file read before the environment (empty to skip)",
				Value: config.DefaultEnvFile,
			},
		},
		Before: setupLogger,
		// With no command, load the data file like "ingest" does.
		Action: ingestCommand,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Embed the data file and upsert it into the collection",
				Action: ingestCommand,
				Flags:  ingestFlags(),
			},
			{
				Name:      "search",
				Usage:     "Find reviews similar to a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Maximum number of hits",
						Value:   5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum similarity score",
						Value: float64(search.DefaultMinScore),
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the most relevant reviews",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of reviews given to the model",
						Value:   4,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum similarity score",
						Value: float64(search.DefaultMinScore),
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the configured collection and its document count",
				Action: statusCommand,
			},
		},
	}
}

func ingestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "load-existing",
			Usage: "Connect to the existing collection without loading documents",
		},
		&cli.BoolFlag{
			Name:  "check",
			Usage: "With --load-existing, fail if the collection is empty",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of documents to embed per request",
			Value: index.DefaultBatchSize,
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Number of embedding requests in flight",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N documents",
			Value: 100,
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(config.WithEnvFile(c.String("env-file")))
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func open(c *cli.Context, opts ...vecingest.Option) (*vecingest.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	svc, err := openService(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreProvider, err)
	}
	return svc, nil
}

func ingestCommand(c *cli.Context) error {
	var opts []vecingest.Option
	// The root action has no ingest flags; fall back to the defaults.
	if c.Command != nil && c.Command.Name == "ingest" {
		if c.Int("batch-size") <= 0 {
			return fmt.Errorf("batch-size must be greater than 0")
		}
		if c.Int("concurrency") <= 0 {
			return fmt.Errorf("concurrency must be greater than 0")
		}
		if c.Int("report-interval") <= 0 {
			return fmt.Errorf("report-interval must be greater than 0")
		}
		if c.Bool("check") {
			opts = append(opts, vecingest.WithCoordinatorOptions(ingestion.WithConnectCheck()))
		}
		opts = append(opts, vecingest.WithIndexOptions(
			index.WithBatchSize(c.Int("batch-size")),
			index.WithConcurrency(c.Int("concurrency")),
			index.WithProgress(c.App.ErrWriter, c.Int("report-interval")),
		))
	} else {
		opts = append(opts, vecingest.WithIndexOptions(index.WithProgress(c.App.ErrWriter, 100)))
	}

	svc, err := open(c, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	loadExisting := c.Bool("load-existing")
	cfg := svc.Config()
	if !loadExisting {
		fmt.Fprintf(c.App.ErrWriter, "Data file: %s\n", cfg.DataFile)
	}
	fmt.Fprintf(c.App.ErrWriter, "Store: %s\n", cfg.StoreProvider)
	fmt.Fprintf(c.App.ErrWriter, "Collection: %s/%s\n", svc.Index().Collection(), svc.Index().Namespace())
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", svc.Index().EmbeddingModel())

	idx, err := svc.Ingest(c.Context, loadExisting)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	count, err := idx.Count(c.Context)
	if err != nil {
		slog.Warn("ingestion finished but counting documents failed",
			"collection", idx.Collection(), "namespace", idx.Namespace(), "err", err)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "%d documents in %s/%s\n", count, idx.Collection(), idx.Namespace())
	return nil
}

func searcherFor(c *cli.Context, svc *vecingest.Service) (*search.Searcher, error) {
	return svc.NewSearcher(search.WithMinScore(float32(c.Float64("min-score"))))
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("query is required")
	}

	svc, err := open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	searcher, err := searcherFor(c, svc)
	if err != nil {
		return err
	}
	results, err := searcher.FindSimilar(c.Context, query, c.Int("k"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
	for i, hit := range results {
		name := hit.Record.Metadata["product_name"]
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(c.App.Writer, "%d: [%0.3f] %s: '%s'\n", i, hit.Score, name, hit.Record.Content)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if question == "" {
		return fmt.Errorf("question is required")
	}

	svc, err := open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	searcher, err := searcherFor(c, svc)
	if err != nil {
		return err
	}
	answer, err := searcher.Answer(c.Context, question, c.Int("k"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, answer)
	return nil
}

func statusCommand(c *cli.Context) error {
	svc, err := open(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	idx := svc.Index()
	count, err := idx.Count(c.Context)
	if err != nil {
		return err
	}

	cfg := svc.Config()
	fmt.Fprintf(c.App.Writer, "Store: %s\n", cfg.StoreProvider)
	fmt.Fprintf(c.App.Writer, "Collection: %s\n", idx.Collection())
	fmt.Fprintf(c.App.Writer, "Namespace: %s\n", idx.Namespace())
	fmt.Fprintf(c.App.Writer, "Embedding provider: %s (%s)\n", cfg.EmbeddingProvider, idx.EmbeddingModel())
	fmt.Fprintf(c.App.Writer, "Documents: %d\n", count)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
