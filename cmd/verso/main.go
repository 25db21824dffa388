// Command verso scores a translated text against its source with an LLM
// judge. The source is segmented into chunks, each chunk is evaluated
// independently, and the per-chunk results are aggregated into a single
// weighted report written to stdout as JSON. Lifecycle events stream as
// NDJSON to stderr (or a file) while the run executes.
//
// The judge API key is read from the provider's environment variable:
// OPENAI_API_KEY, ANTHROPIC_API_KEY, or GOOGLE_API_KEY.
//
// Usage:
//
//	verso -source novel.txt -translation novel.zh.txt -model openai/gpt-4o
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahrav/go-verso/infrastructure/llm"
	"github.com/ahrav/go-verso/infrastructure/middleware"
	"github.com/ahrav/go-verso/internal/application"
	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

func main() {
	var (
		sourcePath      = flag.String("source", "", "Path to the source text (required)")
		translationPath = flag.String("translation", "", "Path to the translation under evaluation (required)")
		profilePath     = flag.String("profile", "", "Path to a YAML evaluation profile")
		model           = flag.String("model", "", "Judge in provider/model form, e.g. openai/gpt-4o; overrides the profile")
		chunkSize       = flag.Int("chunk-size", 0, "Target chunk size in runes; 0 uses the profile")
		overlap         = flag.Int("overlap", 0, "Runes carried from each chunk into the next; 0 uses the profile")
		concurrency     = flag.Int("concurrency", 0, "Concurrent chunk evaluations; 0 uses the profile")
		intention       = flag.String("intention", "", "Author intention forwarded to the judge as context")
		eventsDest      = flag.String("events", "stderr", "NDJSON event destination: stderr, none, or a file path")
	)
	flag.Parse()

	if *sourcePath == "" || *translationPath == "" {
		flag.Usage()
		log.Fatal("-source and -translation are required")
	}

	source, err := os.ReadFile(*sourcePath)
	if err != nil {
		log.Fatalf("Failed to read source: %v", err)
	}
	translation, err := os.ReadFile(*translationPath)
	if err != nil {
		log.Fatalf("Failed to read translation: %v", err)
	}

	profile, err := loadProfile(*profilePath)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}

	// Clients are created lazily on resolution, so only the provider the
	// requested model routes to needs its API key set.
	registry, err := llm.NewRegistry(llm.RegistryConfig{
		DefaultProvider: "openai",
		Providers:       llm.DefaultProviders,
	})
	if err != nil {
		log.Fatalf("Failed to create provider registry: %v", err)
	}

	engine, err := application.NewEngine(registry, application.Config{Profile: profile})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	sink, closeSink, err := openEventSink(*eventsDest)
	if err != nil {
		log.Fatalf("Failed to open event destination: %v", err)
	}
	defer closeSink()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := engine.Evaluate(ctx, domain.EvaluationRequest{
		Source:          string(source),
		Translation:     string(translation),
		AuthorIntention: *intention,
		Model:           *model,
		ChunkSize:       *chunkSize,
		Overlap:         *overlap,
	}, application.RunOptions{
		Concurrency: *concurrency,
		Sink:        sink,
	})
	if err != nil {
		closeSink()
		log.Fatalf("Evaluation failed: %v", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}
	fmt.Println(string(out))
}

// loadProfile returns the default profile when no path is given.
func loadProfile(path string) (application.EvaluationProfile, error) {
	if path == "" {
		return application.DefaultProfile(), nil
	}
	loader, err := application.NewProfileLoader()
	if err != nil {
		return application.EvaluationProfile{}, err
	}
	return loader.LoadFromFile(path)
}

// openEventSink builds the NDJSON sink for dest. The returned closer is a
// no-op unless dest named a file.
func openEventSink(dest string) (ports.EventSink, func(), error) {
	switch dest {
	case "none":
		return nil, func() {}, nil
	case "stderr", "":
		return middleware.NewNDJSONSink(os.Stderr), func() {}, nil
	default:
		f, err := os.Create(dest)
		if err != nil {
			return nil, nil, err
		}
		return middleware.NewNDJSONSink(f), func() { _ = f.Close() }, nil
	}
}
