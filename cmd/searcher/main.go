package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"savora/config"
	"savora/pkg/embedding"
	"savora/pkg/logging"
	"savora/pkg/qdrantdb"
	"savora/repository"
	"savora/search"
)

const (
	searchLimit      = 3
	sampleSize       = 3
	samplePreviewLen = 150
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// =========
	// Config
	// =========
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// =========
	// Logging
	// =========
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// =========
	// Qdrant vector
	// =========
	store, err := qdrantdb.New(storeConfig(cfg), logger)
	if err != nil {
		logger.Fatal("failed to create qdrant client", zap.Error(err))
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		logger.Error("qdrant is unreachable, start it with: qdrantctl start")
		logger.Fatal("connection failed", zap.Error(err))
	}

	// =========
	// Embedding Client
	// =========
	client, err := newEmbeddingClient(cfg)
	if err != nil {
		logger.Fatal("failed to create embedding client", zap.Error(err))
	}
	producer := embedding.NewProducer(client, cfg.Embedding.BatchSize, int(cfg.Qdrant.VectorSize), logger)
	searcher := search.NewSearcher(producer, store, logger)

	fmt.Println("Savora Recipe Query Tool")
	fmt.Println(strings.Repeat("=", 40))

	printStats(ctx, store)
	printSample(ctx, store)

	fmt.Println("\nInteractive Search (press Enter to exit)")
	fmt.Println(strings.Repeat("-", 40))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nEnter search query: ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			break
		}

		results, err := searcher.Search(ctx, query, searchLimit)
		if err != nil {
			fmt.Printf("Error searching: %v\n", err)
			continue
		}

		fmt.Printf("\nSearch results for: %q\n", query)
		fmt.Println(strings.Repeat("-", 50))
		for _, r := range results {
			fmt.Printf("%d. Score: %.4f\n", r.Rank, r.Score)
			fmt.Printf("   Title: %s\n", orDefault(r.Title, "No title"))
			fmt.Printf("   Text: %s\n\n", orDefault(r.Preview, "No text available"))
		}
	}
}

func printStats(ctx context.Context, store repository.VectorStore) {
	stats, err := store.Info(ctx)
	if err != nil {
		fmt.Printf("Error getting collection info: %v\n", err)
		return
	}
	fmt.Printf("Collection: %s\n", stats.Name)
	fmt.Printf("Total points: %d\n", stats.Points)
	fmt.Printf("Vector size: %d\n", stats.VectorSize)
	fmt.Printf("Distance metric: %s\n", stats.Distance)
}

func printSample(ctx context.Context, store repository.VectorStore) {
	hits, err := store.Sample(ctx, sampleSize)
	if err != nil {
		fmt.Printf("Error sampling collection: %v\n", err)
		return
	}

	fmt.Printf("\nSample of %d recipes from collection:\n", len(hits))
	fmt.Println(strings.Repeat("-", 50))
	for i, hit := range hits {
		fmt.Printf("%d. Index: %v\n", i+1, hit.Payload["recipe_index"])
		fmt.Printf("   Title: %s\n", payloadString(hit.Payload, "title", "No title"))
		fmt.Printf("   Text: %s\n\n",
			truncate(payloadString(hit.Payload, "text", "No text available"), samplePreviewLen))
	}
}

func newEmbeddingClient(cfg *config.Config) (embedding.Client, error) {
	if cfg.Embedding.Provider == "openai" {
		return embedding.NewOpenAI(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
	}
	return embedding.NewBgeBaseV15(cfg.Embedding.BaseURL), nil
}

func storeConfig(cfg *config.Config) qdrantdb.Config {
	q := cfg.Qdrant
	return qdrantdb.Config{
		Host:            q.Host,
		Port:            q.GRPCPort,
		Collection:      q.Collection,
		VectorSize:      q.VectorSize,
		UploadBatchSize: q.UploadBatchSize,
		Timeout:         time.Duration(q.TimeoutSec) * time.Second,
		MaxRetries:      q.MaxRetries,
		RetryDelay:      time.Duration(q.RetryDelaySec) * time.Second,
		InitialBackoff:  time.Duration(q.InitialBackoffSec) * time.Second,
		MaxBackoff:      time.Duration(q.MaxBackoffSec) * time.Second,
		SubBatchPause:   time.Duration(q.SubBatchPauseMS) * time.Millisecond,
	}
}

func payloadString(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
