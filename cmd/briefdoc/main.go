package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"briefdoc/internal/generator"
	"briefdoc/internal/ingest"
	"briefdoc/internal/metrics"
	"briefdoc/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "briefdoc",
		Short: "Turn a brief into a draft HTML document grounded in a knowledge base",
	}
	cfgPath string
	dbPath  string

	genTitle      string
	genReportPath string
	genMetrics    string

	ingestPatterns  []string
	ingestFeeds     []string
	ingestBaseURL   string
	ingestChunkSize int

	renderOut string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "briefdoc.db", "Path to the local knowledge database (SQLite)")

	generateCmd.Flags().StringVarP(&genTitle, "title", "t", "", "Document title (derived from the content when empty)")
	generateCmd.Flags().StringVar(&genReportPath, "report", "", "Write the pipeline report as JSON to this path")
	generateCmd.Flags().StringVar(&genMetrics, "metrics", "", "Write Prometheus metrics in text format to this path")

	ingestCmd.Flags().StringArrayVarP(&ingestPatterns, "pattern", "p", nil, "Glob of files to ingest, relative to the path (repeatable, ** supported)")
	ingestCmd.Flags().StringArrayVar(&ingestFeeds, "feed", nil, "RSS/Atom feed URL to ingest (repeatable)")
	ingestCmd.Flags().StringVar(&ingestBaseURL, "base-url", "", "Public URL the ingested directory is served under")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", ingest.DefaultChunkSize, "Target chunk length in characters")

	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Write the HTML fragment to this file instead of stdout")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(renderCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate [brief]",
	Short: "Generate a draft document for a brief",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		brief := strings.Join(args, " ")

		a, err := setup()
		if err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		defer a.Close()

		sink, err := a.sink(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize document sink: %v", err)
		}

		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			log.Fatalf("Failed to register metrics: %v", err)
		}

		gen, err := generator.New(a.cfg, generator.Options{
			Retriever: a.retriever(ctx),
			LLM:       a.llmClient(ctx),
			Sink:      sink,
			Logger:    a.logger,
			Metrics:   m,
		})
		if err != nil {
			log.Fatalf("Failed to create generator: %v", err)
		}

		fmt.Printf("🚀 Generating document for: %q\n", brief)
		start := time.Now()
		res, genErr := gen.Generate(ctx, generator.Request{Brief: brief, Title: genTitle})

		if genReportPath != "" {
			if err := res.Report.Save(genReportPath); err != nil {
				log.Printf("⚠️  Failed to write report: %v", err)
			} else {
				fmt.Printf("📊 Report written to %s\n", genReportPath)
			}
		}
		if genMetrics != "" {
			if err := prometheus.WriteToTextfile(genMetrics, reg); err != nil {
				log.Printf("⚠️  Failed to write metrics: %v", err)
			}
		}
		if genErr != nil {
			log.Fatalf("Failed to store document %q: %v", res.Document.Title, genErr)
		}

		fmt.Printf("✅ %q created as %s in %v (mode: %s, highlights: %d)\n",
			res.Document.Title, res.Document.Status, time.Since(start).Round(time.Millisecond),
			res.Document.Mode, len(res.Highlights))
		fmt.Printf("📄 %s\n", res.Handle.Location)
		for _, s := range res.Report.Signals {
			if s.Severity != generator.SeverityInfo {
				fmt.Printf("⚠️  [%s] %s\n", s.Stage, s.Message)
			}
		}
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Load Markdown, HTML, text and feed sources into the local knowledge base",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		a, err := setup()
		if err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		defer a.Close()

		if a.cfg.KnowledgeBase.ID == "" {
			log.Fatalf("Set knowledge_base.id (or BRIEFDOC_KB_ID) to choose the collection to ingest into.")
		}
		em, err := a.embedder(ctx)
		if err != nil {
			log.Fatalf("Failed to create embedder: %v\nCheck your config.yaml and API keys.", err)
		}

		in, err := ingest.New(em, a.store, ingest.Options{
			Collection: a.cfg.KnowledgeBase.ID,
			BaseURL:    ingestBaseURL,
			ChunkSize:  ingestChunkSize,
			Logger:     a.logger,
		})
		if err != nil {
			log.Fatalf("Failed to create ingester: %v", err)
		}

		if len(args) == 0 && len(ingestFeeds) == 0 {
			args = []string{"."}
		}
		start := time.Now()
		if len(args) > 0 {
			fmt.Printf("📂 Scanning directory: %s\n", args[0])
			stats, err := in.IngestDir(ctx, args[0], ingestPatterns)
			if err != nil {
				log.Fatalf("Ingestion failed: %v", err)
			}
			fmt.Printf("✅ %d files, %d documents, %d chunks (%d skipped)\n", stats.Files, stats.Documents, stats.Chunks, stats.Skipped)
		}
		for _, feed := range ingestFeeds {
			fmt.Printf("📰 Fetching feed: %s\n", feed)
			stats, err := in.IngestFeed(ctx, feed)
			if err != nil {
				log.Printf("⚠️  Feed failed: %v", err)
				continue
			}
			fmt.Printf("✅ %d items, %d chunks\n", stats.Documents, stats.Chunks)
		}

		total, err := a.store.CountPassages(ctx, a.cfg.KnowledgeBase.ID)
		if err != nil {
			log.Fatalf("Failed to count passages: %v", err)
		}
		fmt.Printf("🎉 Ingestion complete in %v. Collection %q holds %d passages.\n",
			time.Since(start).Round(time.Millisecond), a.cfg.KnowledgeBase.ID, total)
	},
}

var renderCmd = &cobra.Command{
	Use:   "render [document-id]",
	Short: "Print the HTML fragment of a document stored in the local database",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()

		doc, err := store.GetDocument(context.Background(), args[0])
		if errors.Is(err, storage.ErrNotFound) {
			log.Fatalf("No document with id %s in %s", args[0], dbPath)
		}
		if err != nil {
			log.Fatalf("Failed to load document: %v", err)
		}

		if renderOut == "" {
			fmt.Print(doc.HTMLBody)
			return
		}
		if err := os.WriteFile(renderOut, []byte(doc.HTMLBody), 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", renderOut, err)
		}
		fmt.Printf("✅ %q (%s) written to %s\n", doc.Title, doc.Status, renderOut)
	},
}
