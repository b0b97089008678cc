package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/finlens/finlens/internal/models"
	"github.com/finlens/finlens/internal/types"
	cfgPkg "github.com/finlens/finlens/pkg/config"
	"github.com/finlens/finlens/pkg/extractor"
	"github.com/finlens/finlens/pkg/files"
	"github.com/finlens/finlens/pkg/llm"
	"github.com/finlens/finlens/pkg/logging"
	"github.com/finlens/finlens/pkg/pipeline"
	"github.com/finlens/finlens/pkg/retrieval"
	"github.com/finlens/finlens/pkg/store"
)

type cliFlags struct {
	ConfigPath string
	IngestDir  string
	ChatID     string
	Provider   string
	DBUrl      string
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() cliFlags {
	var flags cliFlags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.IngestDir, "ingest-dir", "", "Directory of PDFs to ingest before chatting")
	flag.StringVar(&flags.ChatID, "chat-id", "", "Chat session UUID (a new one is generated when empty)")
	flag.StringVar(&flags.Provider, "provider", "", "LLM provider override (ollama or gemini)")
	flag.StringVar(&flags.DBUrl, "db-url", "", "PostgreSQL connection string override")
	flag.Parse()

	return flags
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(flags cliFlags) error {
	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	if flags.Provider != "" {
		cfg.LLM.Provider = flags.Provider
	}
	if flags.DBUrl != "" {
		cfg.Database.URL = flags.DBUrl
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var backend interface {
		types.EmbeddingClient
		types.Generator
	}
	switch cfg.LLM.Provider {
	case "gemini":
		gemini, err := llm.NewGeminiBackend(ctx, llm.GeminiConfig{
			APIKey:         cfg.LLM.APIKey,
			ChatModel:      cfg.LLM.ChatModel,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			MaxTokens:      cfg.LLM.MaxTokens,
			Temperature:    cfg.LLM.Temperature,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize gemini backend: %v", err)
		}
		defer gemini.Close()
		backend = gemini
	case "ollama":
		ollamaBackend, err := llm.NewOllamaBackend(llm.OllamaConfig{
			BaseURL:        cfg.LLM.BaseURL,
			ChatModel:      cfg.LLM.ChatModel,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			MaxTokens:      cfg.LLM.MaxTokens,
			Temperature:    cfg.LLM.Temperature,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize ollama backend: %v", err)
		}
		backend = ollamaBackend
	default:
		return fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}

	gateway, err := llm.NewGateway(backend, llm.GatewayConfig{
		VectorDim: cfg.Database.VectorDim,
		Rate:      cfg.Pipeline.EmbedRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedding gateway: %v", err)
	}

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		VectorDim:  cfg.Database.VectorDim,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	chatID, err := resolveChatID(flags.ChatID)
	if err != nil {
		return err
	}
	color.Blue("Chat session: %s", chatID)

	if flags.IngestDir != "" {
		if err := ingestDirectory(ctx, flags.IngestDir, chatID, cfg, gateway, vectorStore, logger); err != nil {
			return err
		}
	}

	docs, err := vectorStore.DocumentsByChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to list session documents: %v", err)
	}
	if len(docs) == 0 {
		color.Yellow("No documents in this session yet; answers will have nothing to cite.")
	} else {
		color.Blue("Documents in session:")
		for _, doc := range docs {
			color.Blue("  - %s (%s, %d pages)", doc.Name, doc.Status, doc.PageCount)
		}
	}

	engine := retrieval.New(gateway, backend, vectorStore, retrieval.Config{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		WindowRadius:        cfg.Retrieval.WindowRadius,
		RefuseOnNoMatch:     cfg.Retrieval.OnNoMatch == "refuse",
	}, logger)

	return chatLoop(ctx, engine, chatID)
}

func resolveChatID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	chatID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid chat-id %q: %v", raw, err)
	}
	return chatID, nil
}

func ingestDirectory(ctx context.Context, dir string, chatID uuid.UUID, cfg *cfgPkg.Config,
	gateway *llm.Gateway, vectorStore *store.VectorStore, logger *logging.Logger) error {

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read ingest directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		color.Yellow("No PDFs found in %s", dir)
		return nil
	}

	color.Blue("\nIngesting %d documents from %s\n", len(names), dir)

	docs := make([]models.Document, 0, len(names))
	for _, name := range names {
		doc := models.Document{
			ChatID:   chatID,
			Name:     name,
			FilePath: fmt.Sprintf("pdfs/%s/%s", chatID, name),
		}
		id, err := vectorStore.CreateDocument(ctx, &doc)
		if err != nil {
			return fmt.Errorf("failed to register %s: %v", name, err)
		}
		doc.ID = id
		docs = append(docs, doc)
	}

	oracle, err := extractor.NewClient(extractor.ClientConfig{
		APIURL: cfg.Extraction.APIURL,
		APIKey: cfg.Extraction.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize extraction client: %v", err)
	}

	pipe := pipeline.New(
		files.NewLocalResolver(dir),
		oracle,
		extractor.NewNormalizer(logger),
		gateway,
		vectorStore,
		logger,
	)
	bar := getProgressBar(len(docs), " Processing documents...")
	orchestrator := pipeline.NewOrchestrator(pipe, pipeline.OrchestratorConfig{
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		OnProgress: func(models.BatchResult) {
			bar.Add(1)
		},
	}, logger)

	results := orchestrator.Run(ctx, docs)
	bar.Finish()
	fmt.Print("\n")

	for _, r := range results {
		if r.Err != nil {
			color.Red("✗ %s: %v", r.Name, r.Err)
			continue
		}
		color.Green("✓ %s: %d chunks across %d pages", r.Name, r.ChunkCount, r.PageCount)
	}

	return nil
}

func chatLoop(ctx context.Context, engine *retrieval.Engine, chatID uuid.UUID) error {
	color.Cyan("\nAsk questions about your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		spinner := getSpinner(" Searching documents...")
		answer, err := engine.Answer(ctx, query, chatID, nil)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("\nAssistant: %s\n", answer.Text)
		if len(answer.Sources) > 0 {
			color.Yellow("\nSources:")
			for _, src := range answer.Sources {
				color.Yellow("  - %s, page %d (similarity %.2f)", src.DocumentName, src.PageNumber, src.Similarity)
			}
		}
	}

	return scanner.Err()
}
