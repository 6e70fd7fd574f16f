package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"edubot/internal/answer"
	"edubot/internal/chunker"
	"edubot/internal/config"
	"edubot/internal/domain"
	"edubot/internal/embedding"
	"edubot/internal/loader"
	"edubot/internal/logging"
	"edubot/internal/metrics"
	"edubot/internal/service"
	"edubot/internal/session"
	"edubot/internal/summarizer"
	"edubot/internal/vectorstore/chromem"
)

// app is the wired application shared by every entry point.
type app struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	svc      *service.RAGService
	session  *session.Session
	closeLog func() error
	undoLog  func()
}

// newApp loads .env and the config, then wires the pipeline. In TUI mode
// logs go to a file so they do not draw over the screen.
func newApp(flags *globalFlags, tuiMode bool) (*app, error) {
	_ = godotenv.Load()

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if tuiMode && cfg.Logging.File == "" {
		dir, err := config.UserDir()
		if err != nil {
			return nil, err
		}
		cfg.Logging.File = filepath.Join(dir, "edubot.log")
	}

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	undo := func() {}
	if tuiMode {
		undo = zap.RedirectStdLog(logger)
	}

	svc, err := buildService(cfg, logger, metrics.Default())
	if err != nil {
		undo()
		_ = closeLog()
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		svc:      svc,
		session:  session.New(svc, logger),
		closeLog: closeLog,
		undoLog:  undo,
	}, nil
}

func (a *app) Close() {
	a.undoLog()
	_ = a.closeLog()
}

func loadConfig(flags *globalFlags) (*config.AppConfig, error) {
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if flags.configPath == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		path = flags.configPath
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if flags.indexPath != "" {
		cfg.Index.Path = flags.indexPath
	}
	if flags.embedder != "" {
		cfg.Embedder.Type = flags.embedder
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildService assembles the components named by cfg.
func buildService(cfg *config.AppConfig, logger *zap.Logger, m *metrics.Metrics) (*service.RAGService, error) {
	embedKey, err := resolveKey(cfg, cfg.Embedder.OpenAI.APIKeyEnv, logger)
	if err != nil {
		return nil, err
	}
	emb, err := embedding.New(cfg.Embedder, embedKey)
	if err != nil {
		return nil, err
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "recursive", "":
		ch, err = chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap, cfg.Chunker.Separators)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	case "none":
		sum = summarizer.Nop{}
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	llmKey, err := resolveKey(cfg, cfg.LLM.APIKeyEnv, logger)
	if err != nil {
		return nil, err
	}
	model := answer.NewOpenAIModel(answer.ModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  llmKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})

	pdfLoader := loader.NewPDFLoader(logger)
	urlLoader := loader.NewURLLoader(loader.URLConfig{
		Timeout:   time.Duration(cfg.Loader.TimeoutSecs) * time.Second,
		UserAgent: cfg.Loader.UserAgent,
		MaxBytes:  cfg.Loader.MaxBytes,
	}, pdfLoader, logger)

	return service.NewRAGService(service.Deps{
		Collector:  loader.NewCollector(urlLoader, pdfLoader, logger),
		Chunker:    ch,
		Embedder:   emb,
		Store:      chromem.NewStore(cfg.Index.Compress, logger),
		Answerer:   answer.New(model, answer.Options{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}, logger),
		Summarizer: sum,
	}, service.Options{
		IndexPath:        cfg.Index.Path,
		TopK:             cfg.Index.TopK,
		SummarySentences: cfg.Summarizer.MaxSentences,
	}, logger, m)
}

func resolveKey(cfg *config.AppConfig, envName string, logger *zap.Logger) (string, error) {
	key, source, err := config.ResolveAPIKey(cfg.Secrets.File, envName)
	if err != nil {
		return "", err
	}
	logger.Debug("api key resolved", zap.String("env", envName), zap.String("source", string(source)))
	return key, nil
}
