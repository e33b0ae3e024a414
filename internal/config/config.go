package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Chat      ChatConfig
	Store     StoreConfig
	Retrieval RetrievalConfig
	Feeds     FeedsConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	retrieval, err := loadRetrievalConfig()
	if err != nil {
		return nil, err
	}

	feeds, err := loadFeedsConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Chat:      chat,
		Store:     loadStoreConfig(),
		Retrieval: retrieval,
		Feeds:     feeds,
		Log:       logCfg,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	shutdown, err := parseDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		AllowedOrigins:  parseListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ShutdownTimeout: shutdown,
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	var timeout *time.Duration
	if c.Timeout > 0 {
		val := c.Timeout
		timeout = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		Timeout:     timeout,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		return AIConfig{}, fmt.Errorf("ARK_TEMPERATURE must be within [0,2], got %v", *temperature)
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("ARK_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	modelName := strings.TrimSpace(os.Getenv("ARK_MODEL"))
	if modelName == "" {
		// 兼容旧的 Model 变量名。
		modelName = strings.TrimSpace(os.Getenv("Model"))
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       modelName,
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

// ChatConfig 描述会话窗口与生成参数。
type ChatConfig struct {
	HistoryLimit      int
	Temperature       float32
	MaxTokens         int
	SummaryMaxTokens  int
	CompletionTimeout time.Duration
	SummaryTimeout    time.Duration
	RetrievalTimeout  time.Duration
	PersistTimeout    time.Duration
	RetrievalLimit    int
}

func loadChatConfig() (ChatConfig, error) {
	cfg := ChatConfig{
		HistoryLimit:     10,
		Temperature:      0.7,
		MaxTokens:        300,
		SummaryMaxTokens: 300,
		RetrievalLimit:   4,
	}

	if v, err := parseOptionalIntEnv("CHAT_HISTORY_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if v != nil {
		if *v < 1 {
			return ChatConfig{}, fmt.Errorf("CHAT_HISTORY_LIMIT must be at least 1, got %d", *v)
		}
		cfg.HistoryLimit = *v
	}

	if v, err := parseOptionalFloat32Env("CHAT_TEMPERATURE"); err != nil {
		return ChatConfig{}, err
	} else if v != nil {
		if *v < 0 || *v > 2 {
			return ChatConfig{}, fmt.Errorf("CHAT_TEMPERATURE must be within [0,2], got %v", *v)
		}
		cfg.Temperature = *v
	}

	if v, err := parseOptionalIntEnv("CHAT_MAX_TOKENS"); err != nil {
		return ChatConfig{}, err
	} else if v != nil {
		if *v < 1 {
			return ChatConfig{}, fmt.Errorf("CHAT_MAX_TOKENS must be positive, got %d", *v)
		}
		cfg.MaxTokens = *v
	}

	if v, err := parseOptionalIntEnv("CHAT_SUMMARY_MAX_TOKENS"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.SummaryMaxTokens = *v
	}

	if v, err := parseOptionalIntEnv("CHAT_RETRIEVAL_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.RetrievalLimit = *v
	}

	var err error
	if cfg.CompletionTimeout, err = parseDurationEnv("CHAT_COMPLETION_TIMEOUT", 60*time.Second); err != nil {
		return ChatConfig{}, err
	}
	if cfg.SummaryTimeout, err = parseDurationEnv("CHAT_SUMMARY_TIMEOUT", 30*time.Second); err != nil {
		return ChatConfig{}, err
	}
	if cfg.RetrievalTimeout, err = parseDurationEnv("CHAT_RETRIEVAL_TIMEOUT", 5*time.Second); err != nil {
		return ChatConfig{}, err
	}
	if cfg.PersistTimeout, err = parseDurationEnv("CHAT_PERSIST_TIMEOUT", 5*time.Second); err != nil {
		return ChatConfig{}, err
	}
	return cfg, nil
}

// StoreConfig 描述持久化配置：设置 DATABASE_URL 时使用 PostgreSQL，否则使用 SQLite。
type StoreConfig struct {
	DatabaseURL string
	SQLitePath  string
	FeedsPath   string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:  getEnvOrDefault("CHAT_DB_PATH", "chatbot.db"),
		FeedsPath:   getEnvOrDefault("FEEDS_DB_PATH", "feeds.db"),
	}
}

// RetrievalConfig 描述 RAG 检索配置。
type RetrievalConfig struct {
	QdrantURL       string
	Collection      string
	EmbeddingURL    string
	EmbeddingModel  string
	EmbeddingAPIKey string
	TopK            int
	CatalogEnabled  bool
}

// VectorEnabled 表示是否配置了向量检索。
func (c RetrievalConfig) VectorEnabled() bool {
	return c.QdrantURL != "" && c.EmbeddingURL != ""
}

func loadRetrievalConfig() (RetrievalConfig, error) {
	topK := 3
	if v, err := parseOptionalIntEnv("QDRANT_TOP_K"); err != nil {
		return RetrievalConfig{}, err
	} else if v != nil && *v > 0 {
		topK = *v
	}

	catalog, err := parseBoolEnv("RETRIEVAL_CATALOG_ENABLED", true)
	if err != nil {
		return RetrievalConfig{}, err
	}

	embeddingURL := strings.TrimSpace(os.Getenv("EMBEDDING_URL"))
	if embeddingURL == "" {
		if base := strings.TrimSpace(os.Getenv("LLM_SERVICE_URL")); base != "" {
			embeddingURL = strings.TrimRight(base, "/") + "/v1/embeddings"
		}
	}

	return RetrievalConfig{
		QdrantURL:       strings.TrimSpace(os.Getenv("QDRANT_URL")),
		Collection:      getEnvOrDefault("QDRANT_COLLECTION", "documents"),
		EmbeddingURL:    embeddingURL,
		EmbeddingModel:  getEnvOrDefault("RAG_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingAPIKey: strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")),
		TopK:            topK,
		CatalogEnabled:  catalog,
	}, nil
}

// FeedsConfig 描述职位与新闻数据源配置。
type FeedsConfig struct {
	JobsBaseURL string
	JobsAPIKey  string
	NewsBaseURL string
	NewsToken   string
	Keywords    []string
	Location    string
	NewsQuery   string
	Workers     int
	Pages       int
	PageSize    int
}

// JobsEnabled 表示是否配置了职位数据源。
func (c FeedsConfig) JobsEnabled() bool {
	return c.JobsBaseURL != "" && c.JobsAPIKey != ""
}

// NewsEnabled 表示是否配置了新闻数据源。
func (c FeedsConfig) NewsEnabled() bool {
	return c.NewsBaseURL != "" && c.NewsToken != ""
}

func loadFeedsConfig() (FeedsConfig, error) {
	cfg := FeedsConfig{
		JobsBaseURL: getEnvOrDefault("JOBS_API_URL", "https://www.reed.co.uk/api/1.0"),
		JobsAPIKey:  strings.TrimSpace(os.Getenv("JOBS_API_KEY")),
		NewsBaseURL: strings.TrimSpace(os.Getenv("NEWS_API_URL")),
		NewsToken:   strings.TrimSpace(os.Getenv("NEWS_API_TOKEN")),
		Keywords:    parseListEnv("FEEDS_KEYWORDS", []string{"software engineer"}),
		Location:    strings.TrimSpace(os.Getenv("FEEDS_LOCATION")),
		NewsQuery:   getEnvOrDefault("FEEDS_NEWS_QUERY", "jobs"),
		Workers:     5,
		Pages:       2,
		PageSize:    25,
	}

	for key, dst := range map[string]*int{
		"FEEDS_WORKERS":   &cfg.Workers,
		"FEEDS_PAGES":     &cfg.Pages,
		"FEEDS_PAGE_SIZE": &cfg.PageSize,
	} {
		v, err := parseOptionalIntEnv(key)
		if err != nil {
			return FeedsConfig{}, err
		}
		if v == nil {
			continue
		}
		if *v < 1 {
			return FeedsConfig{}, fmt.Errorf("%s must be positive, got %d", key, *v)
		}
		*dst = *v
	}
	return cfg, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig() (LogConfig, error) {
	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Pretty: pretty,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationEnv 接受 Go duration 字符串（如 "30s"）或纯秒数。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return d, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
