package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "CHAT_HISTORY_LIMIT", "CHAT_TEMPERATURE", "QDRANT_URL", "EMBEDDING_URL", "LLM_SERVICE_URL", "FEEDS_WORKERS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Chat.HistoryLimit != 10 || cfg.Chat.Temperature != 0.7 || cfg.Chat.MaxTokens != 300 {
		t.Fatalf("unexpected chat defaults: %+v", cfg.Chat)
	}
	if cfg.Chat.CompletionTimeout != 60*time.Second {
		t.Fatalf("unexpected completion timeout %v", cfg.Chat.CompletionTimeout)
	}
	if cfg.Store.DatabaseURL != "" || cfg.Store.SQLitePath != "chatbot.db" {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Retrieval.VectorEnabled() {
		t.Fatal("vector retrieval should be disabled without QDRANT_URL")
	}
	if cfg.Feeds.Workers != 5 || cfg.Log.Level != "info" {
		t.Fatalf("unexpected feeds/log defaults: %+v %+v", cfg.Feeds, cfg.Log)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CHAT_HISTORY_LIMIT", "6")
	t.Setenv("CHAT_TEMPERATURE", "0.2")
	t.Setenv("CHAT_COMPLETION_TIMEOUT", "15s")
	t.Setenv("CHAT_RETRIEVAL_TIMEOUT", "2")
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("LLM_SERVICE_URL", "http://llm:8000/")
	t.Setenv("FEEDS_KEYWORDS", "golang, data engineer ,")
	t.Setenv("FEEDS_WORKERS", "8")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Chat.HistoryLimit != 6 || cfg.Chat.Temperature != 0.2 {
		t.Fatalf("unexpected chat config: %+v", cfg.Chat)
	}
	if cfg.Chat.CompletionTimeout != 15*time.Second || cfg.Chat.RetrievalTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg.Chat)
	}
	if !cfg.Retrieval.VectorEnabled() || cfg.Retrieval.EmbeddingURL != "http://llm:8000/v1/embeddings" {
		t.Fatalf("unexpected retrieval config: %+v", cfg.Retrieval)
	}
	if strings.Join(cfg.Feeds.Keywords, "|") != "golang|data engineer" || cfg.Feeds.Workers != 8 {
		t.Fatalf("unexpected feeds config: %+v", cfg.Feeds)
	}
	if !cfg.Log.Pretty {
		t.Fatal("expected pretty logging")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "80 80",
		"CHAT_HISTORY_LIMIT": "0",
		"CHAT_TEMPERATURE":   "2.5",
		"CHAT_MAX_TOKENS":    "abc",
		"ARK_TIMEOUT":        "-3",
		"FEEDS_PAGES":        "0",
		"LOG_PRETTY":         "sometimes",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", key, value)
			}
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	if (AIConfig{Model: "ep-1"}).Enabled() {
		t.Fatal("model alone must not enable the client")
	}
	if !(AIConfig{Model: "ep-1", APIKey: "k"}).Enabled() {
		t.Fatal("api key + model should enable the client")
	}
	if !(AIConfig{Model: "ep-1", AccessKey: "ak", SecretKey: "sk"}).Enabled() {
		t.Fatal("ak/sk + model should enable the client")
	}
}
