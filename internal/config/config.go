package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// TFIDFEmbedderConfig bounds the local TF-IDF vocabulary.
type TFIDFEmbedderConfig struct {
	MinDF       int  `yaml:"min_df"`
	MaxFeatures int  `yaml:"max_features"`
	Sublinear   bool `yaml:"sublinear"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	TFIDF  *TFIDFEmbedderConfig  `yaml:"tfidf,omitempty"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how the document is split into level-1 chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
	MinPageChars      int    `yaml:"min_page_chars"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
// One collection per level is created as "<collection>_level_N".
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummarizerConfig selects the summarizer used to build levels 2..5.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// HierarchyConfig controls grouping of chunks into coarser levels.
type HierarchyConfig struct {
	// GroupSizes maps "level_N" to the number of level N-1 chunks summarized per level N chunk.
	GroupSizes    map[string]int `yaml:"group_sizes"`
	Concurrency   int            `yaml:"concurrency"`
	LogCheckpoint int            `yaml:"log_checkpoint"`
}

// RetrievalConfig controls per-level search.
type RetrievalConfig struct {
	// TopK lists top_k for levels 1..5.
	TopK             []int  `yaml:"top_k"`
	EmptyMatchPolicy string `yaml:"empty_match_policy"`
	BatchConcurrency int    `yaml:"batch_concurrency"`
}

// BackupConfig selects where built levels are persisted for reuse.
type BackupConfig struct {
	Type string `yaml:"type"`
	Dir  string `yaml:"dir"`
	Path string `yaml:"path"`
}

// LLMConfig configures the chat-completions provider.
type LLMConfig struct {
	Provider     string `yaml:"provider"`
	BaseURL      string `yaml:"base_url"`
	Endpoint     string `yaml:"endpoint"`
	APIVersion   string `yaml:"api_version"`
	APIKeyEnv    string `yaml:"api_key_env"`
	ChatModel    string `yaml:"chat_model"`
	SummaryModel string `yaml:"summary_model"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
}

// AgentConfig configures the turn-taking loop. TurnTimeoutSecs bounds one
// whole question, across every model call and tool call it makes.
type AgentConfig struct {
	MaxTurns        int    `yaml:"max_turns"`
	PromptFile      string `yaml:"prompt_file"`
	TurnTimeoutSecs int    `yaml:"turn_timeout_secs"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	APIKeyEnv      string `yaml:"api_key_env"`
	SessionTTLSecs int    `yaml:"session_ttl_secs"`
	MaxSessions    int    `yaml:"max_sessions"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Hierarchy   HierarchyConfig   `yaml:"hierarchy"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Backup      BackupConfig      `yaml:"backup"`
	LLM         LLMConfig         `yaml:"llm"`
	Agent       AgentConfig       `yaml:"agent"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/hrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/hrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// GroupSize returns the group size used to build level from level-1.
func (c *AppConfig) GroupSize(level int) int {
	return c.Hierarchy.GroupSizes[fmt.Sprintf("level_%d", level)]
}

// TopK returns top_k for level, or 0 if the level is out of range.
func (c *AppConfig) TopK(level int) int {
	if level < 1 || level > len(c.Retrieval.TopK) {
		return 0
	}
	return c.Retrieval.TopK[level-1]
}

// Validate rejects configurations that cannot produce a working hierarchy.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "tfidf", "openai":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.Chunker.Type {
	case "recursive", "sentence":
	default:
		return fmt.Errorf("unknown chunker: %s", c.Chunker.Type)
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("qdrant config missing")
		}
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	switch c.Summarizer.Type {
	case "frequency", "openai":
	default:
		return fmt.Errorf("unknown summarizer: %s", c.Summarizer.Type)
	}
	switch c.Backup.Type {
	case "jsonl", "sqlite", "none":
	default:
		return fmt.Errorf("unknown backup type: %s", c.Backup.Type)
	}
	switch c.Retrieval.EmptyMatchPolicy {
	case "retain", "reset":
	default:
		return fmt.Errorf("unknown empty_match_policy: %s", c.Retrieval.EmptyMatchPolicy)
	}
	switch c.LLM.Provider {
	case "openai", "azure":
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	if len(c.Retrieval.TopK) != 5 {
		return fmt.Errorf("retrieval.top_k must list 5 levels, got %d", len(c.Retrieval.TopK))
	}
	for i, k := range c.Retrieval.TopK {
		if k <= 0 {
			return fmt.Errorf("retrieval.top_k[level_%d] must be positive", i+1)
		}
	}
	for level := 2; level <= 5; level++ {
		if c.GroupSize(level) <= 0 {
			return fmt.Errorf("hierarchy.group_sizes.level_%d must be positive", level)
		}
	}
	for name := range c.Hierarchy.GroupSizes {
		var n int
		if _, err := fmt.Sscanf(name, "level_%d", &n); err != nil || n < 2 || n > 5 {
			return fmt.Errorf("hierarchy.group_sizes: unknown level %q", name)
		}
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker.chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	if c.Agent.TurnTimeoutSecs < c.LLM.TimeoutSecs {
		return fmt.Errorf("agent.turn_timeout_secs (%d) must be at least llm.timeout_secs (%d)", c.Agent.TurnTimeoutSecs, c.LLM.TimeoutSecs)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "recursive", ChunkSize: 500, ChunkOverlap: 100, SentencesPerChunk: 5, OverlapSentences: 1, MinPageChars: 20},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Backup:      BackupConfig{Type: "jsonl", Dir: "backup"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 500
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 100
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Chunker.MinPageChars == 0 {
		cfg.Chunker.MinPageChars = 20
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "hrag"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-large"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Hierarchy.GroupSizes == nil {
		cfg.Hierarchy.GroupSizes = map[string]int{}
	}
	for level, n := range map[string]int{"level_2": 5, "level_3": 3, "level_4": 3, "level_5": 3} {
		if _, ok := cfg.Hierarchy.GroupSizes[level]; !ok {
			cfg.Hierarchy.GroupSizes[level] = n
		}
	}
	if cfg.Hierarchy.Concurrency == 0 {
		cfg.Hierarchy.Concurrency = 4
	}
	if cfg.Hierarchy.LogCheckpoint == 0 {
		cfg.Hierarchy.LogCheckpoint = 10
	}
	if len(cfg.Retrieval.TopK) == 0 {
		cfg.Retrieval.TopK = []int{10, 10, 7, 7, 5}
	}
	if cfg.Retrieval.EmptyMatchPolicy == "" {
		cfg.Retrieval.EmptyMatchPolicy = "retain"
	}
	if cfg.Retrieval.BatchConcurrency == 0 {
		cfg.Retrieval.BatchConcurrency = 4
	}
	if cfg.Backup.Type == "" {
		cfg.Backup.Type = "jsonl"
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "backup"
	}
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = filepath.Join(cfg.Backup.Dir, "hierarchy.db")
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = "gpt-4.1"
	}
	if cfg.LLM.SummaryModel == "" {
		cfg.LLM.SummaryModel = "gpt-4.1-nano"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.Agent.MaxTurns == 0 {
		cfg.Agent.MaxTurns = 50
	}
	if cfg.Agent.PromptFile == "" {
		cfg.Agent.PromptFile = filepath.Join("configs", "prompts.txt")
	}
	if cfg.Agent.TurnTimeoutSecs == 0 {
		cfg.Agent.TurnTimeoutSecs = max(600, 5*cfg.LLM.TimeoutSecs)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.SessionTTLSecs == 0 {
		cfg.Server.SessionTTLSecs = 1800
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = 1000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
}
