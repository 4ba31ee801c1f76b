// Package backend assembles the knowledge-base service: options,
// route registration, and the wired HTTP server.
package backend

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	logopts "github.com/mentis-ai/mentis/pkg/options/logger"
)

// Vector store drivers selectable through store.driver.
const (
	StoreDriverQdrant = "qdrant"
	StoreDriverMilvus = "milvus"
)

// Options contains all service options.
type Options struct {
	// Server contains HTTP server configuration.
	Server *ServerOptions `json:"server" mapstructure:"server"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Store contains vector store configuration.
	Store *StoreOptions `json:"store" mapstructure:"store"`

	// Embedding contains embedding provider configuration.
	Embedding *LLMProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *LLMProviderOptions `json:"chat" mapstructure:"chat"`

	// RAG contains retrieval pipeline configuration.
	RAG *RAGOptions `json:"rag" mapstructure:"rag"`

	// Cache contains retrieval cache configuration.
	Cache *CacheOptions `json:"cache" mapstructure:"cache"`

	// OCR contains PDF extraction service configuration.
	OCR *OCROptions `json:"ocr" mapstructure:"ocr"`

	// Speech contains transcription, synthesis and denoising
	// service configuration.
	Speech *SpeechOptions `json:"speech" mapstructure:"speech"`
}

// ServerOptions configures the HTTP listener.
type ServerOptions struct {
	// Addr is the listen address.
	Addr string `json:"addr" mapstructure:"addr"`

	// Mode is the gin mode (debug|release|test).
	Mode string `json:"mode" mapstructure:"mode"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// StoreOptions selects and configures the vector store driver.
type StoreOptions struct {
	// Driver selects the backend (qdrant|milvus).
	Driver string `json:"driver" mapstructure:"driver"`

	// Collection is the collection name shared by both drivers.
	Collection string `json:"collection" mapstructure:"collection"`

	// Qdrant configures the qdrant driver.
	Qdrant *QdrantOptions `json:"qdrant" mapstructure:"qdrant"`

	// Milvus configures the milvus driver.
	Milvus *MilvusOptions `json:"milvus" mapstructure:"milvus"`
}

// QdrantOptions configures the Qdrant connection.
type QdrantOptions struct {
	// URL is host or host:port of the gRPC endpoint.
	URL string `json:"url" mapstructure:"url"`

	// APIKey is optional.
	APIKey string `json:"api-key" mapstructure:"api-key"`
}

// MilvusOptions configures the Milvus connection.
type MilvusOptions struct {
	Address  string        `json:"address" mapstructure:"address"`
	Database string        `json:"database" mapstructure:"database"`
	Username string        `json:"username" mapstructure:"username"`
	Password string        `json:"password" mapstructure:"password"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// LLMProviderOptions configures one generation or embedding provider.
type LLMProviderOptions struct {
	// Provider is the registry name (openai, ollama).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API base address.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is optional for self-hosted backends.
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model is the model name.
	Model string `json:"model" mapstructure:"model"`

	// Timeout bounds one request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry budget.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// ToConfigMap converts the options into the map consumed by the
// provider factories. The model name feeds both roles; the factory
// picks the one it needs.
func (o *LLMProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// RAGOptions tunes chunking and the retrieval pipeline.
type RAGOptions struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per chat query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// ScoreThreshold drops retrieved chunks below this similarity.
	ScoreThreshold float32 `json:"score-threshold" mapstructure:"score-threshold"`

	// Temperature is the default sampling temperature.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens is the default completion budget.
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// EmbedBatchSize bounds texts per embedding call.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`
}

// CacheOptions configures the retrieval cache.
type CacheOptions struct {
	// Enabled turns the cache on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL is the cache entry lifetime.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix namespaces the cache keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis configures the connection.
	Redis *RedisOptions `json:"redis" mapstructure:"redis"`
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	Database int    `json:"database" mapstructure:"database"`
	PoolSize int    `json:"pool-size" mapstructure:"pool-size"`
}

// OCROptions configures the PDF extraction service.
type OCROptions struct {
	// URL is the service base address.
	URL string `json:"url" mapstructure:"url"`

	// Timeout bounds one extraction. OCR on large scans is slow.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// SpeechOptions configures the audio collaborator services.
type SpeechOptions struct {
	// STTEndpoints is the ordered transcription fallback chain.
	STTEndpoints []string `json:"stt-endpoints" mapstructure:"stt-endpoints"`

	// Language is the default transcription and synthesis language.
	Language string `json:"language" mapstructure:"language"`

	// STTTimeout bounds one transcription request.
	STTTimeout time.Duration `json:"stt-timeout" mapstructure:"stt-timeout"`

	// TTSURL is the synthesis service base address.
	TTSURL string `json:"tts-url" mapstructure:"tts-url"`

	// TTSTimeout bounds one synthesis request.
	TTSTimeout time.Duration `json:"tts-timeout" mapstructure:"tts-timeout"`

	// DenoiserURL is the denoising service base address. Empty
	// disables denoising.
	DenoiserURL string `json:"denoiser-url" mapstructure:"denoiser-url"`

	// DenoiserTimeout bounds one denoising request.
	DenoiserTimeout time.Duration `json:"denoiser-timeout" mapstructure:"denoiser-timeout"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	embedding := &LLMProviderOptions{
		Provider:   "openai",
		BaseURL:    "http://localhost:8002/v1",
		Model:      "intfloat/multilingual-e5-large",
		Timeout:    120 * time.Second,
		MaxRetries: 2,
	}
	chat := &LLMProviderOptions{
		Provider:   "openai",
		BaseURL:    "http://localhost:8001/v1",
		Model:      "Qwen/Qwen2.5-72B-Instruct",
		Timeout:    300 * time.Second,
		MaxRetries: 2,
	}

	return &Options{
		Server: &ServerOptions{
			Addr:            ":8000",
			Mode:            "release",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: logopts.NewOptions(),
		Store: &StoreOptions{
			Driver:     StoreDriverQdrant,
			Collection: "psychiatric_knowledge",
			Qdrant: &QdrantOptions{
				URL: "localhost:6334",
			},
			Milvus: &MilvusOptions{
				Address: "localhost:19530",
				Timeout: 30 * time.Second,
			},
		},
		Embedding: embedding,
		Chat:      chat,
		RAG: &RAGOptions{
			ChunkSize:      512,
			ChunkOverlap:   64,
			TopK:           5,
			ScoreThreshold: 0.7,
			Temperature:    0.3,
			MaxTokens:      4096,
			EmbedBatchSize: 32,
		},
		Cache: &CacheOptions{
			Enabled:   false,
			TTL:       time.Hour,
			KeyPrefix: "backend:retrieval:",
			Redis: &RedisOptions{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		OCR: &OCROptions{
			URL:     "http://localhost:8600",
			Timeout: 600 * time.Second,
		},
		Speech: &SpeechOptions{
			STTEndpoints:    []string{"http://localhost:8500"},
			Language:        "de",
			STTTimeout:      600 * time.Second,
			TTSURL:          "http://localhost:8700",
			TTSTimeout:      120 * time.Second,
			DenoiserURL:     "http://localhost:8800",
			DenoiserTimeout: 600 * time.Second,
		},
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Log.AddFlags(fs)

	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "HTTP listen address")
	fs.StringVar(&o.Server.Mode, "server.mode", o.Server.Mode, "Gin mode (debug|release|test)")
	fs.DurationVar(&o.Server.ShutdownTimeout, "server.shutdown-timeout", o.Server.ShutdownTimeout, "Graceful shutdown timeout")

	fs.StringVar(&o.Store.Driver, "store.driver", o.Store.Driver, "Vector store driver (qdrant|milvus)")
	fs.StringVar(&o.Store.Collection, "store.collection", o.Store.Collection, "Vector collection name")
	fs.StringVar(&o.Store.Qdrant.URL, "store.qdrant.url", o.Store.Qdrant.URL, "Qdrant gRPC endpoint (host or host:port)")
	fs.StringVar(&o.Store.Qdrant.APIKey, "store.qdrant.api-key", o.Store.Qdrant.APIKey, "Qdrant API key")
	fs.StringVar(&o.Store.Milvus.Address, "store.milvus.address", o.Store.Milvus.Address, "Milvus address")
	fs.StringVar(&o.Store.Milvus.Database, "store.milvus.database", o.Store.Milvus.Database, "Milvus database")
	fs.StringVar(&o.Store.Milvus.Username, "store.milvus.username", o.Store.Milvus.Username, "Milvus username")
	fs.StringVar(&o.Store.Milvus.Password, "store.milvus.password", o.Store.Milvus.Password, "Milvus password")
	fs.DurationVar(&o.Store.Milvus.Timeout, "store.milvus.timeout", o.Store.Milvus.Timeout, "Milvus connect timeout")

	o.addProviderFlags(fs, "embedding", o.Embedding)
	o.addProviderFlags(fs, "chat", o.Chat)

	fs.IntVar(&o.RAG.ChunkSize, "rag.chunk-size", o.RAG.ChunkSize, "Target chunk size in characters")
	fs.IntVar(&o.RAG.ChunkOverlap, "rag.chunk-overlap", o.RAG.ChunkOverlap, "Overlap between consecutive chunks")
	fs.IntVar(&o.RAG.TopK, "rag.top-k", o.RAG.TopK, "Chunks retrieved per chat query")
	fs.Float32Var(&o.RAG.ScoreThreshold, "rag.score-threshold", o.RAG.ScoreThreshold, "Minimum similarity for retrieved chunks")
	fs.Float64Var(&o.RAG.Temperature, "rag.temperature", o.RAG.Temperature, "Default sampling temperature")
	fs.IntVar(&o.RAG.MaxTokens, "rag.max-tokens", o.RAG.MaxTokens, "Default completion token budget")
	fs.IntVar(&o.RAG.EmbedBatchSize, "rag.embed-batch-size", o.RAG.EmbedBatchSize, "Texts per embedding call")

	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Enable the retrieval cache")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Cache entry lifetime")
	fs.StringVar(&o.Cache.KeyPrefix, "cache.key-prefix", o.Cache.KeyPrefix, "Cache key prefix")
	fs.StringVar(&o.Cache.Redis.Addr, "cache.redis.addr", o.Cache.Redis.Addr, "Redis address")
	fs.StringVar(&o.Cache.Redis.Password, "cache.redis.password", o.Cache.Redis.Password, "Redis password")
	fs.IntVar(&o.Cache.Redis.Database, "cache.redis.database", o.Cache.Redis.Database, "Redis database number")
	fs.IntVar(&o.Cache.Redis.PoolSize, "cache.redis.pool-size", o.Cache.Redis.PoolSize, "Redis connection pool size")

	fs.StringVar(&o.OCR.URL, "ocr.url", o.OCR.URL, "OCR service base URL")
	fs.DurationVar(&o.OCR.Timeout, "ocr.timeout", o.OCR.Timeout, "OCR request timeout")

	fs.StringSliceVar(&o.Speech.STTEndpoints, "speech.stt-endpoints", o.Speech.STTEndpoints, "Transcription endpoints in fallback order")
	fs.StringVar(&o.Speech.Language, "speech.language", o.Speech.Language, "Default speech language")
	fs.DurationVar(&o.Speech.STTTimeout, "speech.stt-timeout", o.Speech.STTTimeout, "Transcription request timeout")
	fs.StringVar(&o.Speech.TTSURL, "speech.tts-url", o.Speech.TTSURL, "Speech synthesis service base URL")
	fs.DurationVar(&o.Speech.TTSTimeout, "speech.tts-timeout", o.Speech.TTSTimeout, "Speech synthesis request timeout")
	fs.StringVar(&o.Speech.DenoiserURL, "speech.denoiser-url", o.Speech.DenoiserURL, "Audio denoising service base URL (empty disables)")
	fs.DurationVar(&o.Speech.DenoiserTimeout, "speech.denoiser-timeout", o.Speech.DenoiserTimeout, "Audio denoising request timeout")
}

func (o *Options) addProviderFlags(fs *pflag.FlagSet, prefix string, opts *LLMProviderOptions) {
	fs.StringVar(&opts.Provider, prefix+".provider", opts.Provider, "Provider name (openai, ollama)")
	fs.StringVar(&opts.BaseURL, prefix+".base-url", opts.BaseURL, "Provider API base URL")
	fs.StringVar(&opts.APIKey, prefix+".api-key", opts.APIKey, "Provider API key")
	fs.StringVar(&opts.Model, prefix+".model", opts.Model, "Model name")
	fs.DurationVar(&opts.Timeout, prefix+".timeout", opts.Timeout, "Request timeout")
	fs.IntVar(&opts.MaxRetries, prefix+".max-retries", opts.MaxRetries, "Max retries")
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if o.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if o.Store.Driver != StoreDriverQdrant && o.Store.Driver != StoreDriverMilvus {
		return fmt.Errorf("store.driver must be %q or %q, got %q", StoreDriverQdrant, StoreDriverMilvus, o.Store.Driver)
	}
	if o.Store.Collection == "" {
		return fmt.Errorf("store.collection is required")
	}
	if err := o.validateProvider(o.Embedding, "embedding"); err != nil {
		return err
	}
	if err := o.validateProvider(o.Chat, "chat"); err != nil {
		return err
	}
	if o.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk-size must be positive")
	}
	if o.RAG.ChunkOverlap < 0 || o.RAG.ChunkOverlap >= o.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk-overlap must be non-negative and smaller than rag.chunk-size")
	}
	if o.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top-k must be positive")
	}
	if o.RAG.ScoreThreshold < 0 || o.RAG.ScoreThreshold > 1 {
		return fmt.Errorf("rag.score-threshold must be in [0, 1]")
	}
	if o.OCR.URL == "" {
		return fmt.Errorf("ocr.url is required")
	}
	if len(o.Speech.STTEndpoints) == 0 {
		return fmt.Errorf("speech.stt-endpoints must not be empty")
	}
	return nil
}

func (o *Options) validateProvider(opts *LLMProviderOptions, prefix string) error {
	if opts.Provider == "" {
		return fmt.Errorf("%s.provider is required", prefix)
	}
	if opts.BaseURL == "" {
		return fmt.Errorf("%s.base-url is required", prefix)
	}
	if opts.Model == "" {
		return fmt.Errorf("%s.model is required", prefix)
	}
	return nil
}

// Complete fills derived defaults.
func (o *Options) Complete() error {
	return o.Log.Complete()
}
