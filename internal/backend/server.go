package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mentis-ai/mentis/internal/backend/biz"
	"github.com/mentis-ai/mentis/internal/backend/handler"
	"github.com/mentis-ai/mentis/internal/backend/store"
	"github.com/mentis-ai/mentis/internal/pkg/textsplit"
	"github.com/mentis-ai/mentis/pkg/component/ocr"
	"github.com/mentis-ai/mentis/pkg/component/speech"
	"github.com/mentis-ai/mentis/pkg/embedding"
	"github.com/mentis-ai/mentis/pkg/llm"
)

// Server is the wired service.
type Server struct {
	opts     *Options
	http     *http.Server
	embedder *embedding.Service
	index    store.VectorIndex
	redis    *goredis.Client
}

// NewServer wires every component from the options. Collaborator
// services are not contacted here; Run probes them at startup.
func NewServer(opts *Options) (*Server, error) {
	if err := opts.Log.Init(); err != nil {
		return nil, err
	}

	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewService(embedProvider, opts.RAG.EmbedBatchSize)

	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return nil, err
	}

	splitter, err := textsplit.New(opts.RAG.ChunkSize, opts.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	index, err := newVectorIndex(opts.Store, embedder, splitter)
	if err != nil {
		return nil, err
	}

	redisClient, cacheEnabled := newRedisClient(opts.Cache)
	cache := biz.NewRetrievalCache(redisClient, &biz.RetrievalCacheConfig{
		Enabled:   cacheEnabled,
		TTL:       opts.Cache.TTL,
		KeyPrefix: opts.Cache.KeyPrefix,
	})

	ocrClient := ocr.New(&ocr.Config{URL: opts.OCR.URL, Timeout: opts.OCR.Timeout})

	service := biz.NewBackendService(index, chatProvider, ocrClient, cache, &biz.Config{
		Model:          opts.Chat.Model,
		TopK:           opts.RAG.TopK,
		ScoreThreshold: opts.RAG.ScoreThreshold,
		Temperature:    opts.RAG.Temperature,
		MaxTokens:      opts.RAG.MaxTokens,
	})

	stt := speech.NewSTTClient(&speech.STTConfig{
		Endpoints: opts.Speech.STTEndpoints,
		Language:  opts.Speech.Language,
		Timeout:   opts.Speech.STTTimeout,
	})
	tts := speech.NewTTSClient(&speech.TTSConfig{
		URL:      opts.Speech.TTSURL,
		Language: opts.Speech.Language,
		Timeout:  opts.Speech.TTSTimeout,
	})
	var denoiser *speech.DenoiserClient
	if opts.Speech.DenoiserURL != "" {
		denoiser = speech.NewDenoiserClient(&speech.DenoiserConfig{
			URL:     opts.Speech.DenoiserURL,
			Timeout: opts.Speech.DenoiserTimeout,
		})
	}

	h := handler.New(handler.Deps{
		Service:  service,
		STT:      stt,
		TTS:      tts,
		Denoiser: denoiser,
		Embedder: embedder,
		Index:    index,
		Model:    opts.Chat.Model,
	})

	return &Server{
		opts: opts,
		http: &http.Server{
			Addr:    opts.Server.Addr,
			Handler: NewRouter(h, opts.Server.Mode),
		},
		embedder: embedder,
		index:    index,
		redis:    redisClient,
	}, nil
}

// newRedisClient connects to Redis when the cache is enabled. An
// unreachable Redis disables the cache instead of failing startup.
func newRedisClient(opts *CacheOptions) (*goredis.Client, bool) {
	if !opts.Enabled {
		return nil, false
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Redis.Addr,
		Password: opts.Redis.Password,
		DB:       opts.Redis.Database,
		PoolSize: opts.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("redis unreachable, retrieval cache disabled", "addr", opts.Redis.Addr, "error", err)
		_ = client.Close()
		return nil, false
	}

	logger.Infow("retrieval cache enabled", "addr", opts.Redis.Addr, "ttl", opts.TTL)
	return client, true
}

// Run discovers the embedding dimension, ensures the collection and
// serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.embedder.Load(ctx); err != nil {
		return err
	}
	if err := s.index.EnsureCollection(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.Server.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("forced shutdown", "error", err)
	}

	if err := s.index.Close(); err != nil {
		logger.Warnw("failed to close vector store client", "error", err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Warnw("failed to close redis client", "error", err)
		}
	}

	return nil
}
