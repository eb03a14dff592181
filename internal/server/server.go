package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Novapool/ParallelTracks/internal/event"
	"github.com/Novapool/ParallelTracks/internal/genai"
	"github.com/Novapool/ParallelTracks/internal/host"
	"github.com/Novapool/ParallelTracks/internal/platform"
	"github.com/Novapool/ParallelTracks/internal/speech"
	"github.com/Novapool/ParallelTracks/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Cache struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Platform struct {
		BaseURL string
		APIKey  string
	}

	OpenRouter struct {
		BaseURL string
		APIKey  string
	}

	Speech struct {
		BaseURL  string
		APIKey   string
		AudioDir string
	}

	Submit struct {
		PerMinute int
		Burst     int
	}

	Dev struct {
		ResponsesCommand []string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			cache redis.UniversalClient
		}
	}

	service struct {
		platform *platform.Client
		genai    *genai.Client
		speech   *speech.Synthesizer
		host     *host.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Cache.Addrs,
		Password: s.c.Redis.Cache.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis.cache = r
	return nil
}

func (s *Server) initService() error {
	s.service.platform = platform.NewClient(platform.Config{
		BaseURL: s.c.Platform.BaseURL,
		APIKey:  s.c.Platform.APIKey,
	})

	s.service.genai = genai.NewClient(genai.Config{
		BaseURL: s.c.OpenRouter.BaseURL,
		APIKey:  s.c.OpenRouter.APIKey,
		Redis:   s.infra.redis.cache,
		Prefix:  s.c.Redis.Cache.Prefix,
	})

	var err error
	s.service.speech, err = speech.NewSynthesizer(speech.Config{
		BaseURL:  s.c.Speech.BaseURL,
		APIKey:   s.c.Speech.APIKey,
		AudioDir: s.c.Speech.AudioDir,
	})
	if err != nil {
		return fmt.Errorf("speech: %w", err)
	}

	s.service.host = host.NewService(host.Config{
		Platform:    s.service.platform,
		GenAI:       s.service.genai,
		Speech:      s.service.speech,
		EventBus:    s.eb,
		AudioDir:    s.c.Speech.AudioDir,
		SubmitRate:  rate.Limit(float64(s.c.Submit.PerMinute) / 60.0),
		SubmitBurst: s.c.Submit.Burst,
		DevCommand:  s.c.Dev.ResponsesCommand,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.service.host.Register(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err := eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if err := s.infra.redis.cache.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
