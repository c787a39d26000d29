// Package server exposes the encoder, the model tools and the inference
// client over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"suiml.io/suiml/inference"
	"suiml.io/suiml/model"
	"suiml.io/suiml/storage"
)

// Chain is the on-chain half of the API. *inference.Client implements it.
type Chain interface {
	Predict(ctx context.Context, req inference.Request) (inference.PredictionResult, error)
	UploadModel(ctx context.Context, m model.QuantizedModel, info model.Info) (inference.UploadResult, error)
}

// Options configure the HTTP layer.
type Options struct {
	// JWTSecret enables bearer authentication on /api routes when set.
	JWTSecret string
	// CORSOrigins defaults to any origin.
	CORSOrigins []string
	// Release switches gin to release mode.
	Release bool
}

// Server routes API requests. Store and Chain may be nil; the routes that
// need them answer 503.
type Server struct {
	opts   Options
	store  storage.BlobStore
	chain  Chain
	engine *gin.Engine
}

func New(opts Options, store storage.BlobStore, chain Chain) *Server {
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{opts: opts, store: store, chain: chain}
	s.engine = s.routes()
	return s
}

// Handler returns the gin engine as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(recovery(), accessLog())
	r.Use(corsMiddleware(s.opts.CORSOrigins))
	if s.opts.JWTSecret != "" {
		r.Use(authMiddleware([]byte(s.opts.JWTSecret)))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/encode", s.encode)
	v1.POST("/decode", s.decode)

	models := v1.Group("/models")
	models.GET("", s.listModels)
	models.POST("/convert", s.convertModel)
	models.POST("/validate", s.validateModel)
	models.POST("/upload", s.uploadModel)
	models.GET("/:cid", s.getModel)

	v1.POST("/predict", s.predict)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
