// Package server exposes the worker's HTTP surface: the direct
// process-email operation, the Gmail Pub/Sub push endpoint, and a health
// probe.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jobhub/inbox-worker/internal/service"
)

// EmailProcessor runs the email workflow.
type EmailProcessor interface {
	ProcessEmail(ctx context.Context, userID string, raw service.RawEmail) (*service.Outcome, error)
}

// GmailPushHandler ingests one Gmail push notification.
type GmailPushHandler interface {
	HandlePush(ctx context.Context, emailAddress string, historyID uint64) error
}

type Server struct {
	processor EmailProcessor
	pushes    GmailPushHandler
	log       *logrus.Logger
	http      *http.Server
}

func New(addr string, processor EmailProcessor, pushes GmailPushHandler, log *logrus.Logger) *Server {
	s := &Server{
		processor: processor,
		pushes:    pushes,
		log:       log,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.POST("/v1/emails/process", s.handleProcessEmail)
	router.POST("/v1/pubsub/gmail", s.handleGmailPush)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.http.Addr).Info("http server listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
