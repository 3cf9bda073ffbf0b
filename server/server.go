package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/agents/orchestrator"
)

const (
	replyFailure     = "Sorry, something went wrong. Please try again."
	replyRateLimited = "You're sending messages too quickly. Please wait a moment and try again."
	replyNoSender    = "Missing sender."
	replyTooLong     = "Sorry, that message is too long. Please send a shorter one."
)

// MessageHandler runs one conversational turn for a caller.
type MessageHandler interface {
	HandleMessage(ctx context.Context, callerID string, text string) (string, error)
}

type Server struct {
	cfg     Config
	handler MessageHandler
	limiter *callerLimiter
	router  *gin.Engine
}

type inboundSMS struct {
	From string `json:"From" form:"From"`
	Body string `json:"Body" form:"Body"`
}

func New(cfg Config, handler MessageHandler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		limiter: newCallerLimiter(cfg.RatePerMinute, cfg.Burst, cfg.LimiterIdle),
	}

	router := gin.New()
	router.Use(gin.Recovery(), AccessLog())
	router.GET("/health", s.health)
	router.POST("/sms", s.sms)
	router.POST("/sms-test", s.smsTest)
	s.router = router

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.limiter.runSweeper(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// sms is the form-encoded webhook used by the SMS provider.
func (s *Server) sms(c *gin.Context) {
	var in inboundSMS
	if err := c.ShouldBind(&in); err != nil {
		c.String(http.StatusBadRequest, replyNoSender)
		return
	}
	s.reply(c, in)
}

// smsTest accepts the same fields as JSON for manual testing.
func (s *Server) smsTest(c *gin.Context) {
	var in inboundSMS
	if err := c.ShouldBindJSON(&in); err != nil {
		c.String(http.StatusBadRequest, replyNoSender)
		return
	}
	s.reply(c, in)
}

func (s *Server) reply(c *gin.Context, in inboundSMS) {
	callerID := strings.TrimSpace(in.From)
	if callerID == "" {
		c.String(http.StatusBadRequest, replyNoSender)
		return
	}
	if !s.limiter.Allow(callerID) {
		log.Ctx(c.Request.Context()).Warn().Str("caller_id", callerID).Msg("rate limit exceeded")
		c.String(http.StatusTooManyRequests, replyRateLimited)
		return
	}

	reply, err := s.handler.HandleMessage(c.Request.Context(), callerID, in.Body)
	if errors.Is(err, orchestrator.ErrInvalidMessage) {
		log.Ctx(c.Request.Context()).Warn().Err(err).Str("caller_id", callerID).Msg("message rejected")
		c.String(http.StatusBadRequest, replyTooLong)
		return
	}
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Str("caller_id", callerID).Msg("turn failed")
		c.String(http.StatusInternalServerError, replyFailure)
		return
	}
	c.String(http.StatusOK, reply)
}
