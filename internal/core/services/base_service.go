package services

import (
	"context"
	"log/slog"

	"github.com/SscSPs/money_oxr/internal/middleware"
)

// BaseService provides common functionality for all services
type BaseService struct {
	Logger *slog.Logger
}

// GetLogger gets the request logger from context or falls back to the service logger
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := middleware.LoggerFromCtx(ctx); ok {
		return logger
	}
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	logger.Error(msg, args...)
}

// LogWarn logs a warning, attaching err when given
func (s *BaseService) LogWarn(ctx context.Context, err error, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	args := make([]any, 0, len(keyvals)+1)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	args = append(args, keyvals...)
	logger.Warn(msg, args...)
}

// LogInfo logs an info message with consistent formatting
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Debug(msg, keyvals...)
}
