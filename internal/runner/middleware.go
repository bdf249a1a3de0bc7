package runner

import (
	"context"

	"go.uber.org/zap"
)

type loggingRequester struct {
	inner Requester
	log   *zap.Logger
	unit  int
}

// WithLogging wraps a Requester to log failures at warn level.
func WithLogging(req Requester, log *zap.Logger, unit int) Requester {
	if log == nil {
		return req
	}
	return &loggingRequester{inner: req, log: log, unit: unit}
}

func (l *loggingRequester) Execute(ctx context.Context) (string, error) {
	body, err := l.inner.Execute(ctx)
	if err != nil {
		l.log.Warn("Request failed", zap.Int("unit", l.unit), zap.Error(err))
	}
	return body, err
}
