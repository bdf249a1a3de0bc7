package main

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/nioload/internal/clientmetrics"
	"github.com/torosent/nioload/internal/config"
	"github.com/torosent/nioload/internal/executor"
	"github.com/torosent/nioload/internal/framer"
	"github.com/torosent/nioload/internal/httpclient"
	"github.com/torosent/nioload/internal/pool"
	"github.com/torosent/nioload/internal/runner"
	"github.com/torosent/nioload/internal/transport"
)

// newTransport builds the connection capability selected by cfg.Transport.
// Completion callbacks of both kinds run on workers.
func newTransport(cfg *config.Config, workers *pool.Workers, cm *clientmetrics.ClientMetrics, log *zap.Logger) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportTCP, "":
		return transport.NewTCP(transport.TCPOptions{
			DialTimeout: cfg.Timeout,
			Workers:     workers,
			Metrics:     cm,
			Logger:      log.Named("tcp"),
		}), nil
	case config.TransportHTTP:
		return httpclient.NewTransport(httpclient.Options{
			Client:       httpclient.NewClient(cfg.Timeout),
			MaxBodyBytes: cfg.MaxBody,
			Workers:      workers,
			Metrics:      cm,
			Logger:       log.Named("http"),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

// newRequesterFactory renders the request once and hands every unit its own
// Executor over the shared transport.
func newRequesterFactory(cfg *config.Config, tr transport.Transport, tracer trace.Tracer, propagate bool, log *zap.Logger) (func(unit int) runner.Requester, error) {
	body, err := executor.NewPayload(cfg.Body, cfg.BodyFile)
	if err != nil {
		return nil, err
	}
	request, err := executor.RequestSpec{
		Method:  cfg.Method,
		Path:    cfg.Path,
		Host:    cfg.Target,
		Headers: cfg.Headers,
		Body:    body,
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	log.Debug("Request rendered", zap.Int("bytes", len(request)), zap.Int64("body_bytes", body.Len()))

	frameOpts := []framer.Option{
		framer.WithMaxBodyBytes(cfg.MaxBody),
		framer.WithMaxHeaderBytes(int(cfg.MaxHeader)),
	}

	return func(unit int) runner.Requester {
		unitLog := log.With(zap.Int("unit", unit))
		exec := &executor.Executor{
			Transport:    tr,
			Address:      cfg.Target,
			Request:      request,
			ReadHint:     int(cfg.ReadBuffer),
			Timeout:      cfg.Timeout,
			FrameOptions: frameOpts,
			RejectStatus: cfg.RejectStatus,
			Propagate:    propagate,
			Logger:       unitLog,
			Tracer:       tracer,
			Name:         string(cfg.Transport),
		}
		return runner.WithLogging(exec, log, unit)
	}, nil
}
