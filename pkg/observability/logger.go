package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ConfigureLogger creates and configures a logger based on the provided configuration
func ConfigureLogger(cfg *Config, logOut io.Writer) *slog.Logger {
	if cfg.OtelObservability {
		return configureOTelLogger(cfg, logOut)
	}

	return createStandardLogger(cfg, logOut)
}

// configureOTelLogger sets up OpenTelemetry logging with fallback to standard logging
func configureOTelLogger(cfg *Config, logOut io.Writer) *slog.Logger {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		slog.Error("Failed to create OTel resource, falling back to standard logging", "error", err)
		return createStandardLogger(cfg, logOut)
	}

	// reads OTEL_EXPORTER_OTLP_ENDPOINT from environment
	exporter, err := otlploghttp.New(context.Background())
	if err != nil {
		slog.Error("Failed to create OTel exporter, falling back to standard logging", "error", err)
		return createStandardLogger(cfg, logOut)
	}

	provider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(exporter)),
	)

	global.SetLoggerProvider(provider)

	otelHandler := otelslog.NewHandler(cfg.ServiceName,
		otelslog.WithLoggerProvider(provider),
	)

	// logs stay visible locally when OTel is enabled
	return slog.New(&multiSlogHandler{
		otelHandler:     otelHandler,
		fallbackHandler: createStandardHandler(cfg, logOut),
	})
}

func createStandardLogger(cfg *Config, logOut io.Writer) *slog.Logger {
	return slog.New(createStandardHandler(cfg, logOut))
}

func createStandardHandler(cfg *Config, logOut io.Writer) slog.Handler {
	//nolint: exhaustruct // optional config
	logOpts := &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: cfg.LogAddSource,
	}

	switch cfg.LogFormat {
	case "json":
		return slog.NewJSONHandler(logOut, logOpts)
	default:
		//nolint:exhaustruct // optional config
		return tint.NewHandler(logOut, &tint.Options{
			AddSource:  cfg.LogAddSource,
			Level:      cfg.LogLevel,
			TimeFormat: "15:04:05",
		})
	}
}

// multiSlogHandler writes to both OTel and local output
type multiSlogHandler struct {
	otelHandler     slog.Handler
	fallbackHandler slog.Handler
}

func (h *multiSlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.otelHandler.Enabled(ctx, level) || h.fallbackHandler.Enabled(ctx, level)
}

func (h *multiSlogHandler) Handle(ctx context.Context, record slog.Record) error {
	otelErr := h.otelHandler.Handle(ctx, record)
	localErr := h.fallbackHandler.Handle(ctx, record)

	// both handlers are always attempted
	if otelErr != nil {
		return otelErr
	}
	return localErr
}

func (h *multiSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &multiSlogHandler{
		otelHandler:     h.otelHandler.WithAttrs(attrs),
		fallbackHandler: h.fallbackHandler.WithAttrs(attrs),
	}
}

func (h *multiSlogHandler) WithGroup(name string) slog.Handler {
	return &multiSlogHandler{
		otelHandler:     h.otelHandler.WithGroup(name),
		fallbackHandler: h.fallbackHandler.WithGroup(name),
	}
}
