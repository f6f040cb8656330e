package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/glassflow/batchget/internal"
	"github.com/glassflow/batchget/internal/api"
	"github.com/glassflow/batchget/internal/client"
	"github.com/glassflow/batchget/internal/models"
	"github.com/glassflow/batchget/internal/server"
	"github.com/glassflow/batchget/pkg/observability"
)

//nolint:gochecknoglobals,revive // build variables
var (
	commit  string = "unspecified"
	app     string = "batchget"
	version string = "dev"
)

type config struct {
	LogFormat    string     `default:"json" split_words:"true"`
	LogLevel     slog.Level `default:"info" split_words:"true"`
	LogAddSource bool       `default:"false" split_words:"true"`
	LogFilePath  string     `split_words:"true"`

	ServerAddr            string        `default:":8080" split_words:"true"`
	ServerWriteTimeout    time.Duration `default:"15s" split_words:"true"`
	ServerReadTimeout     time.Duration `default:"15s" split_words:"true"`
	ServerIdleTimeout     time.Duration `default:"5m" split_words:"true"`
	ServerShutdownTimeout time.Duration `default:"30s" split_words:"true"`

	Nodes               []string `default:"node-a,node-b,node-c"`
	Namespaces          []string `default:"test"`
	MaxBatchKeysPerNode int      `default:"5000" split_words:"true"`

	StoreBackend     string `default:"badger" split_words:"true"`
	BadgerDir        string `split_words:"true"`
	BadgerInMemory   bool   `default:"true" split_words:"true"`
	NATSServer       string `default:"localhost:4222" split_words:"true"`
	NATSEmbedded     bool   `default:"false" split_words:"true"`
	NATSEmbeddedPort int    `default:"-1" split_words:"true"`
	NATSStoreDir     string `split_words:"true"`
	NATSBucketPrefix string `default:"batchget" split_words:"true"`
	PostgresDSN      string `split_words:"true"`

	BatchTotalTimeout        time.Duration `default:"10s" split_words:"true"`
	BatchSocketTimeout       time.Duration `default:"1s" split_words:"true"`
	BatchMaxRetries          int           `default:"2" split_words:"true"`
	BatchSleepBetweenRetries time.Duration `default:"10ms" split_words:"true"`
	BatchConcurrentNodes     int           `default:"0" split_words:"true"`
	BatchNodeConcurrency     int           `default:"16" split_words:"true"`

	OtelObservability bool   `default:"false" split_words:"true"`
	MetricsEnabled    bool   `default:"false" split_words:"true"`
	ServiceName       string `default:"batchget" split_words:"true"`
	ServiceNamespace  string `split_words:"true"`
	InstanceID        string `split_words:"true"`
}

func (cfg *config) policy() models.BatchPolicy {
	return models.BatchPolicy{
		TotalTimeout:        cfg.BatchTotalTimeout,
		SocketTimeout:       cfg.BatchSocketTimeout,
		MaxRetries:          cfg.BatchMaxRetries,
		SleepBetweenRetries: cfg.BatchSleepBetweenRetries,
		ConcurrentNodes:     cfg.BatchConcurrentNodes,
		NodeConcurrency:     cfg.BatchNodeConcurrency,
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("Service failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	var cfg config

	role := flag.String("role", internal.RoleServer, "Role to run: server or get")
	keys := flag.String("keys", "", "Comma separated ns/set/key list read by the get role")
	keyType := flag.String("key-type", "string", "User key type of -keys: string or integer")
	flag.Parse()

	switch *role {
	case internal.RoleServer, internal.RoleGet:
	default:
		return fmt.Errorf("invalid role specified: %s, valid roles are: %v", *role, []string{internal.RoleServer, internal.RoleGet})
	}

	err := envconfig.Process("batchget", &cfg)
	if err != nil {
		return fmt.Errorf("unable to parse config: %w", err)
	}

	return mainErr(&cfg, *role, *keys, *keyType)
}

func mainErr(cfg *config, role, keys, keyType string) error {
	var logOut io.Writer

	switch cfg.LogFilePath {
	case "":
		logOut = os.Stdout
		if role == internal.RoleGet {
			logOut = os.Stderr
		}
	default:
		fileflags := os.O_WRONLY | os.O_APPEND | os.O_CREATE
		logFile, err := os.OpenFile(
			path.Join(cfg.LogFilePath, time.Now().Format(time.RFC3339)+".log"),
			fileflags,
			os.FileMode(0o644),
		)
		if err != nil {
			return fmt.Errorf("unable to setup logfile %w", err)
		}
		defer logFile.Close()

		logOut = io.MultiWriter(os.Stderr, logFile)
	}

	obsCfg := &observability.Config{
		LogFormat:         cfg.LogFormat,
		LogLevel:          cfg.LogLevel,
		LogAddSource:      cfg.LogAddSource,
		OtelObservability: cfg.OtelObservability,
		MetricsEnabled:    cfg.MetricsEnabled,
		ServiceName:       cfg.ServiceName,
		ServiceVersion:    version,
		ServiceNamespace:  cfg.ServiceNamespace,
		InstanceID:        cfg.InstanceID,
	}

	log := observability.ConfigureLogger(obsCfg, logOut).With(
		slog.String("app", app),
		slog.String("commit_hash", commit),
		slog.String("goversion", runtime.Version()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, cleanup, err := openCluster(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open cluster: %w", err)
	}
	defer cleanup()

	opts := []client.BatchGetClientOption{
		client.WithPolicy(cfg.policy()),
		client.WithTracer(observability.ConfigureTracer(obsCfg, log)),
	}
	if meter := observability.ConfigureMeter(obsCfg); meter != nil {
		opts = append(opts, client.WithMeter(meter))
	}

	bg := client.NewBatchGetClient(c, log, opts...)
	defer func() {
		if err := bg.Close(); err != nil {
			log.Error("failed to close cluster", slog.Any("error", err))
		}
	}()

	switch role {
	case internal.RoleGet:
		return mainGet(ctx, bg, strings.Split(keys, ","), keyType, os.Stdout)
	default:
		return mainServer(ctx, cfg, bg, log)
	}
}

func mainServer(ctx context.Context, cfg *config, bg *client.BatchGetClient, log *slog.Logger) error {
	apiServer := server.NewHTTPServer(
		cfg.ServerAddr,
		cfg.ServerReadTimeout,
		cfg.ServerWriteTimeout,
		cfg.ServerIdleTimeout,
		cfg.ServerShutdownTimeout,
		log,
		api.NewRouter(log, bg),
	)

	if err := apiServer.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("Service terminated gracefully")

	return nil
}
