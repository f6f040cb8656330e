package embedded

import (
	"fmt"
	"log/slog"

	natsServer "github.com/nats-io/nats-server/v2/server"
	natsTest "github.com/nats-io/nats-server/v2/test"
)

// NATSServer is an in-process NATS server with JetStream, used when no external
// server is configured for the nats store backend.
type NATSServer struct {
	server *natsServer.Server
	logger *slog.Logger
}

// NewNATSServer starts the server on port, -1 picks a free port. An empty storeDir
// keeps JetStream data in a temporary directory.
func NewNATSServer(logger *slog.Logger, port int, storeDir string) (*NATSServer, error) {
	opts := &natsServer.Options{
		Host:      "127.0.0.1",
		Port:      port,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	}

	logger.Info("Starting embedded NATS server", slog.Int("port", port))

	ns := natsTest.RunServer(opts)
	if ns == nil {
		return nil, fmt.Errorf("failed to start NATS server")
	}

	if !ns.JetStreamEnabled() {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server started without JetStream")
	}

	logger.Info("Embedded NATS server started", slog.String("url", ns.ClientURL()))

	return &NATSServer{
		server: ns,
		logger: logger,
	}, nil
}

func (n *NATSServer) Shutdown() {
	if n.server == nil {
		return
	}

	n.logger.Info("Shutting down embedded NATS server")
	n.server.Shutdown()
	n.server.WaitForShutdown()
}

func (n *NATSServer) URL() string {
	return n.server.ClientURL()
}
