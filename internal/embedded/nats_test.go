package embedded

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassflow/batchget/tests/testutils"
)

func TestNATSServer(t *testing.T) {
	srv, err := NewNATSServer(testutils.NewDiscardLogger(), -1, t.TempDir())
	require.NoError(t, err)
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.URL())
	require.NoError(t, err)
	defer nc.Close()

	assert.True(t, nc.IsConnected())
}
