package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stretchr/testify/require"

	"github.com/glassflow/batchget/tests/testutils"
)

func TestServerRun(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := NewHTTPServer(addr, time.Second, time.Second, time.Second, time.Second, testutils.NewDiscardLogger(), handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	err = retry.Do(func() error {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		return nil
	}, retry.Attempts(20), retry.Delay(50*time.Millisecond), retry.DelayType(retry.FixedDelay))
	require.NoError(t, err)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
