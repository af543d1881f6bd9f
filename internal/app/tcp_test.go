package app

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
)

func TestNewLoopbackServer_CountsListenFailures(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := &cfgpkg.Config{Relay: cfgpkg.RelayConfig{Host: "127.0.0.1", ListenRetryDelay: 10 * time.Millisecond}}
	_, appm := NewMetrics()
	srv := NewLoopbackServer(cfg, busy.Addr().(*net.TCPAddr).Port, zap.NewNop(), appm)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Listen(ctx), context.DeadlineExceeded)
	assert.GreaterOrEqual(t, testutil.ToFloat64(appm.ListenFailures.WithLabelValues("tcp")), 1.0)
}
