package api

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "discordmessenger/pkg/logx"
)

func TestServerApplyAndStop(t *testing.T) {
	srv := NewServer(newTestHandler(&fakePanel{}, nil), logx.Nop())
	t.Cleanup(func() { srv.Stop(context.Background()) })

	require.NoError(t, srv.Apply(context.Background(), "127.0.0.1:0"))
	addr := srv.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))

	// Same requested addr keeps the listener.
	require.NoError(t, srv.Apply(context.Background(), "127.0.0.1:0"))
	assert.Equal(t, addr, srv.Addr())

	require.NoError(t, srv.Apply(context.Background(), ""))
	assert.Empty(t, srv.Addr())
	srv.Stop(context.Background())
}

func TestServerListenError(t *testing.T) {
	srv := NewServer(http.NotFoundHandler(), logx.Nop())
	assert.Error(t, srv.Apply(context.Background(), "256.0.0.1:bad"))
	assert.Empty(t, srv.Addr())
}
