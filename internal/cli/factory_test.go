package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestNewEngine_Memory(t *testing.T) {
	engine, closeEngine, err := NewEngine(DefaultProfile(), NewLogger(false))
	require.NoError(t, err)
	require.NotNil(t, engine)
	assert.NoError(t, closeEngine())
}

func TestNewEngine_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	profile := DefaultProfile()
	profile.Transport = TransportRedis
	profile.Redis.Addr = mr.Addr()

	engine, closeEngine, err := NewEngine(profile, NewLogger(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeEngine() })

	// The stores must be live: an unknown pk travels to redis and back.
	_, err = engine.KillProcess(context.Background(), 9999)
	assert.ErrorIs(t, err, domain.ErrProcessNotFound)
}

func TestNewEngine_UnknownTransport(t *testing.T) {
	profile := DefaultProfile()
	profile.Transport = "carrier-pigeon"

	_, _, err := NewEngine(profile, NewLogger(false))
	assert.Error(t, err)
}
