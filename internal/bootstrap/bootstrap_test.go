package bootstrap

import (
	"context"
	"testing"
	"time"

	"clinica-lembretes/internal/config"
	"clinica-lembretes/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		CronSecret:          "s",
		StoreBackend:        config.BackendMemory,
		DispatchConcurrency: 2,
		AuthDisabled:        true,
		Timezone:            "UTC",
	}
}

func TestNeedsFirebase(t *testing.T) {
	cfg := memoryConfig()
	assert.False(t, needsFirebase(cfg, true))

	cfg.AuthDisabled = false
	assert.True(t, needsFirebase(cfg, true))
	assert.False(t, needsFirebase(cfg, false))

	cfg = memoryConfig()
	cfg.NotifyFailuresPush = true
	assert.True(t, needsFirebase(cfg, false))

	cfg = memoryConfig()
	cfg.StoreBackend = config.BackendFirestore
	assert.True(t, needsFirebase(cfg, false))
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, memoryConfig(), true)
	require.NoError(t, err)
	defer d.Close()

	assert.IsType(t, &store.MemoryStore{}, d.Store)
	assert.Nil(t, d.Firebase)
	require.NotNil(t, d.Dispatcher)
	require.NotNil(t, d.Agenda)

	res, err := d.Dispatcher.Run(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processadas)

	auth, err := d.TenantAuth(ctx)
	require.NoError(t, err)
	assert.NotNil(t, auth)
}

func TestTenantAuthRequiresFirebase(t *testing.T) {
	cfg := memoryConfig()
	cfg.AuthDisabled = false
	d := &Deps{Config: cfg}
	_, err := d.TenantAuth(context.Background())
	assert.Error(t, err)
}

func TestEmailNotifierWithoutCredentialsStaysOff(t *testing.T) {
	cfg := memoryConfig()
	cfg.NotifyFailuresEmail = true
	n := newNotifier(context.Background(), cfg, store.NewMemoryStore(), nil)
	assert.False(t, n.Enabled())
}
