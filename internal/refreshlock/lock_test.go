package refreshlock

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fragezeichen/roulette/internal/redis"
	redismocks "github.com/fragezeichen/roulette/internal/redis/mocks"
	"github.com/fragezeichen/roulette/internal/testutil"
)

func newTestLock(t *testing.T, cfg Config) (*Lock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(testutil.NewTestLogger(), redis.Config{
		Address:   mr.Addr(),
		KeyPrefix: "test:",
	})
	require.NoError(t, client.Start(testutil.NewTestContext(t)))
	t.Cleanup(func() { _ = client.Stop() })

	require.NoError(t, cfg.Validate())

	return New(testutil.NewTestLogger(), cfg, client), mr
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectError bool
		validate    func(t *testing.T, cfg Config)
	}{
		{
			name: "defaults",
			cfg:  Config{},
			validate: func(t *testing.T, cfg Config) {
				t.Helper()

				assert.Equal(t, "refresh-lock", cfg.Key)
				assert.Equal(t, 2*time.Minute, cfg.TTL)
				assert.Equal(t, 40*time.Second, cfg.RenewInterval)
			},
		},
		{
			name:        "renew interval not shorter than ttl",
			cfg:         Config{TTL: 10 * time.Second, RenewInterval: 10 * time.Second},
			expectError: true,
		},
		{
			name:        "ttl too short",
			cfg:         Config{TTL: 100 * time.Millisecond, RenewInterval: 10 * time.Millisecond},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()

			if tt.expectError {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)

			if tt.validate != nil {
				tt.validate(t, tt.cfg)
			}
		})
	}
}

func TestLock_ExclusiveUntilRelease(t *testing.T) {
	lock, mr := newTestLock(t, Config{TTL: time.Minute, RenewInterval: 20 * time.Second})
	ctx := testutil.NewTestContext(t)

	lease, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.NotNil(t, lease)

	holder, err := mr.Get("test:refresh-lock")
	require.NoError(t, err)
	assert.Equal(t, lease.Token(), holder)

	_, err = lock.TryLock(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	lease.Release()
	lease.Release()

	assert.False(t, mr.Exists("test:refresh-lock"))

	next, err := lock.TryLock(ctx)
	require.NoError(t, err)
	next.Release()
}

func TestLock_ReleaseKeepsForeignHolder(t *testing.T) {
	lock, mr := newTestLock(t, Config{TTL: time.Minute, RenewInterval: 20 * time.Second})
	ctx := testutil.NewTestContext(t)

	lease, err := lock.TryLock(ctx)
	require.NoError(t, err)

	// Another instance took over after our lease expired.
	require.NoError(t, mr.Set("test:refresh-lock", "someone-else"))

	lease.Release()

	holder, err := mr.Get("test:refresh-lock")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", holder)
}

func TestLock_RenewExtendsTTL(t *testing.T) {
	lock, mr := newTestLock(t, Config{TTL: 2 * time.Second, RenewInterval: 50 * time.Millisecond})
	ctx := testutil.NewTestContext(t)

	lease, err := lock.TryLock(ctx)
	require.NoError(t, err)
	t.Cleanup(lease.Release)

	mr.FastForward(1500 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return mr.TTL("test:refresh-lock") == 2*time.Second
	}, time.Second, 10*time.Millisecond)

	assert.False(t, lease.Lost())
}

func TestLease_RenewDetectsLoss(t *testing.T) {
	lock, mr := newTestLock(t, Config{TTL: time.Minute, RenewInterval: 20 * time.Second})
	ctx := testutil.NewTestContext(t)

	lease, err := lock.TryLock(ctx)
	require.NoError(t, err)
	t.Cleanup(lease.Release)

	require.NoError(t, mr.Set("test:refresh-lock", "someone-else"))

	assert.False(t, lease.renew())
	assert.True(t, lease.Lost())
}

func TestLock_TryLockErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRedis := redismocks.NewMockClient(ctrl)

	mockRedis.EXPECT().Key("refresh-lock").Return("test:refresh-lock").Times(1)
	mockRedis.EXPECT().
		SetNX(gomock.Any(), "test:refresh-lock", gomock.Any(), time.Minute).
		Return(false, assert.AnError).
		Times(1)

	cfg := Config{TTL: time.Minute}
	require.NoError(t, cfg.Validate())

	lock := New(testutil.NewTestLogger(), cfg, mockRedis)

	lease, err := lock.TryLock(testutil.NewTestContext(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, lease)
}

func TestLease_RenewTransientErrorKeepsLease(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRedis := redismocks.NewMockClient(ctrl)

	mockRedis.EXPECT().Key("refresh-lock").Return("test:refresh-lock").Times(1)
	mockRedis.EXPECT().
		CompareAndExpire(gomock.Any(), "test:refresh-lock", "token-a", time.Minute).
		Return(false, assert.AnError).
		Times(1)

	cfg := Config{TTL: time.Minute}
	require.NoError(t, cfg.Validate())

	lease := &Lease{
		lock:  New(testutil.NewTestLogger(), cfg, mockRedis),
		token: "token-a",
		done:  make(chan struct{}),
	}

	assert.True(t, lease.renew())
	assert.False(t, lease.Lost())
}

func TestLease_Confirm(t *testing.T) {
	lock, mr := newTestLock(t, Config{TTL: 2 * time.Second, RenewInterval: time.Second})
	ctx := testutil.NewTestContext(t)

	lease, err := lock.TryLock(ctx)
	require.NoError(t, err)
	t.Cleanup(lease.Release)

	mr.FastForward(1500 * time.Millisecond)

	require.True(t, lease.Confirm(ctx))
	assert.Equal(t, 2*time.Second, mr.TTL("test:refresh-lock"), "confirm extends the lease")

	require.NoError(t, mr.Set("test:refresh-lock", "someone-else"))

	assert.False(t, lease.Confirm(ctx))
	assert.True(t, lease.Lost())

	// A lost lease stays lost even if the key comes back.
	require.NoError(t, mr.Set("test:refresh-lock", lease.Token()))
	assert.False(t, lease.Confirm(ctx))
}
