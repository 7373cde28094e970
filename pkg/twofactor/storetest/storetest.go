// Package storetest holds the behavioural contract every twofactor.Store
// implementation must satisfy. Adapter packages call Run from their tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/twofactor"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) twofactor.Store

// Run exercises store semantics shared by all adapters.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.Get(context.Background(), "nobody")
		assert.ErrorIs(t, err, twofactor.ErrRecordNotFound)
		assert.Nil(t, rec)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		want := Record()

		require.NoError(t, s.Put(ctx, "u1", want))
		got, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assertSameContent(t, want, got)
		assert.Positive(t, got.Version)
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := Record()
		first.Enabled = true
		require.NoError(t, s.Put(ctx, "u1", first))

		second := Record()
		second.Email = "new@campus.edu"
		require.NoError(t, s.Put(ctx, "u1", second))

		got, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, got.Enabled)
		assert.Equal(t, "new@campus.edu", got.Email)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "u1", Record()))

		got, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		got.BackupCodes[0] = "ZZZZ-ZZZZ"
		got.Secret[0] ^= 0xFF

		again, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, Record().BackupCodes, again.BackupCodes)
		assert.Equal(t, Record().Secret, again.Secret)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "u1", Record()))

		require.NoError(t, s.Delete(ctx, "u1"))
		require.NoError(t, s.Delete(ctx, "u1"))
		_, err := s.Get(ctx, "u1")
		assert.ErrorIs(t, err, twofactor.ErrRecordNotFound)
	})

	t.Run("identities are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := Record()
		b := Record()
		b.Email = "other@campus.edu"
		require.NoError(t, s.Put(ctx, "a", a))
		require.NoError(t, s.Put(ctx, "b", b))
		require.NoError(t, s.Delete(ctx, "a"))

		got, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "other@campus.edu", got.Email)
	})

	t.Run("update missing", func(t *testing.T) {
		s := newStore(t)
		called := false
		rec, err := s.Update(context.Background(), "nobody", func(*twofactor.SecretRecord) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, twofactor.ErrRecordNotFound)
		assert.Nil(t, rec)
		assert.False(t, called)
	})

	t.Run("update writes and bumps version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "u1", Record()))
		before, err := s.Get(ctx, "u1")
		require.NoError(t, err)

		updated, err := s.Update(ctx, "u1", func(rec *twofactor.SecretRecord) error {
			rec.Enabled = true
			rec.LastUsedStep = 42
			return nil
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.True(t, updated.Enabled)
		assert.Greater(t, updated.Version, before.Version)

		got, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, got.Enabled)
		assert.Equal(t, int64(42), got.LastUsedStep)
		assert.Equal(t, updated.Version, got.Version)
	})

	t.Run("update error aborts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "u1", Record()))

		boom := errors.New("boom")
		_, err := s.Update(ctx, "u1", func(rec *twofactor.SecretRecord) error {
			rec.Enabled = true
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, got.Enabled)
	})

	t.Run("update can delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "u1", Record()))

		rec, err := s.Update(ctx, "u1", func(*twofactor.SecretRecord) error {
			return twofactor.ErrDeleteRecord
		})
		require.NoError(t, err)
		assert.Nil(t, rec)

		_, err = s.Get(ctx, "u1")
		assert.ErrorIs(t, err, twofactor.ErrRecordNotFound)
	})

	t.Run("concurrent backup code consumption has one winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := Record()
		rec.Enabled = true
		require.NoError(t, s.Put(ctx, "u1", rec))

		code := rec.BackupCodes[3]
		errAlreadyUsed := errors.New("already used")

		const workers = 8
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := s.Update(ctx, "u1", func(r *twofactor.SecretRecord) error {
					if !r.ConsumeBackupCode(code) {
						return errAlreadyUsed
					}
					return nil
				})
				if err == nil {
					wins.Add(1)
					return
				}
				if !errors.Is(err, errAlreadyUsed) && !errors.Is(err, twofactor.ErrConcurrentUpdate) {
					t.Errorf("unexpected update error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		got, err := s.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{code}, got.UsedBackupCodes)
		assert.Equal(t, len(rec.BackupCodes)-1, got.RemainingBackupCodes())
	})

	t.Run("context canceled", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Get(ctx, "u1")
		assert.Error(t, err)
	})
}

// Record returns a fixed pending record for tests.
func Record() *twofactor.SecretRecord {
	codes := make([]string, 8)
	for i := range codes {
		codes[i] = fmt.Sprintf("%04X-%04X", 0xA000+i, 0x1000*i)
	}
	created := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	return &twofactor.SecretRecord{
		Secret:      []byte("12345678901234567890"),
		Email:       "student@campus.edu",
		BackupCodes: codes,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func assertSameContent(t *testing.T, want, got *twofactor.SecretRecord) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.Secret, got.Secret)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.Enabled, got.Enabled)
	assert.Equal(t, want.BackupCodes, got.BackupCodes)
	assert.Equal(t, len(want.UsedBackupCodes), len(got.UsedBackupCodes))
	assert.Equal(t, want.LastUsedStep, got.LastUsedStep)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", want.CreatedAt, got.CreatedAt)
}
