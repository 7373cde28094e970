package twofactor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/twofactor"
	"github.com/campusmind/twofactor/pkg/twofactor/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(t *testing.T) twofactor.Store {
		return twofactor.NewMemoryStore()
	})
}

func TestMemoryStore_PutCopiesInput(t *testing.T) {
	t.Parallel()
	s := twofactor.NewMemoryStore()
	ctx := context.Background()

	rec := storetest.Record()
	require.NoError(t, s.Put(ctx, "u1", rec))
	rec.Email = "mutated@campus.edu"

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "student@campus.edu", got.Email)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_UpdateDoesNotBlockOtherIdentities(t *testing.T) {
	t.Parallel()
	s := twofactor.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "slow", storetest.Record()))
	require.NoError(t, s.Put(ctx, "fast", storetest.Record()))

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Update(ctx, "slow", func(*twofactor.SecretRecord) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	// must complete while "slow" is still locked
	_, err := s.Update(ctx, "fast", func(rec *twofactor.SecretRecord) error {
		rec.Enabled = true
		return nil
	})
	require.NoError(t, err)

	close(release)
	<-done
}
