package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "products")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, "products", []byte(`[1]`)))
	require.NoError(t, s.Put(ctx, "products", []byte(`[1,2]`)))

	got, err := s.Get(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))
}

func TestMigrations_Idempotent(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db))

	v, dirty, err := Version(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)
}
