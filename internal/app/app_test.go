package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/shopkeeper/internal/config"
	"github.com/dvloznov/shopkeeper/internal/domain"
)

func testConfig(driver, dir string) config.Config {
	return config.Config{
		Shop: config.ShopConfig{Name: "Test Shop", Type: "Kirana", Currency: "INR", Timezone: "Asia/Kolkata"},
		Store: config.StoreConfig{
			Driver:     driver,
			SQLitePath: filepath.Join(dir, "data", "shop.db"),
		},
		Search:  config.SearchConfig{MaxMultiple: 10, MaxPairQuantity: 5, TopK: 5},
		Persist: config.PersistConfig{Workers: 1, MaxRetries: 1, Buffer: 10},
	}
}

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(config.DriverMemory, t.TempDir()), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Nil(t, a.Mirror)
	assert.Equal(t, "Test Shop", a.Shop.Profile().Name)
	assert.Equal(t, "Asia/Kolkata", a.Shop.Location().String())
	assert.Equal(t, "Sorry, I need the Gemini API key to be configured to help you. Please set SHOPKEEPER_GEMINI_API_KEY.",
		a.Shop.Ask(ctx, "hello"))
}

func TestOpen_SQLitePersistsAcrossRuns(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverSQLite, t.TempDir())

	a, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = a.Shop.AddProduct(ctx, domain.Product{ID: "tea", Name: "Tea", UnitPrice: decimal.NewFromInt(10), InitialStock: 5})
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))

	b, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close(ctx)
	require.Len(t, b.Shop.Products(), 1)
	assert.Equal(t, 5, b.Shop.Inventory()[0].Quantity)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), testConfig("redis", t.TempDir()), zerolog.Nop())
	assert.Error(t, err)
}
