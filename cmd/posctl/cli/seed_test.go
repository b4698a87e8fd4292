package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/suppliers"
)

func newSeeder() Seeder {
	store := docstore.NewMemory()
	return Seeder{
		Inventory: inventory.NewService(inventory.NewRepository(store), shared.NewAuditLogger(store)),
		Suppliers: suppliers.NewService(suppliers.NewRepository(store)),
	}
}

func TestSeedCreatesCatalogOnce(t *testing.T) {
	ctx := context.Background()
	seeder := newSeeder()

	res, err := seeder.Seed(ctx, "ws")
	require.NoError(t, err)
	require.Equal(t, SeedResult{Suppliers: 2, Products: 4, Links: 4}, res)

	products, err := seeder.Inventory.ListProducts(ctx, "ws")
	require.NoError(t, err)
	require.Len(t, products, 4)
	link, sup, err := seeder.Suppliers.GetPreferredSupplier(ctx, products[0].ID)
	require.NoError(t, err)
	require.Equal(t, "Kopi Nusantara", sup.Name)
	require.Equal(t, 10, link.MinOrderQuantity)

	_, err = seeder.Seed(ctx, "ws")
	require.ErrorIs(t, err, ErrAlreadySeeded)

	stdout := new(bytes.Buffer)
	require.Zero(t, seeder.SeedCommand(ctx, "ws", stdout, new(bytes.Buffer)))
	require.Contains(t, stdout.String(), "already seeded")
}
