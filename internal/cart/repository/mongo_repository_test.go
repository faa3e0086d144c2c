package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) *MongoRepository {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))
	return repo
}

func sampleCart(sessionID string) *domain.Cart {
	cart := domain.NewCart(sessionID)
	_ = cart.Add(domain.ProductSnapshot{
		ID:       uuid.New(),
		Title:    "Mohair cardigan",
		Slug:     "mohair-cardigan",
		Designer: "Sonia Rykiel",
		Price:    decimal.RequireFromString("240.50"),
		Image:    "https://cdn.test/cardigan.jpg",
	}, 1)
	return cart
}

func TestDocumentConversion(t *testing.T) {
	cart := sampleCart("s-doc")

	doc := toDocument(cart)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "240.5", doc.Items[0].Price)

	back, err := doc.toDomain()
	require.NoError(t, err)
	assert.Equal(t, cart.Items[0].Product.ID, back.Items[0].Product.ID)
	assert.True(t, back.Items[0].Product.Price.Equal(decimal.RequireFromString("240.50")))
}

func TestDocumentConversion_InvalidPrice(t *testing.T) {
	doc := cartDocument{Items: []itemDocument{{ProductID: uuid.NewString(), Price: "abc"}}}
	_, err := doc.toDomain()
	assert.ErrorContains(t, err, "invalid price")
}

func TestGetCart_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	cart, err := repo.GetCart(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestSaveCart_CreatesAndReplaces(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	cart := sampleCart("s-1")
	require.NoError(t, repo.SaveCart(ctx, cart))

	got, err := repo.GetCart(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Mohair cardigan", got.Items[0].Product.Title)

	require.NoError(t, got.UpdateQuantity(got.Items[0].Product.ID, 3))
	require.NoError(t, repo.SaveCart(ctx, got))

	again, err := repo.GetCart(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Items[0].Quantity)
	assert.WithinDuration(t, cart.CreatedAt, again.CreatedAt, time.Second)
}

func TestDeleteCart(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, sampleCart("s-2")))
	require.NoError(t, repo.DeleteCart(ctx, "s-2"))

	_, err := repo.GetCart(ctx, "s-2")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.ErrorIs(t, repo.DeleteCart(ctx, "s-2"), ErrCartNotFound)
}
