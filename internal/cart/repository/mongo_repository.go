package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "carts"
	cartTTL        = 90 * 24 * time.Hour
)

// Prices are stored as strings since BSON has no lossless decimal for
// shopspring values.
type cartDocument struct {
	SessionID string         `bson:"session_id"`
	Items     []itemDocument `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type itemDocument struct {
	ProductID string `bson:"product_id"`
	Title     string `bson:"title"`
	Slug      string `bson:"slug"`
	Designer  string `bson:"designer"`
	Price     string `bson:"price"`
	Image     string `bson:"image,omitempty"`
	Quantity  int    `bson:"quantity"`
}

func toDocument(c *domain.Cart) cartDocument {
	doc := cartDocument{
		SessionID: c.SessionID,
		Items:     make([]itemDocument, 0, len(c.Items)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, item := range c.Items {
		doc.Items = append(doc.Items, itemDocument{
			ProductID: item.Product.ID.String(),
			Title:     item.Product.Title,
			Slug:      item.Product.Slug,
			Designer:  item.Product.Designer,
			Price:     item.Product.Price.String(),
			Image:     item.Product.Image,
			Quantity:  item.Quantity,
		})
	}
	return doc
}

func (d cartDocument) toDomain() (*domain.Cart, error) {
	cart := &domain.Cart{
		SessionID: d.SessionID,
		Items:     make([]domain.CartItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, item := range d.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid product id %q: %w", item.ProductID, err)
		}
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for product %s: %w", item.ProductID, err)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			Product: domain.ProductSnapshot{
				ID:       id,
				Title:    item.Title,
				Slug:     item.Slug,
				Designer: item.Designer,
				Price:    price,
				Image:    item.Image,
			},
			Quantity: item.Quantity,
		})
	}
	return cart, nil
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(collectionName),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain()
}

// SaveCart replaces the stored cart for the session, creating it when absent.
func (m *MongoRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = now
	}

	filter := bson.M{"session_id": cart.SessionID}
	opts := options.Replace().SetUpsert(true)

	if _, err := m.collection.ReplaceOne(ctx, filter, toDocument(cart), opts); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, sessionID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
