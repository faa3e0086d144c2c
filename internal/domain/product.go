package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type ProductStatus string

const (
	ProductAvailable ProductStatus = "available"
	ProductSold      ProductStatus = "sold"
	ProductReserved  ProductStatus = "reserved"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductAvailable, ProductSold, ProductReserved:
		return true
	}
	return false
}

func (s ProductStatus) String() string {
	return string(s)
}

type Product struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Title        string          `db:"title" json:"title"`
	Slug         string          `db:"slug" json:"slug"`
	Description  string          `db:"description" json:"description"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Images       StringList      `db:"images" json:"images"`
	Designer     string          `db:"designer" json:"designer"`
	Era          string          `db:"era" json:"era"`
	Condition    string          `db:"condition" json:"condition"`
	Materials    string          `db:"materials" json:"materials"`
	Measurements string          `db:"measurements" json:"measurements"`
	Category     string          `db:"category" json:"category"`
	Status       ProductStatus   `db:"status" json:"status"`
	Featured     bool            `db:"featured" json:"featured"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Available reports whether the product can still be sold.
func (p *Product) Available() bool {
	return p.Status == ProductAvailable
}

// Snapshot freezes the fields a cart line needs to render without another lookup.
func (p *Product) Snapshot() ProductSnapshot {
	var image string
	if len(p.Images) > 0 {
		image = p.Images[0]
	}
	return ProductSnapshot{
		ID:       p.ID,
		Title:    p.Title,
		Slug:     p.Slug,
		Designer: p.Designer,
		Price:    p.Price,
		Image:    image,
	}
}

// StringList is stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func scanJSON(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
