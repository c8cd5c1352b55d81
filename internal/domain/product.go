package domain

import "time"

// Product is owned by the catalog. The order pipeline only reads it and moves
// Stock through conditional increments and decrements.
type Product struct {
	ID        string    `bson:"_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Price     float64   `bson:"price" json:"price"`
	Stock     int       `bson:"stock" json:"stock"`
	IsActive  bool      `bson:"is_active" json:"isActive"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Available reports whether the product can be sold at all.
func (p *Product) Available() bool {
	return p != nil && p.IsActive
}
