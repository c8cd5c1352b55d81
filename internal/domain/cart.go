package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the per-user staging area. Items are owned values without identity
// of their own; totals are derived and recomputed after every mutation.
type Cart struct {
	ID            string     `bson:"_id,omitempty" json:"id"`
	UserID        string     `bson:"user_id" json:"userId"`
	Items         []CartItem `bson:"items" json:"items"`
	TotalQuantity int        `bson:"total_quantity" json:"totalQuantity"`
	TotalAmount   float64    `bson:"total_amount" json:"totalAmount"`
	CreatedAt     time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updatedAt"`
	// Version counts stored writes and guards them against lost updates.
	Version       int64      `bson:"version" json:"version"`
}

type CartItem struct {
	ProductID string    `bson:"product_id" json:"productId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Price     float64   `bson:"price" json:"price"` // unit price at the time the line was added
	AddedAt   time.Time `bson:"added_at" json:"addedAt"`
}

func NewCart(userID string) *Cart {
	now := time.Now()
	return &Cart{
		UserID:    userID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Find returns the index of the line for productID, or -1.
func (c *Cart) Find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// QuantityOf returns how many units of productID are already in the cart.
func (c *Cart) QuantityOf(productID string) int {
	if i := c.Find(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// Add sums quantities for an existing line, otherwise appends a new line
// snapshotting price.
func (c *Cart) Add(productID string, quantity int, price float64) {
	if i := c.Find(productID); i >= 0 {
		c.Items[i].Quantity += quantity
	} else {
		c.Items = append(c.Items, CartItem{
			ProductID: productID,
			Quantity:  quantity,
			Price:     price,
			AddedAt:   time.Now(),
		})
	}
	c.Recalculate()
}

// SetQuantity overwrites the quantity of an existing line; zero removes it.
// It reports false when the line does not exist.
func (c *Cart) SetQuantity(productID string, quantity int) bool {
	i := c.Find(productID)
	if i < 0 {
		return false
	}
	if quantity == 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = quantity
	}
	c.Recalculate()
	return true
}

// Remove drops the line for productID and reports whether it existed.
func (c *Cart) Remove(productID string) bool {
	return c.SetQuantity(productID, 0)
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.Recalculate()
}

// CheckoutKey identifies this exact stored state of the cart.
func (c *Cart) CheckoutKey() string {
	return fmt.Sprintf("%s:%d", c.ID, c.Version)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Recalculate derives TotalQuantity and TotalAmount from the lines.
func (c *Cart) Recalculate() {
	qty := 0
	amount := decimal.Zero
	for _, item := range c.Items {
		qty += item.Quantity
		amount = amount.Add(LineTotal(item.Price, item.Quantity))
	}
	c.TotalQuantity = qty
	c.TotalAmount = amount.InexactFloat64()
	c.UpdatedAt = time.Now()
}

func LineTotal(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}
