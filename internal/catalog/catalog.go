// Package catalog owns product identity and pricing.
package catalog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeFunc is notified with the full product list after every change.
type ChangeFunc func(products []domain.Product)

// Catalog is an ordered, concurrency-safe set of products.
type Catalog struct {
	mu       sync.RWMutex
	products []domain.Product
	onChange []ChangeFunc
	newID    func() string
}

// New creates a catalog holding products in the given order.
func New(products []domain.Product) *Catalog {
	return &Catalog{
		products: append([]domain.Product(nil), products...),
		newID:    uuid.NewString,
	}
}

// OnChange registers fn to run after each mutation, outside the lock.
func (c *Catalog) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// List returns a copy of all products.
func (c *Catalog) List() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Product(nil), c.products...)
}

// Get returns the product with id.
func (c *Catalog) Get(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// Add validates p, assigns an ID when missing and appends it.
func (c *Catalog) Add(p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validate(p.Name, p.UnitPrice); err != nil {
		return domain.Product{}, fmt.Errorf("Add: %w", err)
	}
	if p.InitialStock < 0 || p.ReorderThreshold < 0 {
		return domain.Product{}, fmt.Errorf("Add: %w", domain.ErrInvalidQuantity)
	}

	c.mu.Lock()
	if p.ID == "" {
		p.ID = c.newID()
	}
	for _, existing := range c.products {
		if existing.ID == p.ID {
			c.mu.Unlock()
			return domain.Product{}, fmt.Errorf("Add: %w: duplicate product id %s", domain.ErrInput, p.ID)
		}
	}
	c.products = append(c.products, p)
	c.mu.Unlock()

	c.notify()
	return p, nil
}

// Update changes the name and price of an existing product. Its ID stays fixed.
func (c *Catalog) Update(id, name string, price decimal.Decimal) (domain.Product, error) {
	name = strings.TrimSpace(name)
	if err := validate(name, price); err != nil {
		return domain.Product{}, fmt.Errorf("Update: %w", err)
	}

	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return domain.Product{}, fmt.Errorf("Update: %w: %s", domain.ErrUnknownProduct, id)
	}
	c.products[i].Name = name
	c.products[i].UnitPrice = price
	p := c.products[i]
	c.mu.Unlock()

	c.notify()
	return p, nil
}

// Remove deletes a product. Historical transactions keep their snapshots.
func (c *Catalog) Remove(id string) error {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("Remove: %w: %s", domain.ErrUnknownProduct, id)
	}
	c.products = append(c.products[:i], c.products[i+1:]...)
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Catalog) indexOf(id string) int {
	for i, p := range c.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) notify() {
	c.mu.RLock()
	products := append([]domain.Product(nil), c.products...)
	hooks := append([]ChangeFunc(nil), c.onChange...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(products)
	}
}

func validate(name string, price decimal.Decimal) error {
	if name == "" {
		return domain.ErrInvalidName
	}
	if !price.IsPositive() {
		return domain.ErrInvalidPrice
	}
	return nil
}
