// Package domain holds the catalog entities shared by validation, storage and transport.
package domain

import (
	"github.com/google/uuid"
)

// Category is one of the fixed catalog categories.
type Category string

const (
	CategoryElectronics    Category = "Electronics"
	CategoryHomeAppliances Category = "Home Appliances"
	CategoryBooks          Category = "Books"
	CategoryFashion        Category = "Fashion"
	CategoryToys           Category = "Toys"
	CategoryFurniture      Category = "Furniture"
	CategoryGroceries      Category = "Groceries"
	CategoryFitness        Category = "Fitness"
	CategoryBeauty         Category = "Beauty"
	CategoryAutomotive     Category = "Automotive"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryElectronics,
	CategoryHomeAppliances,
	CategoryBooks,
	CategoryFashion,
	CategoryToys,
	CategoryFurniture,
	CategoryGroceries,
	CategoryFitness,
	CategoryBeauty,
	CategoryAutomotive,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product is a single catalog entry. ID is assigned by the client and never changes.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Category    Category  `json:"category"`
}

// Key returns the canonical string form of the product ID used as the storage key.
func (p Product) Key() string {
	return p.ID.String()
}

// ProductPatch is a partial update. A nil field means "leave unchanged".
type ProductPatch struct {
	ID          *uuid.UUID
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int
	Category    *Category
}

// IsEmpty reports whether the patch carries no field at all.
func (p ProductPatch) IsEmpty() bool {
	return p.ID == nil && p.Name == nil && p.Description == nil &&
		p.Price == nil && p.Quantity == nil && p.Category == nil
}

// Apply returns a copy of product with every present patch field overwritten.
// The ID is never taken from the patch.
func (p ProductPatch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Quantity != nil {
		product.Quantity = *p.Quantity
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	return product
}
