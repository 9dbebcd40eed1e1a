// Package catalog holds the returnable items and the category filter used
// by the item picker.
package catalog

import "strings"

// Category is a top-level grouping shown in the category picker
type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Item is a returnable product tagged with exactly one category
type Item struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

// Catalog is the full set of categories and items
type Catalog struct {
	Categories []Category `json:"categories"`
	Items      []Item     `json:"items"`
}

// Default returns the built-in product catalog
func Default() *Catalog {
	return &Catalog{
		Categories: []Category{
			{Value: "electronics", Label: "Electronics"},
			{Value: "furniture", Label: "Furniture"},
			{Value: "appliances", Label: "Appliances"},
			{Value: "kitchen", Label: "Kitchen"},
		},
		Items: []Item{
			{Value: "Iphone", Label: "Iphone", Category: "electronics"},
			{Value: "Watch", Label: "Watch", Category: "electronics"},
			{Value: "Camera", Label: "Camera", Category: "electronics"},
			{Value: "Laptop", Label: "Laptop", Category: "electronics"},
			{Value: "Table", Label: "Table", Category: "furniture"},
			{Value: "Chair", Label: "Chair", Category: "furniture"},
			{Value: "Refrigerator", Label: "Refrigerator", Category: "appliances"},
			{Value: "Microwave", Label: "Microwave", Category: "appliances"},
			{Value: "Oven", Label: "Oven", Category: "kitchen"},
			{Value: "Dishwasher", Label: "Dishwasher", Category: "kitchen"},
		},
	}
}

// Filter returns the items whose category matches, in catalog order.
// The result is never nil: an empty slice means no items are available.
func Filter(items []Item, category string) []Item {
	filtered := make([]Item, 0)
	for _, item := range items {
		if item.Category == category {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Search narrows items to those whose value or label contains the query,
// ignoring case. An empty query returns every item.
func Search(items []Item, query string) []Item {
	query = strings.ToLower(strings.TrimSpace(query))
	matched := make([]Item, 0, len(items))
	for _, item := range items {
		if query == "" ||
			strings.Contains(strings.ToLower(item.Value), query) ||
			strings.Contains(strings.ToLower(item.Label), query) {
			matched = append(matched, item)
		}
	}
	return matched
}

// SearchCategories narrows categories the same way Search narrows items
func SearchCategories(categories []Category, query string) []Category {
	query = strings.ToLower(strings.TrimSpace(query))
	matched := make([]Category, 0, len(categories))
	for _, c := range categories {
		if query == "" ||
			strings.Contains(strings.ToLower(c.Value), query) ||
			strings.Contains(strings.ToLower(c.Label), query) {
			matched = append(matched, c)
		}
	}
	return matched
}

// Contains reports whether value names one of the items
func Contains(items []Item, value string) bool {
	for _, item := range items {
		if item.Value == value {
			return true
		}
	}
	return false
}

// ItemsIn returns the catalog items for a category
func (c *Catalog) ItemsIn(category string) []Item {
	return Filter(c.Items, category)
}
