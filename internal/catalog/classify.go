// Package catalog holds presentation helpers for product listings.
package catalog

import "strings"

const (
	CategoryTire      = "BAN"
	CategorySparePart = "SPAREPART"
	CategoryFluid     = "CAIRAN"
	CategoryInnerTube = "BAN_DALAM"
	CategoryOil       = "OLI"
)

var Categories = []string{CategoryTire, CategorySparePart, CategoryFluid, CategoryInnerTube, CategoryOil}

func IsCategory(value string) bool {
	for _, c := range Categories {
		if c == value {
			return true
		}
	}
	return false
}

// Classify buckets a product for display. Rules are checked in order and the
// first match wins; anything unmatched is a tire.
func Classify(brand, name, productType string) string {
	brand = strings.ToLower(strings.TrimSpace(brand))
	name = strings.ToLower(strings.TrimSpace(name))
	productType = strings.ToLower(strings.TrimSpace(productType))

	switch {
	case brand == "oli" || productType == "oli":
		return CategoryOil
	case brand == "disc pad" || brand == "disc" || productType == "sparepart":
		return CategorySparePart
	case brand == "iml" || brand == "cairan" || strings.Contains(name, "cairan") || productType == "cairan":
		return CategoryFluid
	case brand == "ban dalam" || strings.Contains(name, "ban dalam") || strings.Contains(name, "tube") || strings.HasPrefix(productType, "tr"):
		return CategoryInnerTube
	default:
		return CategoryTire
	}
}
