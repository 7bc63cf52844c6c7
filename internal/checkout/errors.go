package checkout

import "fmt"

// ValidationError covers malformed or missing request fields. Always the
// client's fault, never retried automatically.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// ProductError covers business-rule rejections of a specific cart line.
type ProductError struct {
	ProductID string
	Reason    ProductErrorReason
	Requested int
	Available int
}

type ProductErrorReason string

const (
	ProductNotFound   ProductErrorReason = "not_found"
	ProductInactive   ProductErrorReason = "inactive"
	InsufficientStock ProductErrorReason = "insufficient_stock"
)

func (e *ProductError) Error() string {
	switch e.Reason {
	case ProductNotFound:
		return fmt.Sprintf("product %s not found", e.ProductID)
	case ProductInactive:
		return fmt.Sprintf("product %s is not available", e.ProductID)
	case InsufficientStock:
		return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
			e.ProductID, e.Requested, e.Available)
	default:
		return fmt.Sprintf("product %s rejected", e.ProductID)
	}
}
