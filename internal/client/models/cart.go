package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/tradeclub/internal/common"
)

// ItemKey identifies a cart line: the same product in two sizes is two
// lines, and a product without a size is distinct from any sized variant.
type ItemKey struct {
	ProductID string
	Size      *string
}

func (k ItemKey) Equal(o ItemKey) bool {
	if k.ProductID != o.ProductID {
		return false
	}
	if k.Size == nil || o.Size == nil {
		return k.Size == nil && o.Size == nil
	}
	return *k.Size == *o.Size
}

func (k ItemKey) String() string {
	if k.Size == nil {
		return k.ProductID + "/-"
	}
	return k.ProductID + "/" + *k.Size
}

// LineItem is one cart entry.
type LineItem struct {
	ProductID string  `json:"productId"`
	Size      *string `json:"size"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
}

func (i LineItem) Key() ItemKey {
	return ItemKey{ProductID: i.ProductID, Size: i.Size}
}

func (i LineItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Clone copies the item so the size pointer is not shared.
func (i LineItem) Clone() LineItem {
	if i.Size != nil {
		s := *i.Size
		i.Size = &s
	}
	return i
}

func EncodeItems(items []LineItem) ([]byte, error) {
	return json.Marshal(items)
}

// DecodeItems parses a persisted cart. A nil record is an empty cart.
func DecodeItems(b []byte) ([]LineItem, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	var items []LineItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	return items, nil
}

// Size is a convenience for building optional sizes.
func Size(s string) *string {
	return &s
}
