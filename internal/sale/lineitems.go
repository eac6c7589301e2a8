package sale

import (
	"slices"

	"pos_console/internal/posapi"
)

type Direction int

const (
	Increase Direction = iota + 1
	Decrease
)

func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "unknown"
	}
}

// LineItems is an ordered list of {product, quantity} pairs with at most one entry per
// product and no entry at quantity zero.
type LineItems struct {
	items []posapi.LineItem
}

// Change applies one step in direction d and returns the resulting quantity. A decrease
// on quantity 1 removes the entry; a decrease on an absent product does nothing.
func (l *LineItems) Change(productID int64, d Direction) int {
	i := l.index(productID)
	switch d {
	case Increase:
		if i < 0 {
			l.items = append(l.items, posapi.LineItem{ProductID: productID, Quantity: 1})
			return 1
		}
		l.items[i].Quantity++
		return l.items[i].Quantity
	case Decrease:
		if i < 0 {
			return 0
		}
		if l.items[i].Quantity <= 1 {
			l.items = slices.Delete(l.items, i, i+1)
			return 0
		}
		l.items[i].Quantity--
		return l.items[i].Quantity
	}
	return l.Quantity(productID)
}

func (l *LineItems) Quantity(productID int64) int {
	if i := l.index(productID); i >= 0 {
		return l.items[i].Quantity
	}
	return 0
}

func (l *LineItems) Items() []posapi.LineItem {
	return slices.Clone(l.items)
}

func (l *LineItems) Len() int {
	return len(l.items)
}

func (l *LineItems) Reset() {
	l.items = nil
}

func (l *LineItems) index(productID int64) int {
	return slices.IndexFunc(l.items, func(it posapi.LineItem) bool { return it.ProductID == productID })
}
