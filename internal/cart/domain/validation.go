package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type IssueKind string

const (
	IssueEmpty        IssueKind = "empty"
	IssueRemoved      IssueKind = "removed"
	IssueUnavailable  IssueKind = "unavailable"
	IssuePriceChanged IssueKind = "price_changed"
)

type Issue struct {
	Kind       IssueKind `json:"kind"`
	ItemID     string    `json:"itemId,omitempty"`
	MenuItemID string    `json:"menuItemId,omitempty"`
	Message    string    `json:"message"`
}

// Validation is advisory: it reports what would block checkout without
// touching the cart.
type Validation struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

func (v Validation) Errors() []string {
	out := make([]string, 0, len(v.Issues))
	for _, is := range v.Issues {
		out = append(out, is.Message)
	}
	return out
}

func EmptyCartIssue() Issue {
	return Issue{Kind: IssueEmpty, Message: "cart is empty"}
}

func RemovedIssue(it Item) Issue {
	return Issue{
		Kind:       IssueRemoved,
		ItemID:     it.ID,
		MenuItemID: it.MenuItemID,
		Message:    fmt.Sprintf("%q is no longer on the menu", it.Name),
	}
}

func UnavailableIssue(it Item) Issue {
	return Issue{
		Kind:       IssueUnavailable,
		ItemID:     it.ID,
		MenuItemID: it.MenuItemID,
		Message:    fmt.Sprintf("%q is currently unavailable", it.Name),
	}
}

func PriceChangedIssue(it Item, livePriceCents int64) Issue {
	return Issue{
		Kind:       IssuePriceChanged,
		ItemID:     it.ID,
		MenuItemID: it.MenuItemID,
		Message: fmt.Sprintf("price of %q changed from %s to %s",
			it.Name, FormatCents(it.UnitPriceCents), FormatCents(livePriceCents)),
	}
}

// FormatCents renders minor units as a major-unit amount, e.g. 1000 -> "10.00".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// InvalidError is returned by checkout when validation fails. It carries every
// user-facing problem so the cart can be corrected in one pass.
type InvalidError struct {
	Issues []Issue
}

var ErrCartInvalid = errors.New("cart is invalid")

func (e *InvalidError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.Message)
	}
	return "cart is invalid: " + strings.Join(msgs, "; ")
}

func (e *InvalidError) Is(target error) bool { return target == ErrCartInvalid }
