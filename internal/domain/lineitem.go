package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// money rounds to 2 decimal places using round-half-to-even. Banker's
// rounding keeps thousands of cent-level postings from drifting upward
// over a policy's life.
func money(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// LineItem is a single category-tagged monetary entry. Its identity
// within a collection is (Account, ItemType); repeated postings to the
// same pair accumulate into one entry.
type LineItem struct {
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	ItemType       ItemType        `json:"item_type" db:"item_type"`
	Account        Account         `json:"account" db:"account"`
	WritingCompany string          `json:"writing_company" db:"writing_company"`
}

// LineItems is an account-ordered collection of line items with a
// running subtotal. Subtotal is maintained by applying the same rounded
// delta as each entry mutation, never by resumming, so a drifting entry
// cannot silently hide behind a recomputed total.
type LineItems struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Items    []LineItem      `json:"items"`
}

// NewLineItems builds a collection from the given items.
func NewLineItems(items ...LineItem) LineItems {
	var li LineItems
	li.AddMany(items)
	return li
}

func (li *LineItems) sortByAccount() {
	sort.SliceStable(li.Items, func(i, j int) bool {
		return li.Items[i].Account < li.Items[j].Account
	})
}

// find returns the index of the entry matching (account, itemType), or -1.
func (li *LineItems) find(account Account, itemType ItemType) int {
	for i := range li.Items {
		if li.Items[i].Account == account && li.Items[i].ItemType == itemType {
			return i
		}
	}
	return -1
}

// Add posts item into the collection, accumulating into an existing
// entry with the same (account, itemType) or appending a new one.
// A zero amount is a no-op.
func (li *LineItems) Add(item LineItem) {
	if item.Amount.IsZero() {
		return
	}
	delta := money(item.Amount)
	if i := li.find(item.Account, item.ItemType); i >= 0 {
		li.Items[i].Amount = money(li.Items[i].Amount.Add(delta))
	} else {
		item.Amount = delta
		li.Items = append(li.Items, item)
		li.sortByAccount()
	}
	li.Subtotal = money(li.Subtotal.Add(delta))
}

// Subtract is the sign-inverted mirror of Add. When no matching entry
// exists a negative entry is inserted.
func (li *LineItems) Subtract(item LineItem) {
	item.Amount = item.Amount.Neg()
	li.Add(item)
}

// AddMany posts every item in order.
func (li *LineItems) AddMany(items []LineItem) {
	for _, item := range items {
		li.Add(item)
	}
}

// SubtractMany subtracts every item in order.
func (li *LineItems) SubtractMany(items []LineItem) {
	for _, item := range items {
		li.Subtract(item)
	}
}

// Clear removes all entries and zeroes the subtotal.
func (li *LineItems) Clear() {
	li.Items = nil
	li.Subtotal = decimal.Zero
}

// NegateAll flips the sign of every entry and of the subtotal.
func (li *LineItems) NegateAll() {
	for i := range li.Items {
		li.Items[i].Amount = li.Items[i].Amount.Neg()
	}
	li.Subtotal = li.Subtotal.Neg()
}

// ReduceBy consumes amount from the entries in account order. An entry
// smaller than the remaining amount is zeroed and the shortfall carried
// forward; otherwise the entry absorbs the rest. Used to retract money
// already staged on an installment after a premium decrease.
func (li *LineItems) ReduceBy(amount decimal.Decimal) {
	remaining := money(amount)
	for i := range li.Items {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		entry := li.Items[i].Amount
		if remaining.GreaterThanOrEqual(entry) {
			li.Items[i].Amount = decimal.Zero
			li.Subtotal = money(li.Subtotal.Sub(entry))
			remaining = money(remaining.Sub(entry))
		} else {
			li.Items[i].Amount = money(entry.Sub(remaining))
			li.Subtotal = money(li.Subtotal.Sub(remaining))
			remaining = decimal.Zero
		}
	}
}

// TakePercentage derives a new collection where every non-zero entry
// contributes abs(amount) * pct / 100, rounded. The source is not
// modified.
func (li *LineItems) TakePercentage(pct decimal.Decimal) LineItems {
	var out LineItems
	hundred := decimal.NewFromInt(100)
	for _, item := range li.Items {
		if item.Amount.IsZero() {
			continue
		}
		share := item
		share.Amount = money(item.Amount.Abs().Mul(pct).Div(hundred))
		out.Add(share)
	}
	return out
}

// TotalsByType sums entries of the given item type, optionally
// restricted to specific accounts.
func (li *LineItems) TotalsByType(itemType ItemType, accounts ...Account) decimal.Decimal {
	total := decimal.Zero
	for _, item := range li.Items {
		if item.ItemType != itemType {
			continue
		}
		if len(accounts) > 0 {
			matched := false
			for _, a := range accounts {
				if item.Account == a {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		total = total.Add(item.Amount)
	}
	return money(total)
}
