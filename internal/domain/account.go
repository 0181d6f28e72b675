package domain

import "fmt"

// Account is a fixed-priority monetary category. The declaration order
// is the payment-application priority: fees are settled before taxes,
// taxes before premiums. Sorting and greedy allocation both rely on it.
type Account int

const (
	AccountInstallmentFee Account = iota
	AccountNSFFee
	AccountPolicyFee
	AccountPremiumTax
	AccountMunicipalTax
	AccountMainPremium
	AccountCompanionPremium
)

var accountNames = map[Account]string{
	AccountInstallmentFee:   "installment_fee",
	AccountNSFFee:           "nsf_fee",
	AccountPolicyFee:        "policy_fee",
	AccountPremiumTax:       "premium_tax",
	AccountMunicipalTax:     "municipal_tax",
	AccountMainPremium:      "main_premium",
	AccountCompanionPremium: "companion_premium",
}

func (a Account) String() string {
	if name, ok := accountNames[a]; ok {
		return name
	}
	return fmt.Sprintf("account(%d)", int(a))
}

// Valid reports whether a is one of the declared accounts.
func (a Account) Valid() bool {
	_, ok := accountNames[a]
	return ok
}

// ParseAccount maps a wire name to an Account. Unknown names are
// rejected here so the ledger never sees an unvalidated category.
func ParseAccount(s string) (Account, error) {
	for a, name := range accountNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown account %q", s)
}

// ItemType classifies a line item as premium, fee or tax.
type ItemType int

const (
	ItemTypePremium ItemType = iota
	ItemTypeFee
	ItemTypeTax
)

var itemTypeNames = map[ItemType]string{
	ItemTypePremium: "premium",
	ItemTypeFee:     "fee",
	ItemTypeTax:     "tax",
}

func (t ItemType) String() string {
	if name, ok := itemTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("item_type(%d)", int(t))
}

func (t ItemType) Valid() bool {
	_, ok := itemTypeNames[t]
	return ok
}

func ParseItemType(s string) (ItemType, error) {
	for t, name := range itemTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown item type %q", s)
}
