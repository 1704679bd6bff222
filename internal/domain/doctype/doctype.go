// Package doctype maps inbound document-type codes to warehouse movement kinds
// and enforces which store fields each kind needs.
package doctype

import (
	"strings"

	"stockbridge/internal/core/apperror"
)

// Code is a warehouse document type understood by the CRM catalog.
type Code string

const (
	Receipt  Code = "S" // store adjustment: goods arrive at storeTo
	Transfer Code = "M" // moving: storeFrom -> storeTo
	Writeoff Code = "D" // deduct: goods leave storeFrom
)

// MapDocType validates raw (case-insensitively) against the supported codes.
func MapDocType(raw string) (Code, error) {
	// Single ASCII byte only: ToUpper folds some non-ASCII runes onto S.
	if len(raw) == 1 {
		switch c := Code(strings.ToUpper(raw)); c {
		case Receipt, Transfer, Writeoff:
			return c, nil
		}
	}
	return "", apperror.NewValidationf("invalid docType %q, expected one of S (receipt), M (transfer), D (write-off)", raw).
		WithDetail("docType", raw)
}

// Kind returns a human-readable name of the movement.
func (c Code) Kind() string {
	switch c {
	case Receipt:
		return "Receipt"
	case Transfer:
		return "Transfer"
	case Writeoff:
		return "Write-off"
	}
	return "Document"
}

// UsesStoreFrom reports whether rows of this type carry a source store.
func (c Code) UsesStoreFrom() bool { return c == Transfer || c == Writeoff }

// UsesStoreTo reports whether rows of this type carry a destination store.
func (c Code) UsesStoreTo() bool { return c == Transfer || c == Receipt }

// StoreInput holds the raw store parameters exactly as the caller sent them.
type StoreInput struct {
	StoreID   string // generic store, stands in for the single side of Receipt/Writeoff
	StoreFrom string
	StoreTo   string
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// CheckStores enforces per-type store requirements on raw input.
// Transfer sides may still be filled from the entity record, so only
// Receipt and Writeoff are decided here.
func CheckStores(c Code, in StoreInput) error {
	switch c {
	case Receipt:
		if !blank(in.StoreFrom) {
			return apperror.NewValidation("storeFrom is not allowed for docType S (receipt)").
				WithDetail("storeFrom", in.StoreFrom)
		}
		if blank(in.StoreTo) && blank(in.StoreID) {
			return apperror.NewValidation("storeTo (or storeId) is required for docType S (receipt)")
		}
	case Writeoff:
		if !blank(in.StoreTo) {
			return apperror.NewValidation("storeTo is not allowed for docType D (write-off)").
				WithDetail("storeTo", in.StoreTo)
		}
		if blank(in.StoreFrom) && blank(in.StoreID) {
			return apperror.NewValidation("storeFrom (or storeId) is required for docType D (write-off)")
		}
	case Transfer:
	default:
		return apperror.NewValidationf("unsupported docType %q", string(c))
	}
	return nil
}

// Stores is the store assignment of a document; zero means unset.
type Stores struct {
	From int64
	To   int64
}

// Assign picks the store ids relevant to c. The generic store fills the
// single side of Receipt and Writeoff; Transfer uses explicit sides only.
func Assign(c Code, from, to, generic int64) Stores {
	switch c {
	case Receipt:
		if to == 0 {
			to = generic
		}
		return Stores{To: to}
	case Writeoff:
		if from == 0 {
			from = generic
		}
		return Stores{From: from}
	}
	return Stores{From: from, To: to}
}

// Complete reports whether every side c needs is set.
func (s Stores) Complete(c Code) bool {
	if c.UsesStoreFrom() && s.From <= 0 {
		return false
	}
	if c.UsesStoreTo() && s.To <= 0 {
		return false
	}
	return true
}
