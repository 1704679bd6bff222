// Package warehouse fills in missing transfer stores from the source entity record.
package warehouse

import (
	"context"
	"strings"

	"stockbridge/internal/core/apperror"
	"stockbridge/internal/core/params"
	"stockbridge/internal/domain/owner"
)

// Conventional entity fields holding transfer stores, tried in order.
var (
	DefaultFromFields = []string{"ufCrmStoreFrom", "UF_CRM_STORE_FROM", "storeFrom"}
	DefaultToFields   = []string{"ufCrmStoreTo", "UF_CRM_STORE_TO", "storeTo"}
)

// EntityReader loads the field map of a CRM entity.
type EntityReader interface {
	GetEntityFields(ctx context.Context, entityTypeID int, entityID int64) (map[string]any, error)
}

// TransferQuery describes a partially known transfer.
type TransferQuery struct {
	Owner    owner.TypeShort
	EntityID int64

	// Already known sides; zero means missing.
	From int64
	To   int64

	// Caller-chosen entity field names tried before the defaults.
	FromField string
	ToField   string

	// Raw caller input, echoed in errors.
	RawFrom string
	RawTo   string
}

// Stores is the resolved pair.
type Stores struct {
	From int64
	To   int64
}

// Resolver resolves transfer stores.
type Resolver struct {
	reader     EntityReader
	fromFields []string
	toFields   []string
}

// NewResolver creates a resolver reading entities through reader.
func NewResolver(reader EntityReader) *Resolver {
	return &Resolver{
		reader:     reader,
		fromFields: DefaultFromFields,
		toFields:   DefaultToFields,
	}
}

// ResolveTransferStores fetches the entity once and fills every missing side.
func (r *Resolver) ResolveTransferStores(ctx context.Context, q TransferQuery) (Stores, error) {
	if q.From > 0 && q.To > 0 {
		return Stores{From: q.From, To: q.To}, nil
	}

	entityTypeID, ok := owner.EntityTypeIDFromOwnerShort(q.Owner)
	if !ok {
		return Stores{}, apperror.NewValidationf("cannot derive entity type id from owner type %q", q.Owner)
	}

	fields, err := r.reader.GetEntityFields(ctx, entityTypeID, q.EntityID)
	if err != nil {
		return Stores{}, err
	}

	out := Stores{From: q.From, To: q.To}
	if out.From <= 0 {
		out.From = lookupStore(fields, q.FromField, r.fromFields)
	}
	if out.To <= 0 {
		out.To = lookupStore(fields, q.ToField, r.toFields)
	}

	var unresolved []string
	if out.From <= 0 {
		unresolved = append(unresolved, "storeFrom")
	}
	if out.To <= 0 {
		unresolved = append(unresolved, "storeTo")
	}
	if len(unresolved) > 0 {
		return Stores{}, apperror.NewValidationf("transfer requires both stores, unresolved: %s",
			strings.Join(unresolved, ", ")).
			WithDetail("unresolved", unresolved).
			WithDetail("input", map[string]any{
				"storeFrom":      q.RawFrom,
				"storeTo":        q.RawTo,
				"storeFromField": q.FromField,
				"storeToField":   q.ToField,
			}).
			WithDetail("ownerTypeShort", q.Owner).
			WithDetail("elemId", q.EntityID)
	}

	return out, nil
}

// lookupStore tries the override field first, then the defaults.
func lookupStore(fields map[string]any, override string, defaults []string) int64 {
	if override = strings.TrimSpace(override); override != "" {
		if v, ok := params.Field(fields, override); ok {
			if id, ok := params.ToPositiveInt64(v); ok {
				return id
			}
		}
	}
	for _, name := range defaults {
		v, ok := params.Field(fields, name)
		if !ok {
			continue
		}
		if id, ok := params.ToPositiveInt64(v); ok {
			return id
		}
	}
	return 0
}
