// Package owner resolves which CRM entity category owns a set of product rows.
package owner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"stockbridge/internal/core/apperror"
	"stockbridge/internal/core/params"
)

// TypeShort is the canonical owner type: either Deal or a smart-process marker "DYNAMIC_<n>".
type TypeShort string

const (
	// Deal is the owner type of CRM deals.
	Deal TypeShort = "DEAL"

	// DealEntityTypeID is the CRM entity type id of deals.
	DealEntityTypeID = 2

	smartProcessPrefix = "DYNAMIC"
	separator          = "_"
)

// Legacy single-letter entity types.
const (
	LegacyDeal         = "D"
	LegacySmartProcess = "T"
)

var smartProcessPattern = regexp.MustCompile(`^` + smartProcessPrefix + separator + `([1-9][0-9]*)$`)

// BuildSmartProcess returns the marker for smart-process type n.
func BuildSmartProcess(n int) (TypeShort, error) {
	if n <= 0 {
		return "", apperror.NewValidationf("smart-process type id must be positive, got %d", n)
	}
	return TypeShort(smartProcessPrefix + separator + strconv.Itoa(n)), nil
}

// IsDeal reports whether t is the deal marker.
func (t TypeShort) IsDeal() bool { return t == Deal }

// String implements fmt.Stringer.
func (t TypeShort) String() string { return string(t) }

// EntityTypeIDFromOwnerShort maps an owner type to its numeric CRM entity type id.
// ok is false when t carries no parsable id; callers must not issue remote calls then.
func EntityTypeIDFromOwnerShort(t TypeShort) (id int, ok bool) {
	if t.IsDeal() {
		return DealEntityTypeID, true
	}
	m := smartProcessPattern.FindStringSubmatch(string(t))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Descriptor is the caller-supplied description of the owning entity.
// Any field may be blank.
type Descriptor struct {
	Explicit       string // ownerType: "DEAL" or "DYNAMIC_<n>"
	SmartProcessID string // raw numeric smart-process type id
	LegacyType     string // "D" or "T"
	LegacySubID    string // smart-process type id used with LegacyType "T"
}

// Accepted parameter names, first non-empty wins.
var (
	ExplicitParams       = []string{"ownerType", "ownerTypeShort", "OWNER_TYPE"}
	SmartProcessIDParams = []string{"spaId", "smartProcessId", "entityTypeId", "SPA_ID"}
	LegacyTypeParams     = []string{"type", "TYPE"}
	LegacySubIDParams    = []string{"typeId", "subId", "TYPE_ID"}
)

// DescriptorFromParams collects a Descriptor from a flat parameter set.
func DescriptorFromParams(p params.Values) Descriptor {
	return Descriptor{
		Explicit:       p.Get(ExplicitParams...),
		SmartProcessID: p.Get(SmartProcessIDParams...),
		LegacyType:     p.Get(LegacyTypeParams...),
		LegacySubID:    p.Get(LegacySubIDParams...),
	}
}

// Resolver turns descriptors into canonical owner types.
type Resolver struct {
	// DefaultSmartProcessTypeID is used for legacy "T" descriptors without a sub id.
	DefaultSmartProcessTypeID int
}

// NewResolver creates a resolver with the given default smart-process type.
func NewResolver(defaultSmartProcessTypeID int) Resolver {
	return Resolver{DefaultSmartProcessTypeID: defaultSmartProcessTypeID}
}

// Resolve applies, in order: explicit owner type, smart-process id, legacy type.
func (r Resolver) Resolve(d Descriptor) (TypeShort, error) {
	if explicit := strings.TrimSpace(d.Explicit); explicit != "" {
		return normalizeExplicit(explicit)
	}

	if raw := strings.TrimSpace(d.SmartProcessID); raw != "" {
		n, err := parseTypeID(raw)
		if err != nil {
			return "", apperror.NewValidationf("invalid smart-process id %q: %v", raw, err)
		}
		return BuildSmartProcess(n)
	}

	if legacy := strings.ToUpper(strings.TrimSpace(d.LegacyType)); legacy != "" {
		switch legacy {
		case LegacyDeal:
			return Deal, nil
		case LegacySmartProcess:
			n := r.DefaultSmartProcessTypeID
			if raw := strings.TrimSpace(d.LegacySubID); raw != "" {
				parsed, err := parseTypeID(raw)
				if err != nil {
					return "", apperror.NewValidationf("invalid smart-process sub id %q: %v", raw, err)
				}
				n = parsed
			}
			return BuildSmartProcess(n)
		default:
			return "", apperror.NewValidationf("unsupported entity type %q, expected %s or %s",
				d.LegacyType, LegacySmartProcess, LegacyDeal)
		}
	}

	return "", apperror.NewValidation("entity-type context required: pass ownerType, spaId or type")
}

func normalizeExplicit(raw string) (TypeShort, error) {
	t := TypeShort(strings.ToUpper(raw))
	if t.IsDeal() {
		return Deal, nil
	}
	if _, ok := EntityTypeIDFromOwnerShort(t); ok {
		return t, nil
	}
	return "", apperror.NewValidationf("invalid ownerType %q, expected %s or %s%s<id>",
		raw, Deal, smartProcessPrefix, separator)
}

func parseTypeID(raw string) (int, error) {
	n, err := params.ParsePositiveInt(raw)
	if err != nil {
		return 0, err
	}
	if n > int64(^uint32(0)>>1) {
		return 0, fmt.Errorf("%d is out of range", n)
	}
	return int(n), nil
}
