package documents

import (
	"stockbridge/internal/core/apperror"
	"stockbridge/internal/core/params"
	"stockbridge/internal/domain/doctype"
	"stockbridge/internal/domain/owner"
)

// Accepted parameter names, first non-empty wins.
var (
	ElemIDParams         = []string{"elemId", "elementId", "ELEM_ID", "entityId"}
	DocTypeParams        = []string{"docType", "DOC_TYPE"}
	StoreIDParams        = []string{"storeId", "STORE_ID"}
	StoreFromParams      = []string{"storeFrom", "STORE_FROM"}
	StoreToParams        = []string{"storeTo", "STORE_TO"}
	StoreFromFieldParams = []string{"storeFromField", "STORE_FROM_FIELD"}
	StoreToFieldParams   = []string{"storeToField", "STORE_TO_FIELD"}
	ConductParams        = []string{"conduct", "CONDUCT"}
	DryRunParams         = []string{"dryRun", "dry_run", "DRY_RUN"}
	SiteIDParams         = []string{"siteId", "SITE_ID"}
)

// Request is a document-processing request with raw caller values.
type Request struct {
	ElemID  string
	DocType string
	Owner   owner.Descriptor
	Stores  doctype.StoreInput

	StoreFromField string
	StoreToField   string

	Conduct bool
	DryRun  bool
	SiteID  string
}

// RequestFromParams reads a request from a flat parameter set.
// conduct defaults to true, dryRun to false.
func RequestFromParams(p params.Values) (Request, error) {
	conduct, err := params.ParseBool(p.Get(ConductParams...), true)
	if err != nil {
		return Request{}, apperror.NewValidationf("invalid conduct flag: %v", err)
	}
	dryRun, err := params.ParseBool(p.Get(DryRunParams...), false)
	if err != nil {
		return Request{}, apperror.NewValidationf("invalid dryRun flag: %v", err)
	}

	return Request{
		ElemID:  p.Get(ElemIDParams...),
		DocType: p.Get(DocTypeParams...),
		Owner:   owner.DescriptorFromParams(p),
		Stores: doctype.StoreInput{
			StoreID:   p.Get(StoreIDParams...),
			StoreFrom: p.Get(StoreFromParams...),
			StoreTo:   p.Get(StoreToParams...),
		},
		StoreFromField: p.Get(StoreFromFieldParams...),
		StoreToField:   p.Get(StoreToFieldParams...),
		Conduct:        conduct,
		DryRun:         dryRun,
		SiteID:         p.Get(SiteIDParams...),
	}, nil
}

// parseStore converts an optional raw store id; blank yields zero.
func parseStore(name, raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := params.ParsePositiveInt(raw)
	if err != nil {
		return 0, apperror.NewValidationf("invalid %s: %v", name, err).WithDetail(name, raw)
	}
	return id, nil
}
