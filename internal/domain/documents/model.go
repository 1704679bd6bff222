// Package documents turns CRM product rows into warehouse documents.
package documents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"stockbridge/internal/domain/doctype"
	"stockbridge/internal/domain/owner"
	"stockbridge/internal/domain/warehouse"
)

// ProductRow is one line item of a CRM entity.
type ProductRow struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// Valid reports whether the row may be submitted. Invalid rows are skipped silently.
func (r ProductRow) Valid() bool {
	return r.ProductID > 0 && r.Quantity.IsPositive()
}

// NewDocument is the payload of a remote document creation.
type NewDocument struct {
	DocType       doctype.Code
	Title         string
	ResponsibleID int64
	Currency      string
	CreatedAt     time.Time
	SiteID        string
}

// DocumentRow is the payload of one row attachment. Zero stores are omitted.
type DocumentRow struct {
	DocID     int64
	ProductID int64
	Quantity  decimal.Decimal
	StoreFrom int64
	StoreTo   int64
}

// Remote is the CRM surface the pipeline drives.
type Remote interface {
	ListProductRows(ctx context.Context, ownerType owner.TypeShort, entityID int64) ([]ProductRow, error)
	CreateDocument(ctx context.Context, doc NewDocument) (int64, error)
	AddDocumentRow(ctx context.Context, row DocumentRow) error
	ConductDocument(ctx context.Context, docID int64) (bool, error)
	DeleteDocument(ctx context.Context, docID int64) error
}

// StoreResolver fills missing transfer stores.
type StoreResolver interface {
	ResolveTransferStores(ctx context.Context, q warehouse.TransferQuery) (warehouse.Stores, error)
}

// Recorder receives pipeline metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	DocumentProcessed(docType, outcome string)
	RowsObserved(result string, n int)
}

type nopRecorder struct{}

func (nopRecorder) DocumentProcessed(string, string) {}
func (nopRecorder) RowsObserved(string, int)         {}

// Outcome is the result of Process: exactly one of Preview or Result is set.
type Outcome struct {
	Preview *Preview
	Result  *Result
}

// IsDryRun reports whether the outcome is a preview.
func (o Outcome) IsDryRun() bool { return o.Preview != nil }

// MarshalJSON renders whichever variant is set.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Preview != nil {
		return json.Marshal(o.Preview)
	}
	return json.Marshal(o.Result)
}

// PreviewRow is a row as it would be submitted.
type PreviewRow struct {
	ProductID int64       `json:"productId"`
	Quantity  json.Number `json:"quantity"`
}

// StoresView renders only the stores relevant to the document type.
type StoresView struct {
	StoreFrom *int64 `json:"storeFrom,omitempty"`
	StoreTo   *int64 `json:"storeTo,omitempty"`
}

// Preview is the dry-run outcome. Nothing was written remotely.
type Preview struct {
	OK             bool            `json:"ok"`
	DryRun         bool            `json:"dryRun"`
	OwnerTypeShort owner.TypeShort `json:"ownerTypeShort"`
	EntityTypeID   int             `json:"entityTypeId"`
	ElemID         int64           `json:"elemId"`
	DocType        doctype.Code    `json:"docType"`
	ResponsibleID  int64           `json:"responsibleId"`
	Currency       string          `json:"currency"`
	Rows           []PreviewRow    `json:"rows"`
	RowsSkipped    int             `json:"rowsSkipped"`
	Stores         StoresView      `json:"stores"`
}

// RowFailure describes a row that could not be attached.
type RowFailure struct {
	ProductID int64  `json:"productId"`
	Error     string `json:"error"`
}

// Result is the outcome of a real run.
type Result struct {
	OK          bool         `json:"ok"`
	DocID       int64        `json:"docId"`
	Conducted   bool         `json:"conducted"`
	RowsAdded   int          `json:"rowsAdded"`
	RowsSkipped int          `json:"rowsSkipped"`
	FailedRows  []RowFailure `json:"failedRows,omitempty"`
}

func storesView(code doctype.Code, s doctype.Stores) StoresView {
	var v StoresView
	if code.UsesStoreFrom() {
		from := s.From
		v.StoreFrom = &from
	}
	if code.UsesStoreTo() {
		to := s.To
		v.StoreTo = &to
	}
	return v
}
