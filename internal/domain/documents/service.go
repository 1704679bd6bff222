package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockbridge/internal/core/apperror"
	"stockbridge/internal/core/params"
	"stockbridge/internal/domain/doctype"
	"stockbridge/internal/domain/owner"
	"stockbridge/internal/domain/warehouse"
	"stockbridge/pkg/logger"
)

// Config holds pipeline settings.
type Config struct {
	ResponsibleID     int64
	Currency          string
	AttachMode        AttachMode
	AttachConcurrency int

	// RollbackOnFailure deletes the created document when a fail-fast attachment fails.
	RollbackOnFailure bool
}

// DefaultConfig returns the settings the service runs with when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ResponsibleID:     1,
		Currency:          "RUB",
		AttachMode:        FailFast,
		AttachConcurrency: 8,
	}
}

// Service runs the document pipeline.
type Service struct {
	remote   Remote
	stores   StoreResolver
	owners   owner.Resolver
	cfg      Config
	now      func() time.Time
	recorder Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the document creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a new document pipeline.
func NewService(remote Remote, stores StoreResolver, owners owner.Resolver, cfg Config, opts ...Option) *Service {
	s := &Service{
		remote:   remote,
		stores:   stores,
		owners:   owners,
		cfg:      cfg,
		now:      time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// prepared is a request after validation and row collection.
type prepared struct {
	elemID       int64
	ownerType    owner.TypeShort
	entityTypeID int
	docType      doctype.Code
	stores       doctype.Stores
	rows         []ProductRow
	skipped      int
}

// Process runs the pipeline for one request. Every error is returned unchanged.
func (s *Service) Process(ctx context.Context, req Request) (*Outcome, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.DryRun {
		s.recorder.DocumentProcessed(string(p.docType), "dry_run")
		logger.Info(ctx, "dry run preview built",
			"elem_id", p.elemID,
			"owner_type", p.ownerType,
			"doc_type", p.docType,
			"rows", len(p.rows),
			"rows_skipped", p.skipped)
		return &Outcome{Preview: s.preview(p)}, nil
	}

	result, err := s.execute(ctx, p, req)
	if err != nil {
		s.recorder.DocumentProcessed(string(p.docType), "failed")
		return nil, err
	}
	if result.Conducted {
		s.recorder.DocumentProcessed(string(p.docType), "conducted")
	} else {
		s.recorder.DocumentProcessed(string(p.docType), "created")
	}
	return &Outcome{Result: result}, nil
}

func (s *Service) prepare(ctx context.Context, req Request) (*prepared, error) {
	if req.ElemID == "" || req.DocType == "" {
		return nil, apperror.NewValidation("elemId and docType are required")
	}
	elemID, err := params.ParsePositiveInt(req.ElemID)
	if err != nil {
		return nil, apperror.NewValidationf("invalid elemId: %v", err).WithDetail("elemId", req.ElemID)
	}

	ownerType, err := s.owners.Resolve(req.Owner)
	if err != nil {
		return nil, err
	}
	entityTypeID, ok := owner.EntityTypeIDFromOwnerShort(ownerType)
	if !ok {
		return nil, apperror.NewValidationf("cannot derive entity type id from owner type %q", ownerType)
	}

	docType, err := doctype.MapDocType(req.DocType)
	if err != nil {
		return nil, err
	}
	if err := doctype.CheckStores(docType, req.Stores); err != nil {
		return nil, err
	}

	rows, err := s.remote.ListProductRows(ctx, ownerType, elemID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.NewNotFound("product rows", elemID).
			WithDetail("elemId", elemID).
			WithDetail("ownerTypeShort", ownerType)
	}

	stores, err := s.resolveStores(ctx, docType, ownerType, elemID, req)
	if err != nil {
		return nil, err
	}

	p := &prepared{
		elemID:       elemID,
		ownerType:    ownerType,
		entityTypeID: entityTypeID,
		docType:      docType,
		stores:       stores,
	}
	for _, row := range rows {
		if !row.Valid() {
			p.skipped++
			continue
		}
		p.rows = append(p.rows, row)
	}
	return p, nil
}

func (s *Service) resolveStores(ctx context.Context, docType doctype.Code, ownerType owner.TypeShort, elemID int64, req Request) (doctype.Stores, error) {
	generic, err := parseStore("storeId", req.Stores.StoreID)
	if err != nil {
		return doctype.Stores{}, err
	}
	from, err := parseStore("storeFrom", req.Stores.StoreFrom)
	if err != nil {
		return doctype.Stores{}, err
	}
	to, err := parseStore("storeTo", req.Stores.StoreTo)
	if err != nil {
		return doctype.Stores{}, err
	}

	stores := doctype.Assign(docType, from, to, generic)
	if docType != doctype.Transfer || stores.Complete(docType) {
		return stores, nil
	}

	resolved, err := s.stores.ResolveTransferStores(ctx, warehouse.TransferQuery{
		Owner:     ownerType,
		EntityID:  elemID,
		From:      stores.From,
		To:        stores.To,
		FromField: req.StoreFromField,
		ToField:   req.StoreToField,
		RawFrom:   req.Stores.StoreFrom,
		RawTo:     req.Stores.StoreTo,
	})
	if err != nil {
		return doctype.Stores{}, err
	}
	return doctype.Stores{From: resolved.From, To: resolved.To}, nil
}

func (s *Service) preview(p *prepared) *Preview {
	rows := make([]PreviewRow, 0, len(p.rows))
	for _, row := range p.rows {
		rows = append(rows, PreviewRow{ProductID: row.ProductID, Quantity: json.Number(row.Quantity.String())})
	}
	return &Preview{
		OK:             true,
		DryRun:         true,
		OwnerTypeShort: p.ownerType,
		EntityTypeID:   p.entityTypeID,
		ElemID:         p.elemID,
		DocType:        p.docType,
		ResponsibleID:  s.cfg.ResponsibleID,
		Currency:       s.cfg.Currency,
		Rows:           rows,
		RowsSkipped:    p.skipped,
		Stores:         storesView(p.docType, p.stores),
	}
}

func (s *Service) execute(ctx context.Context, p *prepared, req Request) (*Result, error) {
	docID, err := s.remote.CreateDocument(ctx, NewDocument{
		DocType:       p.docType,
		Title:         fmt.Sprintf("%s for %s #%d", p.docType.Kind(), p.ownerType, p.elemID),
		ResponsibleID: s.cfg.ResponsibleID,
		Currency:      s.cfg.Currency,
		CreatedAt:     s.now(),
		SiteID:        req.SiteID,
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "warehouse document created",
		"doc_id", docID,
		"doc_type", p.docType,
		"owner_type", p.ownerType,
		"elem_id", p.elemID)

	rows := make([]DocumentRow, 0, len(p.rows))
	for _, row := range p.rows {
		dr := DocumentRow{DocID: docID, ProductID: row.ProductID, Quantity: row.Quantity}
		if p.docType.UsesStoreFrom() {
			dr.StoreFrom = p.stores.From
		}
		if p.docType.UsesStoreTo() {
			dr.StoreTo = p.stores.To
		}
		rows = append(rows, dr)
	}

	batch := AttachBatch{Remote: s.remote, Mode: s.cfg.AttachMode, Limit: s.cfg.AttachConcurrency}
	outcomes, err := batch.Run(ctx, rows)
	s.recorder.RowsObserved("skipped", p.skipped)
	if err != nil {
		s.recorder.RowsObserved("failed", 1)
		logger.Error(ctx, "row attachment failed, document left incomplete",
			"doc_id", docID,
			"error", err)
		s.compensate(ctx, docID)
		return nil, err
	}

	result := &Result{OK: true, DocID: docID, RowsSkipped: p.skipped}
	for _, o := range outcomes {
		if !o.Sent {
			continue
		}
		if o.Err != nil {
			result.FailedRows = append(result.FailedRows, RowFailure{ProductID: o.Row.ProductID, Error: o.Err.Error()})
			continue
		}
		result.RowsAdded++
	}
	s.recorder.RowsObserved("attached", result.RowsAdded)

	if len(result.FailedRows) > 0 {
		s.recorder.RowsObserved("failed", len(result.FailedRows))
		logger.Warn(ctx, "document has failed rows, commit skipped",
			"doc_id", docID,
			"failed_rows", len(result.FailedRows))
		return result, nil
	}

	if req.Conduct {
		conducted, err := s.remote.ConductDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		result.Conducted = conducted
		logger.Info(ctx, "warehouse document conducted", "doc_id", docID, "conducted", conducted)
	}

	return result, nil
}

// compensate deletes a half-populated document when configured to.
// A failed delete is logged; the caller still gets the attachment error.
func (s *Service) compensate(ctx context.Context, docID int64) {
	if !s.cfg.RollbackOnFailure {
		return
	}
	if err := s.remote.DeleteDocument(ctx, docID); err != nil {
		logger.Error(ctx, "document rollback failed", "doc_id", docID, "error", err)
		return
	}
	logger.Warn(ctx, "document rolled back after attachment failure", "doc_id", docID)
}
