package documents

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbridge/internal/core/apperror"
	"stockbridge/internal/core/params"
	"stockbridge/internal/domain/doctype"
	"stockbridge/internal/domain/owner"
	"stockbridge/internal/domain/warehouse"
)

// fakeRemote records every call in order.
type fakeRemote struct {
	mu sync.Mutex

	rows      []ProductRow
	listErr   error
	docID     int64
	addErr    map[int64]error // by product id
	conducted bool
	onCreate  func()

	calls   []string
	created []NewDocument
	added   []DocumentRow
	deleted []int64
}

func (f *fakeRemote) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeRemote) ListProductRows(_ context.Context, _ owner.TypeShort, _ int64) ([]ProductRow, error) {
	f.record("list")
	return f.rows, f.listErr
}

func (f *fakeRemote) CreateDocument(_ context.Context, doc NewDocument) (int64, error) {
	f.record("create")
	f.mu.Lock()
	f.created = append(f.created, doc)
	f.mu.Unlock()
	if f.onCreate != nil {
		f.onCreate()
	}
	return f.docID, nil
}

func (f *fakeRemote) AddDocumentRow(_ context.Context, row DocumentRow) error {
	f.record("add")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.addErr[row.ProductID]; err != nil {
		return err
	}
	f.added = append(f.added, row)
	return nil
}

func (f *fakeRemote) ConductDocument(_ context.Context, _ int64) (bool, error) {
	f.record("conduct")
	return f.conducted, nil
}

func (f *fakeRemote) DeleteDocument(_ context.Context, docID int64) error {
	f.record("delete")
	f.mu.Lock()
	f.deleted = append(f.deleted, docID)
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) mutations() []string {
	var out []string
	for _, c := range f.calls {
		if c != "list" {
			out = append(out, c)
		}
	}
	return out
}

type fakeStores struct {
	calls  int
	result warehouse.Stores
	err    error
	query  warehouse.TransferQuery
}

func (f *fakeStores) ResolveTransferStores(_ context.Context, q warehouse.TransferQuery) (warehouse.Stores, error) {
	f.calls++
	f.query = q
	return f.result, f.err
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func twoRows() []ProductRow {
	return []ProductRow{
		{ProductID: 1, Quantity: qty("3")},
		{ProductID: 2, Quantity: qty("0")},
	}
}

func newTestService(remote *fakeRemote, stores *fakeStores, cfg Config) *Service {
	fixed := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	return NewService(remote, stores, owner.NewResolver(1038), cfg, WithClock(func() time.Time { return fixed }))
}

func mustRequest(t *testing.T, p params.Values) Request {
	t.Helper()
	req, err := RequestFromParams(p)
	require.NoError(t, err)
	return req
}

func TestProcess_DryRunPreview(t *testing.T) {
	remote := &fakeRemote{rows: twoRows()}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	out, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "storeId": "7", "dryRun": "true", "ownerType": "DEAL",
	}))
	require.NoError(t, err)
	require.True(t, out.IsDryRun())

	p := out.Preview
	assert.True(t, p.OK)
	assert.Equal(t, owner.Deal, p.OwnerTypeShort)
	assert.Equal(t, doctype.Receipt, p.DocType)
	assert.Equal(t, int64(1), p.ResponsibleID)
	assert.Equal(t, "RUB", p.Currency)
	assert.Equal(t, []PreviewRow{{ProductID: 1, Quantity: "3"}}, p.Rows)
	assert.Equal(t, 1, p.RowsSkipped)
	require.NotNil(t, p.Stores.StoreTo)
	assert.Equal(t, int64(7), *p.Stores.StoreTo)
	assert.Nil(t, p.Stores.StoreFrom)
	assert.Empty(t, remote.mutations())

	body, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"storeTo":7}`, string(mustField(t, body, "stores")))
}

func mustField(t *testing.T, body []byte, name string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return m[name]
}

func TestProcess_FullRun(t *testing.T) {
	remote := &fakeRemote{rows: twoRows(), docID: 555, conducted: true}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	out, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "storeId": "7", "type": "D",
	}))
	require.NoError(t, err)
	require.False(t, out.IsDryRun())

	assert.Equal(t, &Result{OK: true, DocID: 555, Conducted: true, RowsAdded: 1, RowsSkipped: 1}, out.Result)
	assert.Equal(t, []string{"create", "add", "conduct"}, remote.mutations())

	require.Len(t, remote.created, 1)
	doc := remote.created[0]
	assert.Equal(t, doctype.Receipt, doc.DocType)
	assert.Equal(t, int64(1), doc.ResponsibleID)
	assert.Equal(t, "RUB", doc.Currency)
	assert.Equal(t, "Receipt for DEAL #42", doc.Title)

	require.Len(t, remote.added, 1)
	assert.Equal(t, int64(555), remote.added[0].DocID)
	assert.Equal(t, int64(1), remote.added[0].ProductID)
	assert.Equal(t, int64(7), remote.added[0].StoreTo)
	assert.Zero(t, remote.added[0].StoreFrom)

	body, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"docId":555,"conducted":true,"rowsAdded":1,"rowsSkipped":1}`, string(body))
}

func TestProcess_ConductDisabled(t *testing.T) {
	remote := &fakeRemote{rows: twoRows(), docID: 9, conducted: true}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	out, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "d", "storeFrom": "3", "type": "D", "conduct": "N",
	}))
	require.NoError(t, err)
	assert.False(t, out.Result.Conducted)
	assert.Equal(t, []string{"create", "add"}, remote.mutations())
	assert.Equal(t, int64(3), remote.added[0].StoreFrom)
	assert.Zero(t, remote.added[0].StoreTo)
}

func TestProcess_CancelledAfterCreateReportsNoRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remote := &fakeRemote{rows: twoRows(), docID: 555, conducted: true, onCreate: cancel}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	out, err := svc.Process(ctx, mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "storeId": "7", "type": "D",
	}))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, remote.added)
	assert.Equal(t, []string{"create"}, remote.mutations())
}

func TestProcess_EmptyRowsIsNotFound(t *testing.T) {
	remote := &fakeRemote{}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	_, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "storeId": "7", "spaId": "1038",
	}))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNotFound, appErr.Code)
	assert.Equal(t, int64(42), appErr.Details["elemId"])
	assert.Equal(t, owner.TypeShort("DYNAMIC_1038"), appErr.Details["ownerTypeShort"])
	assert.Equal(t, []string{"list"}, remote.calls)
}

func TestProcess_ReceiptWithoutDestinationMakesNoCalls(t *testing.T) {
	remote := &fakeRemote{rows: twoRows()}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	_, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "type": "D",
	}))
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Empty(t, remote.calls)
}

func TestProcess_RequiredFields(t *testing.T) {
	remote := &fakeRemote{rows: twoRows()}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	for _, p := range []params.Values{
		{"docType": "S", "type": "D", "storeId": "1"},
		{"elemId": "42", "type": "D", "storeId": "1"},
		{"elemId": "abc", "docType": "S", "type": "D", "storeId": "1"},
		{"elemId": "42", "docType": "X", "type": "D", "storeId": "1"},
		{"elemId": "42", "docType": "S", "storeId": "1"},
	} {
		_, err := svc.Process(context.Background(), mustRequest(t, p))
		assert.True(t, apperror.IsValidation(err), "%v", p)
	}
	assert.Empty(t, remote.calls)
}

func TestProcess_TransferWithBothStoresSkipsResolver(t *testing.T) {
	remote := &fakeRemote{rows: twoRows(), docID: 1, conducted: true}
	stores := &fakeStores{}
	svc := newTestService(remote, stores, DefaultConfig())

	_, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "M", "storeFrom": "1", "storeTo": "2", "type": "D",
	}))
	require.NoError(t, err)
	assert.Zero(t, stores.calls)
	assert.Equal(t, int64(1), remote.added[0].StoreFrom)
	assert.Equal(t, int64(2), remote.added[0].StoreTo)
}

func TestProcess_TransferResolvesMissingSide(t *testing.T) {
	remote := &fakeRemote{rows: twoRows(), docID: 1, conducted: true}
	stores := &fakeStores{result: warehouse.Stores{From: 1, To: 12}}
	svc := newTestService(remote, stores, DefaultConfig())

	_, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "M", "storeFrom": "1", "type": "T", "typeId": "31", "storeToField": "ufCrmTarget",
	}))
	require.NoError(t, err)
	require.Equal(t, 1, stores.calls)
	assert.Equal(t, owner.TypeShort("DYNAMIC_31"), stores.query.Owner)
	assert.Equal(t, int64(42), stores.query.EntityID)
	assert.Equal(t, int64(1), stores.query.From)
	assert.Zero(t, stores.query.To)
	assert.Equal(t, "ufCrmTarget", stores.query.ToField)
	assert.Equal(t, int64(12), remote.added[0].StoreTo)
}

func TestProcess_TransferResolverErrorStopsBeforeCreate(t *testing.T) {
	remote := &fakeRemote{rows: twoRows()}
	stores := &fakeStores{err: apperror.NewValidation("transfer requires both stores, unresolved: storeTo")}
	svc := newTestService(remote, stores, DefaultConfig())

	_, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "M", "storeFrom": "1", "type": "D",
	}))
	assert.True(t, apperror.IsValidation(err))
	assert.Empty(t, remote.mutations())
}

func TestProcess_InvalidStoreValue(t *testing.T) {
	remote := &fakeRemote{rows: twoRows()}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	_, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "storeTo": "-5", "type": "D",
	}))
	assert.True(t, apperror.IsValidation(err))
	assert.Empty(t, remote.mutations())
}

func manyRows() []ProductRow {
	return []ProductRow{
		{ProductID: 1, Quantity: qty("1")},
		{ProductID: 2, Quantity: qty("2.5")},
		{ProductID: 3, Quantity: qty("1")},
	}
}

func TestProcess_FailFastAttachmentSkipsConduct(t *testing.T) {
	boom := apperror.NewRemoteCall("catalog.document.element.add", "ERROR_CORE", "row refused")
	remote := &fakeRemote{rows: manyRows(), docID: 77, conducted: true, addErr: map[int64]error{2: boom}}
	svc := newTestService(remote, &fakeStores{}, DefaultConfig())

	_, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "storeId": "7", "type": "D",
	}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.NotContains(t, remote.calls, "conduct")
	assert.NotContains(t, remote.calls, "delete")
}

func TestProcess_FailFastRollback(t *testing.T) {
	boom := apperror.NewRemoteCall("catalog.document.element.add", "ERROR_CORE", "row refused")
	remote := &fakeRemote{rows: manyRows(), docID: 77, addErr: map[int64]error{1: boom}}
	cfg := DefaultConfig()
	cfg.RollbackOnFailure = true
	svc := newTestService(remote, &fakeStores{}, cfg)

	_, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "storeId": "7", "type": "D",
	}))
	require.Error(t, err)
	assert.Equal(t, []int64{77}, remote.deleted)
	assert.Equal(t, "delete", remote.calls[len(remote.calls)-1])
}

func TestProcess_BestEffortReportsFailedRows(t *testing.T) {
	boom := errors.New("row refused")
	remote := &fakeRemote{rows: manyRows(), docID: 77, conducted: true, addErr: map[int64]error{3: boom}}
	cfg := DefaultConfig()
	cfg.AttachMode = BestEffort
	svc := newTestService(remote, &fakeStores{}, cfg)

	out, err := svc.Process(context.Background(), mustRequest(t, params.Values{
		"elemId": "42", "docType": "S", "storeId": "7", "type": "D",
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Result.RowsAdded)
	assert.False(t, out.Result.Conducted)
	assert.Equal(t, []RowFailure{{ProductID: 3, Error: "row refused"}}, out.Result.FailedRows)
	assert.NotContains(t, remote.calls, "conduct")
}

func TestRequestFromParams(t *testing.T) {
	req, err := RequestFromParams(params.Values{
		"ELEM_ID": "5", "DOC_TYPE": "m", "STORE_FROM": "1", "storeToField": "ufX", "SITE_ID": "s1", "dry_run": "1",
	})
	require.NoError(t, err)
	assert.Equal(t, "5", req.ElemID)
	assert.Equal(t, "m", req.DocType)
	assert.Equal(t, "1", req.Stores.StoreFrom)
	assert.Equal(t, "ufX", req.StoreToField)
	assert.Equal(t, "s1", req.SiteID)
	assert.True(t, req.DryRun)
	assert.True(t, req.Conduct)

	_, err = RequestFromParams(params.Values{"conduct": "sometimes"})
	assert.True(t, apperror.IsValidation(err))
}
