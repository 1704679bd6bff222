package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockbridge/internal/core/apperror"
	"stockbridge/internal/core/params"
	"stockbridge/internal/domain/documents"
	"stockbridge/internal/domain/owner"
	"stockbridge/internal/domain/warehouse"
)

// CRM REST methods.
const (
	MethodProductRowList = "crm.item.productrow.list"
	MethodItemGet        = "crm.item.get"
	MethodDocumentAdd    = "catalog.document.add"
	MethodElementAdd     = "catalog.document.element.add"
	MethodConduct        = "catalog.document.conduct"
	MethodDocumentDelete = "catalog.document.delete"
)

// Field names a product row may carry, in lookup order.
var (
	ProductIDFields = []string{"productId", "PRODUCT_ID"}
	QuantityFields  = []string{"quantity", "QUANTITY"}
)

// rpc is the part of *Client the gateway uses.
type rpc interface {
	Caller
	Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error)
}

// Gateway maps domain operations onto CRM methods.
type Gateway struct {
	client rpc
}

// NewGateway creates a gateway over client.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

var (
	_ documents.Remote       = (*Gateway)(nil)
	_ warehouse.EntityReader = (*Gateway)(nil)
)

// ListProductRows collects every product row of the entity.
// Rows with unreadable fields come back zero-valued and are skipped downstream.
func (g *Gateway) ListProductRows(ctx context.Context, ownerType owner.TypeShort, entityID int64) ([]documents.ProductRow, error) {
	raw, err := CollectAll[map[string]any](ctx, g.client, MethodProductRowList, map[string]any{
		"filter": map[string]any{
			"=ownerType": ownerType.String(),
			"=ownerId":   entityID,
		},
	}, "productRows")
	if err != nil {
		return nil, err
	}

	rows := make([]documents.ProductRow, 0, len(raw))
	for _, item := range raw {
		var row documents.ProductRow
		if v, ok := params.Field(item, ProductIDFields...); ok {
			row.ProductID, _ = params.ToInt64(v)
		}
		if v, ok := params.Field(item, QuantityFields...); ok {
			row.Quantity, _ = params.ToDecimal(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetEntityFields fetches one CRM item. A missing item yields no fields.
func (g *Gateway) GetEntityFields(ctx context.Context, entityTypeID int, entityID int64) (map[string]any, error) {
	result, err := g.client.Call(ctx, MethodItemGet, map[string]any{
		"entityTypeId": entityTypeID,
		"id":           entityID,
	})
	if err != nil {
		return nil, err
	}
	var body struct {
		Item map[string]any `json:"item"`
	}
	if err := decodeNumbers(result, &body); err != nil {
		return nil, apperror.NewRemoteCall(MethodItemGet, CodeInvalidResponse, err.Error())
	}
	if body.Item == nil {
		return map[string]any{}, nil
	}
	return body.Item, nil
}

// CreateDocument creates a warehouse document and returns its id.
func (g *Gateway) CreateDocument(ctx context.Context, doc documents.NewDocument) (int64, error) {
	fields := map[string]any{
		"docType":       string(doc.DocType),
		"title":         doc.Title,
		"responsibleId": doc.ResponsibleID,
		"currency":      doc.Currency,
		"dateCreate":    doc.CreatedAt.Format(time.RFC3339),
	}
	if doc.SiteID != "" {
		fields["siteId"] = doc.SiteID
	}

	result, err := g.client.Call(ctx, MethodDocumentAdd, map[string]any{"fields": fields})
	if err != nil {
		return 0, err
	}
	var body struct {
		Document struct {
			ID any `json:"id"`
		} `json:"document"`
	}
	if err := decodeNumbers(result, &body); err != nil {
		return 0, apperror.NewRemoteCall(MethodDocumentAdd, CodeInvalidResponse, err.Error())
	}
	id, ok := params.ToPositiveInt64(body.Document.ID)
	if !ok {
		return 0, apperror.NewRemoteCall(MethodDocumentAdd, CodeInvalidResponse,
			fmt.Sprintf("document id %v is not a positive integer", body.Document.ID))
	}
	return id, nil
}

// AddDocumentRow attaches one row. Zero stores are not sent.
func (g *Gateway) AddDocumentRow(ctx context.Context, row documents.DocumentRow) error {
	fields := map[string]any{
		"docId":     row.DocID,
		"elementId": row.ProductID,
		"amount":    json.Number(row.Quantity.String()),
	}
	if row.StoreFrom > 0 {
		fields["storeFrom"] = row.StoreFrom
	}
	if row.StoreTo > 0 {
		fields["storeTo"] = row.StoreTo
	}
	_, err := g.client.Call(ctx, MethodElementAdd, map[string]any{"fields": fields})
	return err
}

// ConductDocument commits the document and reports the remote verdict.
func (g *Gateway) ConductDocument(ctx context.Context, docID int64) (bool, error) {
	result, err := g.client.Call(ctx, MethodConduct, map[string]any{"id": docID})
	if err != nil {
		return false, err
	}
	return decodeVerdict(MethodConduct, result)
}

// DeleteDocument removes a document.
func (g *Gateway) DeleteDocument(ctx context.Context, docID int64) error {
	_, err := g.client.Call(ctx, MethodDocumentDelete, map[string]any{"id": docID})
	return err
}

// decodeVerdict accepts a JSON boolean or a flag string such as "Y".
func decodeVerdict(method string, result json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(result, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(result, &s); err == nil {
		if v, err := params.ParseBool(s, false); err == nil {
			return v, nil
		}
	}
	return false, apperror.NewRemoteCall(method, CodeInvalidResponse,
		fmt.Sprintf("unexpected result %s", string(result)))
}
