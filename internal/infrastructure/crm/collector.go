package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"stockbridge/internal/core/apperror"
)

// CursorParam is the paging parameter sent with list calls.
const CursorParam = "start"

// Caller performs one envelope-returning call. *Client implements it.
type Caller interface {
	Do(ctx context.Context, method string, params map[string]any) (*Envelope, error)
}

// CollectAll pages through a list method, starting at cursor zero and following
// "next" until a response omits it. Items keep remote order. A cursor that does
// not advance is reported as an invalid response instead of looping.
func CollectAll[T any](ctx context.Context, c Caller, method string, base map[string]any, itemsField string) ([]T, error) {
	var (
		out    []T
		cursor int64
	)
	for {
		p := maps.Clone(base)
		if p == nil {
			p = make(map[string]any, 1)
		}
		p[CursorParam] = cursor

		env, err := c.Do(ctx, method, p)
		if err != nil {
			return nil, err
		}

		items, err := decodeItems[T](env.Result, itemsField)
		if err != nil {
			return nil, apperror.NewRemoteCall(method, CodeInvalidResponse, err.Error())
		}
		out = append(out, items...)

		if env.Next == "" {
			return out, nil
		}
		next, err := env.Next.Int64()
		if err != nil {
			return nil, apperror.NewRemoteCall(method, CodeInvalidResponse,
				fmt.Sprintf("invalid next cursor %q", env.Next))
		}
		if next <= cursor {
			return nil, apperror.NewRemoteCall(method, CodeInvalidResponse,
				fmt.Sprintf("next cursor %d does not advance past %d", next, cursor))
		}
		cursor = next
	}
}

// decodeItems reads the array at field, or the result itself when field is empty.
// Numbers are kept as json.Number.
func decodeItems[T any](result json.RawMessage, field string) ([]T, error) {
	raw := result
	if field != "" {
		var obj map[string]json.RawMessage
		if err := decodeNumbers(result, &obj); err != nil {
			return nil, fmt.Errorf("result is not an object: %w", err)
		}
		raw = obj[field]
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []T
	if err := decodeNumbers(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %q items: %w", field, err)
	}
	return items, nil
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
