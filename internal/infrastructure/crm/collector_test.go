package crm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbridge/internal/core/apperror"
)

// scriptedCaller answers calls with prepared envelopes and records the params sent.
type scriptedCaller struct {
	pages []*Envelope
	sent  []map[string]any
}

func (s *scriptedCaller) Do(_ context.Context, _ string, p map[string]any) (*Envelope, error) {
	s.sent = append(s.sent, p)
	if len(s.sent) > len(s.pages) {
		return nil, apperror.NewRemoteCall("test", "EXHAUSTED", "no more pages")
	}
	return s.pages[len(s.sent)-1], nil
}

func page(result, next string) *Envelope {
	return &Envelope{Result: json.RawMessage(result), Next: json.Number(next)}
}

type item struct {
	ID int `json:"id"`
}

func TestCollectAll_SinglePage(t *testing.T) {
	c := &scriptedCaller{pages: []*Envelope{page(`{"rows":[{"id":1},{"id":2}]}`, "")}}

	items, err := CollectAll[item](context.Background(), c, "list", map[string]any{"filter": "x"}, "rows")
	require.NoError(t, err)
	assert.Equal(t, []item{{1}, {2}}, items)
	require.Len(t, c.sent, 1)
	assert.Equal(t, int64(0), c.sent[0][CursorParam])
	assert.Equal(t, "x", c.sent[0]["filter"])
}

func TestCollectAll_FollowsCursorInOrder(t *testing.T) {
	c := &scriptedCaller{pages: []*Envelope{
		page(`{"rows":[{"id":1}]}`, "50"),
		page(`{"rows":[{"id":2}]}`, "100"),
		page(`{"rows":[{"id":3}]}`, ""),
	}}
	base := map[string]any{"filter": "x"}

	items, err := CollectAll[item](context.Background(), c, "list", base, "rows")
	require.NoError(t, err)
	assert.Equal(t, []item{{1}, {2}, {3}}, items)

	var cursors []any
	for _, p := range c.sent {
		cursors = append(cursors, p[CursorParam])
	}
	assert.Equal(t, []any{int64(0), int64(50), int64(100)}, cursors)
	assert.NotContains(t, base, CursorParam)
}

func TestCollectAll_MissingFieldIsEmpty(t *testing.T) {
	c := &scriptedCaller{pages: []*Envelope{page(`{"other":[]}`, "")}}

	items, err := CollectAll[item](context.Background(), c, "list", nil, "rows")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCollectAll_BareArrayResult(t *testing.T) {
	c := &scriptedCaller{pages: []*Envelope{page(`[{"id":9}]`, "")}}

	items, err := CollectAll[item](context.Background(), c, "list", nil, "")
	require.NoError(t, err)
	assert.Equal(t, []item{{9}}, items)
}

func TestCollectAll_StuckCursor(t *testing.T) {
	c := &scriptedCaller{pages: []*Envelope{
		page(`{"rows":[{"id":1}]}`, "50"),
		page(`{"rows":[{"id":1}]}`, "50"),
	}}

	_, err := CollectAll[item](context.Background(), c, "list", nil, "rows")
	require.Error(t, err)
	assert.True(t, apperror.IsRemoteCall(err))
	assert.Len(t, c.sent, 2)
}

func TestCollectAll_PropagatesError(t *testing.T) {
	c := &scriptedCaller{}

	_, err := CollectAll[item](context.Background(), c, "list", nil, "rows")
	assert.True(t, apperror.IsRemoteCall(err))
}
