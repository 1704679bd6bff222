package documents

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// AttachMode selects how row attachment failures are handled.
type AttachMode string

const (
	// FailFast aborts the request on the first failed attachment.
	// Rows not yet dispatched are not sent; rows in flight finish.
	FailFast AttachMode = "fail_fast"

	// BestEffort attempts every row and reports failures per row.
	BestEffort AttachMode = "best_effort"
)

// ParseAttachMode validates a configured mode.
func ParseAttachMode(s string) (AttachMode, error) {
	switch m := AttachMode(s); m {
	case FailFast, BestEffort:
		return m, nil
	case "":
		return FailFast, nil
	}
	return "", fmt.Errorf("unknown attach mode %q", s)
}

// RowOutcome is the result of one attachment. Sent is false for rows
// that were never dispatched because an earlier row failed.
type RowOutcome struct {
	Row  DocumentRow
	Sent bool
	Err  error
}

// AttachBatch dispatches row attachments concurrently, at most limit at a time.
type AttachBatch struct {
	Remote Remote
	Mode   AttachMode
	Limit  int
}

// Run attaches rows. In FailFast mode the first error is returned, and a
// cancelled ctx that left rows unsent is an error too. In BestEffort mode the
// error is always nil and failures live in the outcomes.
func (b AttachBatch) Run(ctx context.Context, rows []DocumentRow) ([]RowOutcome, error) {
	outcomes := make([]RowOutcome, len(rows))
	for i, row := range rows {
		outcomes[i].Row = row
	}

	limit := b.Limit
	if limit <= 0 {
		limit = len(rows)
	}

	if b.Mode == BestEffort {
		var g errgroup.Group
		g.SetLimit(limit)
		for i := range rows {
			g.Go(func() error {
				outcomes[i].Sent = true
				outcomes[i].Err = b.Remote.AddDocumentRow(ctx, rows[i])
				return nil
			})
		}
		_ = g.Wait()
		return outcomes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range rows {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcomes[i].Sent = true
			// In-flight calls run on ctx, not gctx.
			err := b.Remote.AddDocumentRow(ctx, rows[i])
			outcomes[i].Err = err
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	if n := unsent(outcomes); n > 0 {
		return outcomes, fmt.Errorf("attach rows: %d of %d not sent: %w", n, len(outcomes), context.Cause(gctx))
	}
	return outcomes, nil
}

func unsent(outcomes []RowOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Sent {
			n++
		}
	}
	return n
}
