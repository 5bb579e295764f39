package grid

import (
	"context"
	"errors"
)

// Drain runs eff synchronously against ds, applying every result and the
// follow-up work it produces until nothing is left. Timers fire immediately.
// It is meant for headless callers; interactive callers run requests
// concurrently and apply results from their event loop.
func (g *Grid) Drain(ctx context.Context, ds DataSource, eff Effects) error {
	var errs []error
	queue := []Effects{eff}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		for _, req := range cur.Pages {
			res := req.Run(ctx, ds)
			if res.Err != nil {
				errs = append(errs, res.Err)
			}
			queue = append(queue, g.ApplyPage(res))
		}
		for _, req := range cur.Commits {
			res := req.Run(ctx, ds)
			if res.Err != nil {
				errs = append(errs, res.Err)
			}
			queue = append(queue, g.ApplyCommit(res))
		}
		for _, req := range cur.Creates {
			res := req.Run(ctx, ds)
			if res.Err != nil {
				errs = append(errs, res.Err)
			}
			queue = append(queue, g.ApplyRows(res))
		}
		for _, req := range cur.Columns {
			res := req.Run(ctx, ds)
			if res.Err != nil {
				errs = append(errs, res.Err)
			}
			queue = append(queue, g.ApplyColumn(res))
		}
		if cur.Debounce != nil {
			queue = append(queue, g.SearchDue(*cur.Debounce))
		}
		if cur.Linger != nil {
			g.LingerDone(*cur.Linger)
		}
	}
	return errors.Join(errs...)
}

// LoadPage synchronously fetches the next page of the rendered stream
// without consulting the scroll trigger. It reports whether more pages
// remain.
func (g *Grid) LoadPage(ctx context.Context, ds DataSource) (bool, error) {
	key := g.shown
	req, ok := g.pages.RequestNext(key)
	if !ok {
		return false, nil
	}
	res := req.Run(ctx, ds)
	g.applyPage(res, false)
	if res.Err != nil {
		return false, res.Err
	}
	return g.pages.HasMore(key), nil
}

// LoadAll pages through the rendered stream until at least want rows are
// loaded or the stream is exhausted. want <= 0 loads everything.
func (g *Grid) LoadAll(ctx context.Context, ds DataSource, want int) error {
	for want <= 0 || g.pages.Len(g.shown) < want {
		more, err := g.LoadPage(ctx, ds)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// SearchNow runs a search for term immediately, skipping the debounce.
func (g *Grid) SearchNow(ctx context.Context, ds DataSource, term string) error {
	return g.Drain(ctx, ds, g.SetSearch(term))
}
