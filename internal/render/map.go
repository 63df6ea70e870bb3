package render

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
)

// DefaultParallelism bounds concurrent layer fetches of one map.
const DefaultParallelism = 8

// Map composes layers bottom to top. Layers are fetched concurrently and
// drawn in slice order.
type Map struct {
	Layers      []*Layer
	Background  color.Color
	Parallelism int
}

func (m *Map) Render(ctx context.Context, vp model.Viewport) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, vp.Size.Width, vp.Size.Height))
	if m.Background != nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(m.Background), image.Point{}, draw.Src)
	}

	bodies := make([][]byte, len(m.Layers))
	g, gctx := errgroup.WithContext(ctx)
	limit := m.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	g.SetLimit(limit)
	for i, l := range m.Layers {
		g.Go(func() error {
			body, err := l.fetch(gctx, vp)
			if err != nil {
				return l.fail(gctx, err)
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, l := range m.Layers {
		if bodies[i] == nil {
			continue
		}
		if err := l.compositor().Draw(canvas, bodies[i]); err != nil {
			if ferr := l.fail(ctx, err); ferr != nil {
				return nil, ferr
			}
			continue
		}
		observability.IncRenderLayer("ok")
	}
	return canvas, nil
}
