package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/vizqa/internal/chart"
)

const canvasKey = "vizqa.canvas"

// canvas collects figures for one run. plt.show/savefig finalize the open
// figure; anything still open when the script ends is finalized too.
type canvas struct {
	max  int
	done []*chart.Figure
	open *openFigure
}

// openFigure is a figure being drawn. Each subplot becomes its own
// chart.Figure when finalized.
type openFigure struct {
	axes     []*chart.Figure
	cur      int
	suptitle string
}

func newCanvas(max int) *canvas { return &canvas{max: max} }

func canvasOf(thread *starlark.Thread) (*canvas, error) {
	c, ok := thread.Local(canvasKey).(*canvas)
	if !ok || c == nil {
		return nil, fmt.Errorf("plotting is not available in this context")
	}
	return c, nil
}

// newFigure finalizes the open figure and starts a new one with n axes.
func (c *canvas) newFigure(n, width, height int) (*openFigure, error) {
	if err := c.flush(); err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}
	if n > c.max {
		return nil, fmt.Errorf("too many subplots (limit %d)", c.max)
	}
	of := &openFigure{axes: make([]*chart.Figure, n)}
	for i := range of.axes {
		of.axes[i] = &chart.Figure{Width: width, Height: height}
	}
	c.open = of
	return of, nil
}

// axes returns the current axes, creating a figure when none is open.
func (c *canvas) axes() (*chart.Figure, error) {
	if c.open == nil {
		if _, err := c.newFigure(1, 0, 0); err != nil {
			return nil, err
		}
	}
	return c.open.axes[c.open.cur], nil
}

// flush moves the open figure's non-empty axes to the finished list.
func (c *canvas) flush() error {
	if c.open == nil {
		return nil
	}
	of := c.open
	c.open = nil
	for _, ax := range of.axes {
		if ax.Empty() {
			continue
		}
		if ax.Title == "" {
			ax.Title = of.suptitle
		}
		if len(c.done) >= c.max {
			return fmt.Errorf("too many figures (limit %d)", c.max)
		}
		c.done = append(c.done, ax)
	}
	return nil
}

// discard drops the open figure without keeping it.
func (c *canvas) discard() { c.open = nil }

func (c *canvas) finish() ([]*chart.Figure, error) {
	if err := c.flush(); err != nil {
		return nil, err
	}
	return c.done, nil
}
