// Package raster is a software rendering surface: it applies a scene tree
// to an RGBA pixel buffer and captures immutable snapshots of it. It
// implements the surface contract the frame prerenderer consumes.
package raster

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/frameloom-labs/frameloom/internal/scene"
)

// Surface is a fixed-size pixel surface. Each component instance gets its
// own surface, so distinct components can render concurrently; a single
// surface is applied and captured strictly sequentially.
type Surface struct {
	mu  sync.Mutex
	img *image.RGBA
}

// New creates a surface with the given pixel dimensions.
func New(width, height int) *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Apply clears the surface and paints the scene tree. It returns only
// after the tree is fully applied, which is the render-settle point a
// caller must wait for before capturing.
func (s *Surface) Apply(_ context.Context, root *scene.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
	if root == nil {
		return nil
	}
	s.paint(root, 0, 0)
	return nil
}

// Capture returns an immutable copy of the surface's current pixels.
func (s *Surface) Capture(_ context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out, nil
}

// Close releases the surface.
func (s *Surface) Close() error {
	return nil
}

// paint draws one node and its children with the given translation.
func (s *Surface) paint(n *scene.Node, dx, dy float64) {
	switch n.Type {
	case "frame":
		if fill, ok := ParseColor(n.String("fill", "")); ok {
			draw.Draw(s.img, s.img.Bounds(), image.NewUniform(fill), image.Point{}, draw.Over)
		}
	case "group":
		dx += n.Float("x", 0)
		dy += n.Float("y", 0)
	case "rect":
		s.fillRect(
			n.Float("x", 0)+dx, n.Float("y", 0)+dy,
			n.Float("width", 0), n.Float("height", 0),
			n.String("fill", "#ffffff"), n.Float("opacity", 1))
	case "circle":
		s.fillCircle(
			n.Float("cx", 0)+dx, n.Float("cy", 0)+dy,
			n.Float("r", 0),
			n.String("fill", "#ffffff"), n.Float("opacity", 1))
	case "text":
		// Glyph rendering needs a font stack the core does not carry; text
		// paints as a baseline bar so layout remains visible in exports.
		size := n.Float("size", 16)
		width := float64(len(n.String("content", ""))) * size * 0.6
		s.fillRect(
			n.Float("x", 0)+dx, n.Float("y", 0)+dy+size*0.9,
			width, size*0.1,
			n.String("fill", "#ffffff"), n.Float("opacity", 1))
	}

	for _, child := range n.Children {
		s.paint(child, dx, dy)
	}
}

func (s *Surface) fillRect(x, y, w, h float64, fill string, opacity float64) {
	c, ok := ParseColor(fill)
	if !ok || w <= 0 || h <= 0 {
		return
	}
	c = withOpacity(c, opacity)
	r := image.Rect(int(x), int(y), int(x+w), int(y+h)).Intersect(s.img.Bounds())
	draw.Draw(s.img, r, image.NewUniform(c), image.Point{}, draw.Over)
}

func (s *Surface) fillCircle(cx, cy, radius float64, fill string, opacity float64) {
	c, ok := ParseColor(fill)
	if !ok || radius <= 0 {
		return
	}
	c = withOpacity(c, opacity)
	uniform := image.NewUniform(c)
	bounds := image.Rect(int(cx-radius), int(cy-radius), int(cx+radius)+1, int(cy+radius)+1).Intersect(s.img.Bounds())
	r2 := radius * radius
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			fx := float64(x) + 0.5 - cx
			fy := float64(y) + 0.5 - cy
			if fx*fx+fy*fy <= r2 {
				draw.Draw(s.img, image.Rect(x, y, x+1, y+1), uniform, image.Point{}, draw.Over)
			}
		}
	}
}

func withOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	if opacity >= 1 {
		return c
	}
	if opacity < 0 {
		opacity = 0
	}
	c.A = uint8(float64(c.A) * opacity)
	return c
}
