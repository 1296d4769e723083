package render

// Camera returns the top-left world coordinate of a viewW×viewH view
// following (x, y). The view is clamped to the world, so near an edge the
// followed point is no longer centered.
func Camera(x, y, viewW, viewH, worldW, worldH float64) (float64, float64) {
	return axis(x, viewW, worldW), axis(y, viewH, worldH)
}

func axis(p, view, world float64) float64 {
	c := p - view/2
	if limit := world - view; c > limit {
		c = limit
	}
	if c < 0 {
		c = 0
	}
	return c
}

// Visible reports whether a point at screen position (sx, sy) lies inside
// the viewport grown by margin on every side.
func Visible(sx, sy, viewW, viewH, margin float64) bool {
	return sx >= -margin && sy >= -margin && sx <= viewW+margin && sy <= viewH+margin
}
