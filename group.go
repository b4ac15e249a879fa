package catzilla

// Group is a set of sub-routes sharing a path prefix and an extra gas
// chain, grounded on air/group.go, generalized to Catzilla's
// Handler/Gas/router.Middleware types.
type Group struct {
	prefix   string
	gases    []Gas
	catzilla *Catzilla
}

// Use appends gases to the group's own chain, applied to every route
// registered on g, and to sub-groups created from g, after Use is called.
func (g *Group) Use(gases ...Gas) {
	g.gases = append(g.gases, gases...)
}

// GET registers a GET route under the group's prefix.
func (g *Group) GET(path string, h Handler, gases ...Gas) { g.add("GET", path, h, gases...) }

// POST registers a POST route under the group's prefix.
func (g *Group) POST(path string, h Handler, gases ...Gas) { g.add("POST", path, h, gases...) }

// PUT registers a PUT route under the group's prefix.
func (g *Group) PUT(path string, h Handler, gases ...Gas) { g.add("PUT", path, h, gases...) }

// PATCH registers a PATCH route under the group's prefix.
func (g *Group) PATCH(path string, h Handler, gases ...Gas) { g.add("PATCH", path, h, gases...) }

// DELETE registers a DELETE route under the group's prefix.
func (g *Group) DELETE(path string, h Handler, gases ...Gas) { g.add("DELETE", path, h, gases...) }

// BATCH registers h for every one of methods under the group's prefix.
func (g *Group) BATCH(methods []string, path string, h Handler, gases ...Gas) {
	for _, m := range methods {
		g.add(m, path, h, gases...)
	}
}

// Group creates a sub-group nested under g, inheriting g's gas chain.
func (g *Group) Group(prefix string, gases ...Gas) *Group {
	gs := make([]Gas, 0, len(g.gases)+len(gases))
	gs = append(gs, g.gases...)
	gs = append(gs, gases...)
	return g.catzilla.Group(g.prefix+prefix, gs...)
}

// FILE registers path to serve the single file at filePath, under the
// group's prefix.
func (g *Group) FILE(path, filePath string, gases ...Gas) {
	gs := make([]Gas, 0, len(g.gases)+len(gases))
	gs = append(gs, g.gases...)
	gs = append(gs, gases...)
	g.catzilla.FILE(g.prefix+path, filePath, gs...)
}

// FILES registers path as a directory-serving catch-all, under the
// group's prefix.
func (g *Group) FILES(path, root string, gases ...Gas) {
	gs := make([]Gas, 0, len(g.gases)+len(gases))
	gs = append(gs, g.gases...)
	gs = append(gs, gases...)
	g.catzilla.FILES(g.prefix+path, root, gs...)
}

func (g *Group) add(method, path string, h Handler, gases ...Gas) {
	gs := make([]Gas, 0, len(g.gases)+len(gases))
	gs = append(gs, g.gases...)
	gs = append(gs, gases...)
	g.catzilla.add(method, g.prefix+path, h, gs...)
}
