// Package view bridges gomponents trees into templ so handlers can serve
// them with templ.Handler.
package view

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"
	g "maragu.dev/gomponents"
)

// GomponentAdapter wraps a gomponents.Node to satisfy templ.Component.
type GomponentAdapter struct {
	Node g.Node
}

// Render writes the wrapped node.
func (a *GomponentAdapter) Render(_ context.Context, w io.Writer) error {
	if a.Node == nil {
		return nil
	}
	return a.Node.Render(w)
}

// Component converts a gomponents node into a templ.Component.
func Component(node g.Node) templ.Component {
	return &GomponentAdapter{Node: node}
}

// TemplAdapter wraps a templ.Component to satisfy gomponents.Node. The
// component is rendered with a background context.
type TemplAdapter struct {
	Component templ.Component
}

// Render writes the wrapped component.
func (a *TemplAdapter) Render(w io.Writer) error {
	if a.Component == nil {
		return nil
	}
	return a.Component.Render(context.Background(), w)
}

// Node converts a templ.Component into a gomponents node.
func Node(component templ.Component) g.Node {
	return &TemplAdapter{Component: component}
}

// Handler serves component with the given status code.
func Handler(component templ.Component, status int) http.Handler {
	if status == 0 {
		status = http.StatusOK
	}
	return templ.Handler(component, templ.WithStatus(status))
}

// Render serves component on w with the given status code.
func Render(w http.ResponseWriter, r *http.Request, component templ.Component, status int) {
	Handler(component, status).ServeHTTP(w, r)
}
