// Package layouts provides the HTML document shell for admin pages.
package layouts

import (
	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/components"
	h "maragu.dev/gomponents/html"

	"finitefield.org/hanko-admin/internal/admin/templates/partials"
)

const (
	productName = "Hanko Admin"
	htmxSrc     = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"
	stylesheet  = "/public/static/admin.css"
)

// Base wraps body in the admin document shell.
func Base(title, environment string, body ...g.Node) g.Node {
	fullTitle := productName
	if title != "" {
		fullTitle = title + " | " + productName
	}
	return components.HTML5(components.HTML5Props{
		Title:    fullTitle,
		Language: "en",
		Head: []g.Node{
			h.Meta(h.Name("robots"), h.Content("noindex, nofollow")),
			h.Link(h.Rel("stylesheet"), h.Href(stylesheet)),
			h.Script(h.Src(htmxSrc), h.Defer()),
		},
		Body: []g.Node{
			h.Class("admin"),
			h.Header(
				h.Class("admin-header"),
				h.Span(h.Class("brand"), g.Text(productName)),
				partials.EnvironmentBadge(environment),
			),
			g.Group(body),
		},
	})
}
