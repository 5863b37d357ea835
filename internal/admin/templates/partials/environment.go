// Package partials holds fragments shared between admin pages.
package partials

import (
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"finitefield.org/hanko-admin/internal/admin/templates/helpers"
)

// EnvironmentBadge marks which deployment the operator is looking at.
func EnvironmentBadge(label string) g.Node {
	code, tone := helpers.EnvironmentBadge(label)
	return h.Div(
		h.Class(helpers.BadgeClass(tone)),
		g.Attr("data-environment-badge", tone),
		h.TitleAttr(label),
		h.Span(h.Aria("hidden", "true"), g.Text(code)),
		h.Span(h.Class("sr-only"), g.Textf("Environment: %s", label)),
	)
}
