// Package auth renders the admin login page and its htmx fragment.
package auth

import (
	"fmt"
	"strconv"

	"github.com/a-h/templ"
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	h "maragu.dev/gomponents/html"

	"finitefield.org/hanko-admin/internal/admin/templates/layouts"
	"finitefield.org/hanko-admin/internal/admin/view"
)

const (
	// FormID is the element id swapped by htmx.
	FormID = "login-form"

	// ActionField carries which control submitted the form.
	ActionField      = "action"
	ActionSubmit     = "submit"
	ActionHome       = "home"
	ActionUserLogin  = "user-login"
	LabelHome        = "Back to Main Site"
	LabelUserLogin   = "Regular User Login"
	pollWhileLoading = "every 1s"
)

// LoginPage renders the full login document.
func LoginPage(data LoginPageData) templ.Component {
	return view.Component(layouts.Base("Admin Login", data.Environment, loginMain(data)))
}

// LoginFormFragment renders only the swappable form container.
func LoginFormFragment(data LoginPageData) templ.Component {
	return view.Component(loginForm(data))
}

func loginMain(data LoginPageData) g.Node {
	return h.Main(
		h.Class("login-shell"),
		h.Section(
			h.Class("login-panel"),
			h.H1(g.Text("Admin Login")),
			h.P(h.Class("login-subtitle"), g.Text("Sign in to access the administration panel")),
			g.If(data.NoticeHTML != "",
				h.Div(h.Class("login-notice"), g.Attr("data-login-notice"), g.Raw(data.NoticeHTML)),
			),
			g.If(data.Message != "",
				h.Div(h.Class("alert alert-info"), h.Role("status"), g.Attr("data-login-message"), g.Text(data.Message)),
			),
			loginForm(data),
		),
	)
}

func loginForm(data LoginPageData) g.Node {
	v := data.Form
	return h.Div(
		h.ID(FormID),
		h.Class("login-card"),
		h.Data("loading", strconv.FormatBool(v.Loading)),
		g.Attr("hx-headers", fmt.Sprintf(`{"X-CSRF-Token":%q}`, data.CSRFToken)),
		g.If(v.Loading && data.FragmentPath != "", g.Group([]g.Node{
			hx.Get(data.FragmentPath),
			hx.Trigger(pollWhileLoading),
			hx.Target("this"),
			hx.Swap("outerHTML"),
		})),
		h.Form(
			h.Method("post"),
			h.Action(data.LoginPath),
			hx.Post(data.LoginPath),
			hx.Target("#"+FormID),
			hx.Swap("outerHTML"),
			g.Attr("hx-disabled-elt", "find button"),
			g.Attr("hx-indicator", "#login-spinner"),
			g.Attr("novalidate"),
			h.Input(h.Type("hidden"), h.Name("csrf_token"), h.Value(data.CSRFToken)),
			g.If(data.Next != "", h.Input(h.Type("hidden"), h.Name("next"), h.Value(data.Next))),
			g.If(v.ErrorMessage != "",
				h.Div(h.Class("alert alert-error"), h.Role("alert"), g.Attr("data-login-error"), g.Text(v.ErrorMessage)),
			),
			field("email", "Email", "email", "username", "admin@example.com", v.Identifier, v.InputsDisabled),
			field("password", "Password", "password", "current-password", "", "", v.InputsDisabled),
			h.Button(
				h.Type("submit"),
				h.Name(ActionField),
				h.Value(ActionSubmit),
				h.Class("btn btn-primary"),
				g.Attr("data-login-submit"),
				g.If(v.SubmitDisabled, h.Disabled()),
				g.If(v.Loading, h.Aria("busy", "true")),
				h.Span(h.ID("login-spinner"), h.Class("spinner htmx-indicator"), h.Aria("hidden", "true")),
				h.Span(g.Attr("data-login-submit-label"), g.Text(v.SubmitLabel)),
			),
			h.Div(
				h.Class("login-links"),
				auxButton(ActionHome, LabelHome),
				auxButton(ActionUserLogin, LabelUserLogin),
			),
		),
	)
}

func field(id, label, inputType, autocomplete, placeholder, value string, disabled bool) g.Node {
	return h.Div(
		h.Class("field"),
		h.Label(h.For(id), g.Text(label)),
		h.Input(
			h.ID(id),
			h.Name(id),
			h.Type(inputType),
			h.AutoComplete(autocomplete),
			g.If(placeholder != "", h.Placeholder(placeholder)),
			g.If(value != "", h.Value(value)),
			g.If(disabled, h.Disabled()),
		),
	)
}

func auxButton(action, label string) g.Node {
	return h.Button(
		h.Type("submit"),
		h.Name(ActionField),
		h.Value(action),
		h.Class("btn btn-link"),
		g.Attr("formnovalidate"),
		g.Attr("data-login-"+action),
		g.Text(label),
	)
}
