package auth

import "finitefield.org/hanko-admin/internal/admin/loginform"

// LoginPageData encapsulates rendering state for the admin login screen.
type LoginPageData struct {
	Form         loginform.View
	Message      string
	NoticeHTML   string
	Next         string
	LoginPath    string
	FragmentPath string
	CSRFToken    string
	Environment  string
}
