package utils

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type ErrorPage struct {
	Message string
	BackURL string
}

// RenderPaymentError writes the generic payment error page with status code.
func RenderPaymentError(w http.ResponseWriter, code int, page ErrorPage) {
	if page.BackURL == "" {
		page.BackURL = "/"
	}
	renderPage(w, code, "payment_error.html", page)
}

func RenderPaymentCancelled(w http.ResponseWriter) {
	renderPage(w, http.StatusOK, "payment_cancelled.html", nil)
}

func renderPage(w http.ResponseWriter, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = pages.ExecuteTemplate(w, name, data)
}
