package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

var callbackTmpl = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p>You can close this window and return to the application.</p>
</body>
</html>
`))

type callbackPageData struct {
	Title   string
	Message string
}

func (s *Server) renderCallbackSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := callbackTmpl.Execute(w, callbackPageData{
		Title:   "Signed in",
		Message: "You are now signed in to RuleHub.",
	}); err != nil {
		log.Err(err).Msg("Failed to render callback page")
	}
}

func (s *Server) renderCallbackError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := callbackTmpl.Execute(w, callbackPageData{
		Title:   "Login failed",
		Message: message,
	}); err != nil {
		log.Err(err).Msg("Failed to render callback page")
	}
}
