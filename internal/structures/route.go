package structures

import "net/http"

// Route is one registered path; Methods lists what Handler accepts, sorted.
type Route struct {
	Url     string
	Methods []string
	Handler http.Handler
}
