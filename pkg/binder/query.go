package binder

import "net/http"

// Query creates a binder for fields tagged `query:"name"`. Repeated and
// comma-separated values fill slice fields.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}
