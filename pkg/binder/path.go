package binder

import (
	"fmt"
	"net/http"
	"reflect"
)

// Path creates a binder for fields tagged `path:"name"`, reading each value
// through extractor. With chi, pass chi.URLParam.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor is nil", ErrFailedToParsePath)
		}
		rv, err := structValue(v, ErrFailedToParsePath)
		if err != nil {
			return err
		}

		values := make(map[string][]string)
		for _, f := range reflect.VisibleFields(rv.Type()) {
			name, skip := parseFieldTag(f, "path")
			if skip || !f.IsExported() {
				continue
			}
			if val := extractor(r, name); val != "" {
				values[name] = []string{val}
			}
		}
		return bindToStruct(v, "path", values, ErrFailedToParsePath)
	}
}
