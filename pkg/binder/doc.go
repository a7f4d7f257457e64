// Package binder fills request structs from an HTTP request.
//
// Each binder handles one source and reads one struct tag:
//
//	type CancelRequest struct {
//		AnalysisID string `path:"id"`
//		Limit      int    `query:"limit"`
//	}
//
//	h := handler.Wrap(cancel, handler.WithBinders[CancelRequest](
//		binder.Path(chi.URLParam),
//		binder.Query(),
//	))
//
// JSON decodes the body with encoding/json and honours the usual json tags.
// Query and Path support strings, integers, floats, booleans, durations,
// pointers to those and, for Query, slices.
package binder
