// Package handler turns typed request handlers into http.HandlerFunc.
//
// A handler receives a Context and a request struct already filled by the
// configured binders, and returns a Response:
//
//	type statusRequest struct {
//		ID string `path:"id"`
//	}
//
//	get := func(ctx handler.Context, req statusRequest) handler.Response {
//		rec, err := store.FindByID(ctx, req.ID)
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(rec)
//	}
//
//	r.Get("/api/analysis/{id}/status", handler.Wrap(get,
//		handler.WithBinders[statusRequest](binder.Path(chi.URLParam)),
//	))
//
// Binding failures and errors returned from Render go to the ErrorHandler,
// which by default writes a JSON error body and logs the failure with the
// request id. Handlers return *HTTPError values (through Error) to choose the
// status code and message the client sees.
package handler
