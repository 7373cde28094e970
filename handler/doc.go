// Package handler provides type-safe JSON HTTP handlers.
//
// A HandlerFunc receives a Context and a request value already decoded by a
// Bind function, and returns a Response. Wrap turns it into an
// http.HandlerFunc that binds, renders and sends every failure through a
// single ErrorHandler:
//
//	type codeRequest struct {
//		Code string `json:"code"`
//	}
//
//	func verify(ctx handler.Context, req codeRequest) handler.Response {
//		res, err := engine.Verify(ctx, identityOf(ctx), req.Code)
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(res)
//	}
//
//	r.Post("/verify", handler.Wrap(verify,
//		handler.WithBinder(binder.JSON()),
//		handler.WithErrorHandler(handler.NewErrorHandler(log, classify)),
//	))
//
// # Responses
//
// JSON and JSONError render the envelope
//
//	{"data": ..., "meta": {...}, "error": {"code": "...", "message": "..."}}
//
// Empty writes a bodyless status, Blob writes raw bytes such as a PNG, and
// Error defers to the route's ErrorHandler.
//
// # Errors
//
// NewErrorHandler maps errors to HTTPError values. An HTTPError in the chain
// is used as is; otherwise the Classifier functions are tried in order, and
// unrecognized errors become a 500 whose message does not leak internals.
// Client errors are logged at warn level, server errors at error level, both
// with the request id.
package handler
