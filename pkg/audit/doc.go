// Package audit records security relevant actions such as enabling or
// disabling two-factor authentication.
//
// A Recorder fills each Event from the request context through
// ContextExtractor callbacks and passes it to a Writer:
//
//	rec := audit.NewRecorder(
//		audit.NewAsyncWriter(audit.NewSlogWriter(log), audit.AsyncOptions{}, log),
//		audit.WithRequestIDExtractor(func(ctx context.Context) (string, bool) {
//			id := requestid.FromContext(ctx)
//			return id, id != ""
//		}),
//	)
//	_ = rec.Log(ctx, "2fa.enabled", audit.WithUserID(userID))
//
// SlogWriter emits events as log records. The pg package provides a
// table-backed BatchWriter. AsyncWriter batches writes for either.
package audit
