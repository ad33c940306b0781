// Package http exposes the xupload service over HTTP.
//
// # Routes
//
//   - PUT /<path>?v=<code>[&q=<quota>]: store an object. The code is the hex
//     HMAC-SHA256 of "<path> <Content-Length>" under the shared secret.
//   - GET /<path>: download an object.
//   - HEAD /<path>: object headers, including Content-Length.
//   - GET /: plain text welcome message.
//
// # Status codes
//
//	201  object stored
//	400  body shorter than Content-Length, or malformed quota
//	403  signature mismatch
//	404  unknown object, or a path outside the data root
//	409  object already exists
//
// Downloads carry X-Content-Type-Options, X-Frame-Options and a sandboxing
// Content-Security-Policy. Types not on the inline list are additionally
// served with Content-Disposition: attachment.
//
// # Usage
//
//	policy, _ := xupload.NewHeaderPolicy([]string{"image/*"})
//	handler := http.NewHandler(&http.HandlerConfig{Headers: policy}, service)
//	http.ListenAndServe(":5280", handler.Router())
package http
