// Package qrcode renders otpauth provisioning URIs as PNG QR codes.
//
// Renderer satisfies twofactor.QRRenderer and is a thin wrapper around
// github.com/skip2/go-qrcode. Rendering happens locally; the secret embedded in
// the URI never leaves the process.
//
//	r := qrcode.NewRenderer(256)
//	engine := twofactor.MustNew(store, twofactor.WithQRRenderer(r))
//
// DataURI wraps PNG bytes for direct use in an <img> tag.
package qrcode
