// Package clientip resolves the address of the client behind a request.
//
// Forwarding headers (CF-Connecting-IP, X-Forwarded-For, X-Real-IP) are
// only honoured when the direct peer is a trusted proxy, so a client cannot
// spoof its address by sending them itself:
//
//	prefixes, err := clientip.ParsePrefixes([]string{"10.0.0.0/8"})
//	if err != nil {
//		return err
//	}
//	r.Use(clientip.New(prefixes...).Middleware)
//
// Handlers read the result with FromContext. LoggerExtractor plugs it into
// the logger package.
package clientip
