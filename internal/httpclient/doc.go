// Package httpclient provides the pooled-client transport for nioload.
//
// It implements [github.com/torosent/nioload/internal/transport.Transport] on top of
// net/http, so the same request executor that drives raw sockets can drive a
// full HTTP client:
//
//	t := httpclient.NewTransport(httpclient.Options{
//		Client:  httpclient.NewClient(30 * time.Second),
//		Workers: workers,
//	})
//
// # Connection model
//
// [NewClient] disables keep-alives: every request opens and closes its own
// connection. Bytes written through a connection are parsed back into an
// *http.Request with [net/http.ReadRequest]. Once the request is complete it is
// sent with the client, the body is read in full, and the response is
// re-serialized with an explicit Content-Length so the framer can delimit it.
// Reads then drain that serialized response in hint-sized chunks.
//
// Completion callbacks run on the shared [github.com/torosent/nioload/internal/pool.Workers].
package httpclient
