// Package fingerprint identifies the device behind an HTTP request.
//
// Clients may send their own fingerprint in X-Device-Fingerprint (or
// Device-Fingerprint); otherwise one is derived from request headers. The
// device id combines the fingerprint with the client IP and keys the
// admission controller.
package fingerprint
