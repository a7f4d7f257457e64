// Package clientip resolves the originating client IP of an HTTP request
// behind Cloudflare, DigitalOcean App Platform or a generic reverse proxy.
package clientip
