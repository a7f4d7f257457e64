package fingerprint

import "net/http"

// Middleware stores the request's DeviceID in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(SetDeviceIDToContext(r.Context(), DeviceID(r))))
	})
}
