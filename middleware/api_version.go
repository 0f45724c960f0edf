package middleware

import (
	"context"
	"net/http"
	"strings"
)

type apiVersionKey struct{}

// SupportedAPIVersions lists every version this hub answers. V1 is the only
// one implemented; the ladder exists so a future v2 has somewhere to hang
// without another round of route surgery.
var SupportedAPIVersions = []string{"1"}

const defaultAPIVersion = "1"

// APIVersion resolves the caller's requested version — checked in the same
// ordered header-then-fallback style as pkg/ratelimit.ExtractIP: the
// `X-API-Version` header first, then `?version=`, then the
// `Accept: application/vnd.mochi-link.v1+json` media type parameter,
// defaulting to the latest version when none is present — and attaches it
// to the context for handlers that branch on it.
func APIVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := r.Header.Get("X-API-Version")
		if version == "" {
			version = r.URL.Query().Get("version")
		}
		if version == "" {
			version = versionFromAccept(r.Header.Get("Accept"))
		}
		if version == "" {
			version = defaultAPIVersion
		}

		if !supported(version) {
			http.Error(w, "unsupported API version: "+version, http.StatusNotAcceptable)
			return
		}

		w.Header().Set("X-API-Version", version)
		ctx := context.WithValue(r.Context(), apiVersionKey{}, version)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// VersionFromContext extracts the resolved API version, defaulting to
// defaultAPIVersion if APIVersion never ran (e.g. in a handler unit test).
func VersionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(apiVersionKey{}).(string); ok {
		return v
	}
	return defaultAPIVersion
}

// versionFromAccept pulls the version out of a
// "application/vnd.mochi-link.v<N>+json" media type, returning "" if the
// header doesn't use the vendor format.
func versionFromAccept(accept string) string {
	const prefix = "application/vnd.mochi-link.v"
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, prefix) {
			continue
		}
		rest := strings.TrimPrefix(part, prefix)
		if i := strings.IndexAny(rest, "+;"); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			return rest
		}
	}
	return ""
}

func supported(version string) bool {
	for _, v := range SupportedAPIVersions {
		if v == version {
			return true
		}
	}
	return false
}
