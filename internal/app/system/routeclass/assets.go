package routeclass

import (
	"path"
	"strings"
)

// assetExtensions are never gated. ".json" is not an asset.
var assetExtensions = map[string]struct{}{
	".html": {}, ".htm": {}, ".css": {}, ".js": {},
	".jpg": {}, ".jpeg": {}, ".webp": {}, ".png": {}, ".gif": {}, ".svg": {},
	".ttf": {}, ".woff": {}, ".woff2": {}, ".ico": {},
	".csv": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".zip": {},
	".webmanifest": {},
}

// IsAPIPath reports the /api and /trpc prefixes, in any case.
func IsAPIPath(p string) bool {
	p = strings.ToLower(p)
	return hasSegmentPrefix(p, "/api") || hasSegmentPrefix(p, "/trpc")
}

// SkipsGate reports whether p is a static asset or framework internal that
// bypasses the gate entirely. API and RPC prefixes never skip.
func SkipsGate(p string) bool {
	if IsAPIPath(p) {
		return false
	}
	if strings.HasPrefix(p, "/_next") || hasSegmentPrefix(p, "/static") {
		return true
	}
	_, ok := assetExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

func hasSegmentPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
