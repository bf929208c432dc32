package app

import (
	"log"
	"mime"
)

func init() {
	for ext, typ := range map[string]string{
		".css":   "text/css; charset=utf-8",
		".svg":   "image/svg+xml",
		".woff2": "font/woff2",
	} {
		ensureMimeType(ext, typ)
	}
}

// ensureMimeType fills gaps in minimal container images lacking /etc/mime.types.
func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: register MIME type for %s: %v", ext, err)
	}
}
