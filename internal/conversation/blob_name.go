package conversation

import (
	"fmt"
	"mime"
	"strings"
	"time"
)

// BlobName builds a unique, filesystem-safe object name for a submitted photo:
// <sender>_<YYYYMMDDhhmmss>_<nanoseconds><ext>.
func BlobName(senderID string, at time.Time, contentType string) string {
	at = at.UTC()
	return fmt.Sprintf("%s_%s_%09d%s", sanitizeToken(senderID), at.Format("20060102150405"), at.Nanosecond(), extensionFor(contentType))
}

func sanitizeToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, ":"); i >= 0 {
		raw = raw[i+1:]
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	token := strings.Trim(b.String(), "_")
	if token == "" {
		return "anonymous"
	}
	return token
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	switch mediaType {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	}
	return ".jpg"
}
