package storage

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

var allowedImageExtensions = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// AllowedImage reports whether the file name carries an accepted image extension
func AllowedImage(filename string) bool {
	_, ok := allowedImageExtensions[extension(filename)]
	return ok
}

// ContentTypeFor returns the image content type for the file name, or application/octet-stream
func ContentTypeFor(filename string) string {
	if ct, ok := allowedImageExtensions[extension(filename)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// SanitizeFileName strips path components and characters that are unsafe in object keys
func SanitizeFileName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFileChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" || name == "." {
		return "file"
	}
	return name
}

// ObjectKey builds a collision-resistant key from the upload time and file name
func ObjectKey(at time.Time, filename string) string {
	at = at.UTC()
	return fmt.Sprintf("%s_%06d_%s", at.Format("20060102_150405"), at.Nanosecond()/1000, SanitizeFileName(filename))
}

// KeyFromURL recovers the object key from a public URL built by PublicURL
func KeyFromURL(bucket, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	prefix := "/" + bucket + "/"
	idx := strings.Index(u.Path, prefix)
	if idx < 0 {
		return ""
	}
	return u.Path[idx+len(prefix):]
}

// PublicURL joins the public base, bucket and key
func PublicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + url.PathEscape(key)
}

func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}
