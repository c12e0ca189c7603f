// Package storage uploads selfies and certificates to object storage and
// returns their public URLs. Backends: S3-compatible buckets (AWS, Supabase
// storage), Google Cloud Storage (Firebase storage) and a local directory
// served by this process, which doubles as the spool for failed uploads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when a backend lacks a required setting.
var ErrNotConfigured = errors.New("storage backend not configured")

// BlobStore stores an object under key and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Name() string
}

// Object key layout.
const (
	SelfiesDir      = "selfies"
	CertificatesDir = "certificates"
)

// SelfieKey is the object key of a pledge's selfie.
func SelfieKey(pledgeID, ext string) string {
	return fmt.Sprintf("%s/%s.%s", SelfiesDir, pledgeID, strings.TrimPrefix(ext, "."))
}

// CertificateKey is the object key of a pledge's certificate.
func CertificateKey(pledgeID, ext string) string {
	return fmt.Sprintf("%s/%s.%s", CertificatesDir, pledgeID, strings.TrimPrefix(ext, "."))
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
