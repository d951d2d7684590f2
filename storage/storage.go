// Package storage persists uploaded profile images. Images are addressed by a content-hash
// file name, so identical uploads share one object.
package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
)

// DefaultImage is the shared placeholder every new account points at. It is never removed.
const DefaultImage = "default.png"

// ErrInvalidName is returned for names that could escape the image directory.
var ErrInvalidName = errors.New("invalid image name")

// ImageStore saves and removes image files by name.
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
}

// ContentName returns md5(data) in hex followed by the lower-cased extension of originalName.
// Two uploads with the same bytes and extension map to the same name.
func ContentName(data []byte, originalName string) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]) + strings.ToLower(filepath.Ext(originalName))
}

// IsRemovable reports whether name refers to a user-owned image that may be deleted.
func IsRemovable(name string) bool {
	return name != "" && name != DefaultImage
}

func validateName(name string) error {
	if name == "" || name == "." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}
