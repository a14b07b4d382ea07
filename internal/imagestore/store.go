// Package imagestore persists uploaded plant images on the local filesystem,
// normalizing every upload to a bounded JPEG.
package imagestore

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	apperrors "github.com/verdantlabs/verdant/pkg/errors"
)

// Uploaded images are downscaled to fit within this bounding box.
const (
	maxWidth  = 1200
	maxHeight = 1200
)

// jpegQuality is the encode quality for stored images.
const jpegQuality = 85

// Store writes plant images under a media root, one directory per plant.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates an image store rooted at the given directory.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Save decodes the upload, downscales it to fit the bounding box, and writes
// it as a JPEG. The returned name is what callers persist on the plant row.
// A payload that does not decode as an image is rejected as invalid input.
func (s *Store) Save(plantID int64, _ string, r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", apperrors.InvalidInput("file is not a supported image")
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxWidth || bounds.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	dir := s.plantDir(plantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create plant image dir: %w", err)
	}

	name := uuid.NewString() + ".jpg"
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("save plant image: %w", err)
	}

	s.logger.Debug("plant image stored",
		slog.Int64("plant_id", plantID),
		slog.String("file", name),
	)

	return name, nil
}

// Path returns the on-disk location of a stored image.
func (s *Store) Path(plantID int64, name string) string {
	return filepath.Join(s.plantDir(plantID), filepath.Base(name))
}

// Remove deletes a stored image. A missing file is not an error.
func (s *Store) Remove(plantID int64, name string) error {
	err := os.Remove(s.Path(plantID, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plant image: %w", err)
	}
	return nil
}

func (s *Store) plantDir(plantID int64) string {
	return filepath.Join(s.root, "plants", strconv.FormatInt(plantID, 10))
}
