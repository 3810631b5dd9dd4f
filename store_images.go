package kalam

import (
	"context"

	"github.com/pkg/errors"
)

// ListImages returns uploaded image metadata, newest first.
func (s *Store) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, original_name, width, height, size, uploaded_at FROM images ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list images")
	}
	defer rows.Close()
	images := []Image{}
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &img.UploadedAt); err != nil {
			return nil, errors.Wrap(err, "scan image")
		}
		images = append(images, img)
	}
	return images, errors.Wrap(rows.Err(), "list images")
}

// ImageExists reports whether metadata for filename is stored.
func (s *Store) ImageExists(ctx context.Context, filename string) (bool, error) {
	n, err := s.count(ctx, `SELECT COUNT(*) FROM images WHERE filename = ?`, filename)
	if err != nil {
		return false, errors.Wrap(err, "check image")
	}
	return n > 0, nil
}

// SaveImage stores image metadata.
func (s *Store) SaveImage(ctx context.Context, img Image) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO images (filename, original_name, width, height, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt)
	return errors.Wrap(err, "save image")
}

// DeleteImage removes image metadata by filename.
func (s *Store) DeleteImage(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE filename = ?`, filename)
	return errors.Wrap(err, "delete image")
}
