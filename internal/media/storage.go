// Package media stores image payloads on local disk and hands back
// URL references that the HTTP server serves statically.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/pairchat/internal/core"
)

// ErrInvalidImage marks image data that could not be accepted.
// It wraps core.ErrValidation so senders see a validation failure.
var ErrInvalidImage = fmt.Errorf("%w: invalid image", core.ErrValidation)

// Storage writes images under Dir and returns refs under URLPrefix.
type Storage struct {
	dir       string
	urlPrefix string
	maxBytes  int64
	log       *zerolog.Logger
}

// NewStorage creates dir if needed and returns a disk backed media store.
func NewStorage(dir, urlPrefix string, maxBytes int64, logger *zerolog.Logger) (*Storage, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Storage{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
		log:       logger,
	}, nil
}

// Dir is the directory images are written to.
func (s *Storage) Dir() string {
	return s.dir
}

// Store decodes a base64 data URL, checks it is an image within the size
// limit and writes it to disk. A value that is already one of our refs is
// returned unchanged so clients may forward a stored image.
func (s *Storage) Store(ctx context.Context, raw string) (string, error) {
	if s.isRef(raw) {
		return raw, nil
	}

	data, err := decodeDataURL(raw)
	if err != nil {
		return "", err
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInvalidImage, len(data), s.maxBytes)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: content is %s", ErrInvalidImage, mt.String())
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + mt.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	s.log.Debug().
		Str("name", name).
		Str("mime", mt.String()).
		Int("bytes", len(data)).
		Msg("image stored")
	return path.Join(s.urlPrefix, name), nil
}

// Remove deletes the image behind ref. Removing a ref that no longer
// exists is not an error.
func (s *Storage) Remove(_ context.Context, ref string) error {
	name, ok := s.refName(ref)
	if !ok {
		return fmt.Errorf("%w: %q is not a media reference", ErrInvalidImage, ref)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	s.log.Debug().Str("name", name).Msg("image removed")
	return nil
}

// refName extracts the file name from a reference under urlPrefix.
func (s *Storage) refName(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, s.urlPrefix+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return "", false
	}
	return name, true
}

func (s *Storage) isRef(raw string) bool {
	name, ok := s.refName(raw)
	if !ok {
		return false
	}
	info, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && info.Mode().IsRegular()
}

// decodeDataURL accepts data:<mime>;base64,<payload>. The declared mime
// type is ignored; content is sniffed instead.
func decodeDataURL(raw string) ([]byte, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: expected a data URL", ErrInvalidImage)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: expected base64 encoding", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return data, nil
}
