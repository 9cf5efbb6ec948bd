package services

import (
	"chat-presence/errors"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const maxImageBytes = 5 << 20

// ValidateImage accepts either a remote http(s) URL, kept as is, or an inline
// base64 data URL whose content really is an image. It returns the detected
// MIME type, empty for remote URLs.
func ValidateImage(image string) (string, error) {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		if _, err := url.ParseRequestURI(image); err != nil {
			return "", fmt.Errorf("%w: %v", errors.ErrInvalidImage, err)
		}
		return "", nil
	}

	header, data, ok := strings.Cut(image, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", errors.ErrInvalidImage
	}
	if base64.StdEncoding.DecodedLen(len(data)) > maxImageBytes {
		return "", fmt.Errorf("%w: larger than %d bytes", errors.ErrInvalidImage, maxImageBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidImage, err)
	}

	detected := mimetype.Detect(raw)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", fmt.Errorf("%w: got %s", errors.ErrInvalidImage, detected.String())
	}
	return detected.String(), nil
}
