package services

import (
	"chat-presence/errors"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const onePixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func TestValidateImage(t *testing.T) {
	textAsImage := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("definitely not a picture"))
	huge := "data:image/png;base64," + strings.Repeat("A", 8<<20)

	tests := []struct {
		name     string
		image    string
		wantMime string
		wantErr  bool
	}{
		{name: "inline png", image: onePixelPNG, wantMime: "image/png"},
		{name: "remote url", image: "https://res.cloudinary.com/demo/alice.png"},
		{name: "text pretending to be a png", image: textAsImage, wantErr: true},
		{name: "not base64", image: "data:image/png;base64,%%%", wantErr: true},
		{name: "no data header", image: "iVBORw0KGgo=", wantErr: true},
		{name: "too large", image: huge, wantErr: true},
		{name: "other scheme", image: "ftp://example.com/a.png", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			mime, err := ValidateImage(tt.image)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrInvalidImage)
				return
			}
			req.NoError(err)
			req.Equal(tt.wantMime, mime)
		})
	}
}
