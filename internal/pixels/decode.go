package pixels

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var supportedTypes = []string{"image/png", "image/jpeg", "image/gif"}

// Decode sniffs an encoded image file and converts it to an Image.
func Decode(raw []byte) (Image, error) {
	mt := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mt.String(), supportedTypes...) {
		return Image{}, fmt.Errorf("unsupported image type %s (want one of %s)", mt.String(), strings.Join(supportedTypes, ", "))
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode %s: %w", mt.String(), err)
	}
	return FromImage(src), nil
}

// DecodeBase64 decodes a base64 file body. A data URI prefix is accepted.
func DecodeBase64(encoded string) (Image, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Image{}, fmt.Errorf("invalid base64 image: %w", err)
	}
	return Decode(raw)
}

// LoadFile reads and decodes an image file from disk.
func LoadFile(path string) (Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	img, err := Decode(raw)
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
