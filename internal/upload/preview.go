package upload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/heic"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// detectContentType sniffs the MIME type from the file contents.
// Phones often send a generic or wrong Content-Type, so the header is ignored.
func detectContentType(data []byte) string {
	mtype := mimetype.Detect(data)
	if isHEICFormat(data) {
		return "image/heic"
	}
	return mtype.String()
}

// isHEICFormat checks the ftyp box for HEIC/HEIF brands
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isImageType reports whether a sniffed MIME type is an image
func isImageType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// decodeImage decodes any supported format, including HEIC
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if mimeType == "image/heic" || mimeType == "image/heif" {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// buildPreview renders the file as a data URI. Browsers cannot show HEIC,
// so those are re-encoded as PNG; anything larger than maxDimension on its
// longest edge is scaled down. A maxDimension of zero keeps the original size.
func buildPreview(data []byte, mimeType string, maxDimension int) (string, error) {
	needsDecode := mimeType == "image/heic" || mimeType == "image/heif" || maxDimension > 0
	if !needsDecode {
		return dataURI(mimeType, data), nil
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		// Formats the browser renders natively can still be previewed as-is
		if maxDimension > 0 && mimeType != "image/heic" && mimeType != "image/heif" {
			return dataURI(mimeType, data), nil
		}
		return "", fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}

	img = scaleDown(img, maxDimension)

	var buf bytes.Buffer
	outType := "image/png"
	if mimeType == "image/jpeg" {
		outType = "image/jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return "", fmt.Errorf("encoding preview: %w", err)
	}

	return dataURI(outType, buf.Bytes()), nil
}

// scaleDown fits img inside a maxDimension square, keeping the aspect ratio
func scaleDown(img image.Image, maxDimension int) image.Image {
	if maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}

	var newW, newH int
	if w >= h {
		newW = maxDimension
		newH = max(1, h*maxDimension/w)
	} else {
		newH = maxDimension
		newW = max(1, w*maxDimension/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func dataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
