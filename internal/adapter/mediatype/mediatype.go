package mediatype

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
)

const (
	extXML = "xml"
	extSVG = "svg"
)

var extensionsByType = map[string]string{
	"image/jpeg":      "jpg",
	"image/pjpeg":     "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"image/avif":      "avif",
	"image/svg+xml":   extSVG,
	"video/webm":      "webm",
	"video/mp4":       "mp4",
	"video/x-m4v":     "m4v",
	"application/xml": extXML,
	"text/xml":        extXML,
}

// Resolve picks the file extension for downloaded content. The declared
// Content-Type wins when it is a known media type, otherwise the leading bytes
// are sniffed. Generic XML resolves to svg.
func Resolve(declared string, head []byte) (string, error) {
	ext := fromDeclared(declared)
	if ext == "" {
		ext = fromSignature(head)
	}

	if ext == extXML {
		ext = extSVG
	}

	if ext == "" || entity.CategoryOf(ext) == entity.CategoryUnknown {
		return "", fmt.Errorf("%w: declared %q, detected %q", common.ErrUnknownContentType, declared, mimetype.Detect(head).String())
	}

	return ext, nil
}

func fromDeclared(declared string) string {
	if declared == "" {
		return ""
	}

	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return ""
	}

	return extensionsByType[strings.ToLower(mediaType)]
}

func fromSignature(head []byte) string {
	if len(head) == 0 {
		return ""
	}

	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		mediaType, _, _ := strings.Cut(m.String(), ";")
		if ext, ok := extensionsByType[strings.TrimSpace(mediaType)]; ok {
			return ext
		}
	}

	return strings.TrimPrefix(detected.Extension(), ".")
}
