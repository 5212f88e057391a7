package entity

import "strings"

type Category int

const (
	CategoryUnknown Category = iota
	CategoryImage
	CategoryVideo
)

func (c Category) String() string {
	return [...]string{"unknown", "image", "video"}[c]
}

// Extensions are listed in probe priority order.
var (
	ImageExtensions = []string{"jpg", "jpeg", "png", "webp", "gif", "avif", "svg"}
	VideoExtensions = []string{"webm", "mp4", "m4v"}
)

// CategoryOf classifies an extension (with or without the leading dot).
func CategoryOf(ext string) Category {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range ImageExtensions {
		if e == ext {
			return CategoryImage
		}
	}

	for _, e := range VideoExtensions {
		if e == ext {
			return CategoryVideo
		}
	}

	return CategoryUnknown
}

// LocalAsset is a file in the asset directory that represents a tag.
type LocalAsset struct {
	Name      string // file name relative to the asset directory
	Extension string
	Category  Category
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Existence is the result of a filesystem probe. Unknown means the probe itself failed.
type Existence int

const (
	Missing Existence = iota
	Exists
	Unknown
)
