package domain

// AssetKind enumerates the downloadable outputs.
type AssetKind string

const (
	AssetKindImage       AssetKind = "image"
	AssetKindEditedImage AssetKind = "edited_image"
	AssetKindSpriteFrame AssetKind = "sprite_frame"
	AssetKindSpriteSheet AssetKind = "sprite_sheet"
	AssetKindVideo       AssetKind = "video"
)

// AssetResult is a materialised binary asset ready to display or download.
type AssetResult struct {
	Kind     AssetKind
	MIMEType string
	Data     []byte
	Filename string
}

// Size returns the payload length in bytes.
func (a *AssetResult) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// InputImage describes an uploaded image used as conditioning input.
type InputImage struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Empty reports whether no image bytes were supplied.
func (i *InputImage) Empty() bool {
	return i == nil || len(i.Data) == 0
}
