// ABOUTME: Outbound payload variants for the chat webhook
// ABOUTME: Text only, image only, or text with an image attachment

package webhook

import (
	"errors"
	"strings"
)

// ErrEmptyPayload is returned when neither text nor image is present.
var ErrEmptyPayload = errors.New("payload needs text or an image")

// Kind tags which variant a Payload carries.
type Kind int

const (
	TextOnly Kind = iota + 1
	ImageOnly
	TextWithImage
)

func (k Kind) String() string {
	switch k {
	case TextOnly:
		return "text"
	case ImageOnly:
		return "image"
	case TextWithImage:
		return "text+image"
	default:
		return "unknown"
	}
}

// Image is an image attachment. Size defaults to len(Data) when zero.
type Image struct {
	Data     []byte
	Filename string
	MimeType string
	Size     int64
}

func (img *Image) size() int64 {
	if img.Size > 0 {
		return img.Size
	}
	return int64(len(img.Data))
}

func (img *Image) empty() bool {
	return img == nil || len(img.Data) == 0
}

// Payload is a tagged union of the three message shapes.
type Payload struct {
	Kind  Kind
	Text  string
	Image *Image
}

// NewPayload picks the variant from whichever inputs are present.
func NewPayload(text string, img *Image) (Payload, error) {
	hasText := strings.TrimSpace(text) != ""
	hasImage := !img.empty()

	var p Payload
	switch {
	case hasText && hasImage:
		p = Payload{Kind: TextWithImage, Text: text, Image: img}
	case hasImage:
		p = Payload{Kind: ImageOnly, Image: img}
	case hasText:
		p = Payload{Kind: TextOnly, Text: text}
	default:
		return Payload{}, ErrEmptyPayload
	}
	return p, nil
}

// Validate checks that the fields required by Kind are present.
func (p Payload) Validate() error {
	hasText := strings.TrimSpace(p.Text) != ""
	hasImage := !p.Image.empty()

	switch p.Kind {
	case TextOnly:
		if !hasText {
			return ErrEmptyPayload
		}
	case ImageOnly:
		if !hasImage {
			return ErrEmptyPayload
		}
	case TextWithImage:
		if !hasText || !hasImage {
			return ErrEmptyPayload
		}
	default:
		return ErrEmptyPayload
	}
	return nil
}

func (p Payload) profile() Profile {
	switch p.Kind {
	case ImageOnly:
		return ImageProfile
	case TextWithImage:
		return TextImageProfile
	default:
		return TextProfile
	}
}
