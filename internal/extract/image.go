package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxEXIFValue bounds a single rendered EXIF value.
const maxEXIFValue = 512

// skipEXIF lists binary blobs that carry no catalog value.
var skipEXIF = map[exif.FieldName]bool{
	exif.MakerNote:                        true,
	exif.UserComment:                      true,
	exif.ThumbJPEGInterchangeFormat:       true,
	exif.ThumbJPEGInterchangeFormatLength: true,
}

// ImageConfig is the default image extractor. Pixels are never decoded.
type ImageConfig struct{}

var _ Image = ImageConfig{}

func (ImageConfig) DecodeImage(ctx context.Context, data []byte) (info *ImageInfo, err error) {
	defer guard("image", &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image header: %v", ErrMalformed, err)
	}
	return &ImageInfo{
		Format: strings.ToUpper(name),
		Width:  cfg.Width,
		Height: cfg.Height,
		Mode:   colorMode(cfg.ColorModel),
		EXIF:   readEXIF(data),
	}, nil
}

// colorMode names a color model the way imaging tools usually label bands.
func colorMode(m color.Model) string {
	switch m {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return "RGBA"
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.YCbCrModel:
		return "RGB"
	case color.CMYKModel:
		return "CMYK"
	case color.AlphaModel, color.Alpha16Model:
		return "A"
	}
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	return ""
}

type exifWalker map[string]string

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if skipEXIF[name] {
		return nil
	}
	v := strings.Trim(tag.String(), `"`)
	if len(v) > maxEXIFValue {
		v = v[:maxEXIFValue]
	}
	w[string(name)] = v
	return nil
}

// readEXIF returns the EXIF and GPS fields, or nil when the image has none.
func readEXIF(data []byte) (out map[string]string) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	w := exifWalker{}
	if err := x.Walk(w); err != nil || len(w) == 0 {
		return nil
	}
	return w
}
