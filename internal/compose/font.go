package compose

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"pdf-translator/internal/types"
)

// Font is a parsed TrueType/OpenType font
type Font struct {
	name string
	font *opentype.Font
}

// LoadFont parses the font at path. An empty path selects the embedded Go
// Regular font. For .ttc collections the first face is used.
func LoadFont(path string) (*Font, error) {
	if path == "" {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, types.NewAppError(types.ErrConfig, "failed to parse embedded font", err)
		}
		return &Font{name: "Go Regular", font: f}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "failed to read font", path, err)
	}

	var f *opentype.Font
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		collection, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrConfig, "failed to parse font collection", path, err)
		}
		f, err = collection.Font(0)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrConfig, "empty font collection", path, err)
		}
	} else {
		f, err = opentype.Parse(data)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrConfig, "failed to parse font", path, err)
		}
	}
	return &Font{name: filepath.Base(path), font: f}, nil
}

// Name returns a display name for logs
func (f *Font) Name() string {
	return f.name
}

// FaceSource hands out faces by pixel size
type FaceSource interface {
	Face(size float64) (font.Face, error)
}

// faceCache memoises faces for one compositing pass. Faces are not safe for
// concurrent use, so every pass owns its cache.
type faceCache struct {
	font  *Font
	faces map[float64]font.Face
}

func newFaceCache(f *Font) *faceCache {
	return &faceCache{font: f, faces: make(map[float64]font.Face)}
}

// Face returns a face rendering size pixels per em
func (c *faceCache) Face(size float64) (font.Face, error) {
	if face, ok := c.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(c.font.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	c.faces[size] = face
	return face, nil
}

func (c *faceCache) Close() {
	for _, face := range c.faces {
		face.Close()
	}
	c.faces = nil
}
