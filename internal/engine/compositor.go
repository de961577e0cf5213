package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"strconv"

	// Декодеры форматов, принимаемых jpg_to_pdf
	_ "image/png"

	"github.com/jung-kurt/gofpdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// Compositor собирает один PDF из изображений: одна страница на изображение,
// размер страницы равен размеру изображения в пикселях (в пунктах).
type Compositor struct {
	// quality — качество JPEG при встраивании
	quality int
}

// NewCompositor создаёт Compositor.
func NewCompositor(quality int) *Compositor {
	return &Compositor{quality: quality}
}

// Compose записывает PDF по пути output. Каждое изображение приводится к
// 8-битному RGB на белом фоне (прозрачность, палитры, оттенки серого).
func (c *Compositor) Compose(images []string, output string) error {
	if len(images) == 0 {
		return model.NewError(model.KindConversionFailed, nil, "нет изображений для сборки PDF")
	}

	doc := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt"})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCompression(true)

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	for i, path := range images {
		rgb, err := loadRGB(path)
		if err != nil {
			return model.NewError(model.KindConversionFailed, err, "изображение %d не декодируется", i+1)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: c.quality}); err != nil {
			return model.NewError(model.KindConversionFailed, err, "ошибка кодирования изображения %d", i+1)
		}

		w := float64(rgb.Bounds().Dx())
		h := float64(rgb.Bounds().Dy())
		name := "img" + strconv.Itoa(i)

		doc.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		doc.RegisterImageOptionsReader(name, opts, &buf)
		doc.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
		if err := doc.Error(); err != nil {
			return model.NewError(model.KindConversionFailed, err, "ошибка сборки страницы %d", i+1)
		}
	}

	if err := doc.OutputFileAndClose(output); err != nil {
		os.Remove(output)
		return model.NewError(model.KindConversionFailed, err, "ошибка записи PDF")
	}
	return checkOutput(output, "compositor")
}

// loadRGB декодирует изображение и накладывает его на белый фон.
func loadRGB(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("пустое изображение %s", format)
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst, nil
}
