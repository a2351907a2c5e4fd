package scanner

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

type Symbol struct {
	Text   string
	Format string
}

type Decoder interface {
	// Decode returns the symbols found in img, possibly none.
	Decode(img image.Image) ([]Symbol, error)
}

// ZXingDecoder tries a fixed set of 2D and linear barcode readers.
type ZXingDecoder struct {
	readers []gozxing.Reader
}

func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{
		readers: []gozxing.Reader{
			qrcode.NewQRCodeReader(),
			datamatrix.NewDataMatrixReader(),
			oned.NewCode128Reader(),
			oned.NewCode39Reader(),
			oned.NewEAN13Reader(),
		},
	}
}

func (d *ZXingDecoder) Decode(img image.Image) ([]Symbol, error) {
	if img == nil {
		return nil, errors.New("nil frame")
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("error binarizing frame: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	var symbols []Symbol
	for _, reader := range d.readers {
		result, err := reader.Decode(bmp, hints)
		if err != nil {
			// readers report "not found" as an error
			continue
		}
		symbols = append(symbols, Symbol{Text: result.GetText(), Format: result.GetBarcodeFormat().String()})
	}
	return symbols, nil
}
