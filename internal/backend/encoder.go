package backend

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/smazurov/scopeview/internal/capture"
)

// PNGEncoder encodes raw frames to PNG through OpenCV.
type PNGEncoder struct{}

// NewPNGEncoder creates a still encoder producing image/png payloads.
func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{}
}

// Encode converts the RGBA frame to a PNG payload.
func (e *PNGEncoder) Encode(frame *capture.RawFrame) ([]byte, string, error) {
	if frame == nil || len(frame.Pix) == 0 {
		return nil, "", fmt.Errorf("empty frame")
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC4, frame.Pix)
	if err != nil {
		return nil, "", fmt.Errorf("failed to wrap frame: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, bgr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode png: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, "image/png", nil
}
