package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/mealscan/mealscan/internal/imgproc"
)

// Line is one extracted text line with a 0..1 confidence.
type Line struct {
	Text       string
	Confidence float64
}

// TextEngine abstracts the character recognizer so the extractor and
// its tests do not depend on a Tesseract installation.
type TextEngine interface {
	Lines(img image.Image) ([]Line, error)
	FullText(img image.Image) (string, error)
}

// TesseractEngine runs gosseract with a fresh client per call. The
// client is not safe for concurrent reuse and is cheap to construct
// compared to the recognition pass itself.
type TesseractEngine struct {
	language string
}

func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{language: language}
}

func (e *TesseractEngine) Lines(img image.Image) ([]Line, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := e.setImage(client, img); err != nil {
		return nil, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("getting text lines: %w", err)
	}

	lines := make([]Line, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		conf := box.Confidence / 100.0
		if conf > 1 {
			conf = 1
		}
		if conf < 0 {
			conf = 0
		}
		lines = append(lines, Line{Text: text, Confidence: conf})
	}
	return lines, nil
}

func (e *TesseractEngine) FullText(img image.Image) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := e.setImage(client, img); err != nil {
		return "", err
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *TesseractEngine) setImage(client *gosseract.Client, img image.Image) error {
	if err := client.SetLanguage(e.language); err != nil {
		return fmt.Errorf("setting language: %w", err)
	}
	data, err := imgproc.EncodeJPEG(img)
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return fmt.Errorf("setting image: %w", err)
	}
	return nil
}
