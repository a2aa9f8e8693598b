package barcode

import (
	"image"
	"time"
)

const (
	defaultStabilityWindow = 1800 * time.Millisecond
	defaultDebounce        = 2500 * time.Millisecond
)

// StreamDecoder wraps Decoder for live video: a code only fires once
// the same value is seen twice inside the stability window, and a
// handled code is suppressed from re-firing for the debounce interval.
type StreamDecoder struct {
	decoder *Decoder
	now     func() time.Time

	stabilityWindow time.Duration
	debounce        time.Duration

	lastCode     string
	lastSeenAt   time.Time
	handledCode  string
	handledUntil time.Time
}

func NewStreamDecoder(decoder *Decoder) *StreamDecoder {
	return &StreamDecoder{
		decoder:         decoder,
		now:             time.Now,
		stabilityWindow: defaultStabilityWindow,
		debounce:        defaultDebounce,
	}
}

// ObserveFrame decodes one live frame and runs the result through the
// stability and debounce gates.
func (s *StreamDecoder) ObserveFrame(img image.Image) string {
	return s.ObserveCode(s.decoder.Decode(img))
}

// ObserveCode feeds one already-decoded value through the gates. It
// returns the code only on the second sighting inside the stability
// window, and never while the code sits in its debounce interval.
func (s *StreamDecoder) ObserveCode(code string) string {
	code = Normalize(code)
	if code == "" || !IsLikelyProductBarcode(code) {
		return ""
	}

	now := s.now()

	if code == s.handledCode && now.Before(s.handledUntil) {
		return ""
	}

	if code == s.lastCode && now.Sub(s.lastSeenAt) <= s.stabilityWindow {
		s.handledCode = code
		s.handledUntil = now.Add(s.debounce)
		s.lastCode = ""
		return code
	}

	s.lastCode = code
	s.lastSeenAt = now
	return ""
}
