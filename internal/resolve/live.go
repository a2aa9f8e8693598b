package resolve

import (
	"image"
	"log"

	"github.com/mealscan/mealscan/internal/barcode"
	"github.com/mealscan/mealscan/internal/ocr"
)

// LiveScanner drives continuous capture. Every frame passes through
// the debounced barcode stream and the temporal text tracker; a stable
// barcode or a newly committed text hypothesis triggers a full
// resolution run.
type LiveScanner struct {
	service *Service
	stream  *barcode.StreamDecoder
	tracker *ocr.Tracker
	userID  string

	lastCommitted string
}

func NewLiveScanner(service *Service, stream *barcode.StreamDecoder, tracker *ocr.Tracker, userID string) *LiveScanner {
	return &LiveScanner{
		service: service,
		stream:  stream,
		tracker: tracker,
		userID:  userID,
	}
}

// FrameOutcome reports what one live frame produced. Session is
// non-nil only when the frame triggered a resolution run.
type FrameOutcome struct {
	Barcode string
	Track   ocr.TickOutcome
	Session *ScanSession
}

// ObserveFrame feeds one frame through both live gates. encoded is the
// frame's JPEG bytes, forwarded to the remote services when a
// resolution run starts.
func (l *LiveScanner) ObserveFrame(frame image.Image, encoded []byte, visibility float64) (FrameOutcome, error) {
	out := FrameOutcome{}

	if code := l.stream.ObserveFrame(frame); code != "" {
		out.Barcode = code
		log.Printf("[LIVE] Stable barcode %s, starting resolution", code)
		session, err := l.service.StartScan(ScanRequest{
			UserID:     l.userID,
			Image:      frame,
			ImageData:  encoded,
			Visibility: visibility,
		})
		if err != nil {
			return out, err
		}
		out.Session = session
		return out, nil
	}

	out.Track = l.tracker.Tick(frame)
	committed := out.Track.Committed
	if committed == "" || out.Track.CommittedStale || committed == l.lastCommitted {
		return out, nil
	}
	l.lastCommitted = committed

	log.Printf("[LIVE] Tracker committed %q, starting resolution", committed)
	session, err := l.service.StartScan(ScanRequest{
		UserID:              l.userID,
		Image:               frame,
		ImageData:           encoded,
		Visibility:          visibility,
		CommittedText:       committed,
		CommittedConfidence: out.Track.Fused.Confidence,
	})
	if err != nil {
		return out, err
	}
	out.Session = session
	return out, nil
}

// Reset clears the live gates, e.g. when the camera view closes.
func (l *LiveScanner) Reset() {
	l.tracker.Reset()
	l.lastCommitted = ""
}
