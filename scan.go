package checkin

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxRecentScans caps the in-memory recent-activity log.
const maxRecentScans = 10

// ScanCoordinator manages class selection, the camera decoder lifecycle, scan
// submission, and a bounded log of recent check-ins. The log is session
// scoped: it starts empty on every new coordinator.
type ScanCoordinator struct {
	api     AttendanceAPI
	decoder QRDecoder
	logger  Logger
	sink    ActivitySink

	mu       sync.Mutex
	classes  []Class
	selected string
	pending  string
	recent   []ScanRecord
	session  DecoderSession
}

// NewScanCoordinator returns a coordinator over the given backend surface.
func NewScanCoordinator(api AttendanceAPI) *ScanCoordinator {
	return &ScanCoordinator{
		api:    api,
		logger: defLogger{},
		sink:   noopActivitySink{},
	}
}

func (sc *ScanCoordinator) WithLogger(logger Logger) *ScanCoordinator {
	if logger != nil {
		sc.logger = logger
	}
	return sc
}

// WithDecoder wires the camera-backed QR decoder.
func (sc *ScanCoordinator) WithDecoder(decoder QRDecoder) *ScanCoordinator {
	sc.decoder = decoder
	return sc
}

// WithActivitySink configures an ActivitySink for accepted scans.
func (sc *ScanCoordinator) WithActivitySink(sink ActivitySink) *ScanCoordinator {
	sc.sink = normalizeActivitySink(sink)
	return sc
}

// Load fetches the caller's assigned classes and defaults the selection to
// the first one.
func (sc *ScanCoordinator) Load(ctx context.Context) error {
	classes, err := sc.api.MyClasses(ctx)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	sc.classes = classes
	if len(classes) > 0 {
		sc.selected = classes[0].ID
	} else {
		sc.selected = ""
	}
	sc.mu.Unlock()
	return nil
}

// Classes returns a copy of the assigned classes.
func (sc *ScanCoordinator) Classes() []Class {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]Class, len(sc.classes))
	copy(out, sc.classes)
	return out
}

// SelectedClass returns the currently selected class id, empty when unset.
func (sc *ScanCoordinator) SelectedClass() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.selected
}

// SelectClass switches the selection; the class must be one of the caller's
// assigned classes.
func (sc *ScanCoordinator) SelectClass(classID string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, class := range sc.classes {
		if class.ID == classID {
			sc.selected = classID
			return nil
		}
	}
	return ErrClassNotAssigned.WithMetadata(map[string]any{"class_id": classID})
}

// SetPayload stores a manually pasted QR payload; decoder results land in the
// same field.
func (sc *ScanCoordinator) SetPayload(payload string) {
	sc.mu.Lock()
	sc.pending = payload
	sc.mu.Unlock()
}

// Payload returns the pending QR payload.
func (sc *ScanCoordinator) Payload() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.pending
}

// BeginDecode opens a modal-scoped decoder session. At most one session is
// active at a time; the first decoded string is stored as the pending payload
// and the session torn down. EndDecode handles the explicit-close path.
func (sc *ScanCoordinator) BeginDecode(ctx context.Context) error {
	if sc.decoder == nil {
		return ErrDecoderUnavailable
	}

	sc.mu.Lock()
	if sc.session != nil {
		sc.mu.Unlock()
		return ErrDecoderActive
	}
	sc.mu.Unlock()

	var once sync.Once
	fired := make(chan struct{})
	session, err := sc.decoder.Open(ctx, func(payload string) {
		once.Do(func() {
			sc.SetPayload(payload)
			sc.EndDecode()
			close(fired)
		})
	})
	if err != nil {
		return err
	}

	sc.mu.Lock()
	if sc.session != nil {
		// Lost the race to a concurrent BeginDecode.
		sc.mu.Unlock()
		session.Close()
		return ErrDecoderActive
	}
	select {
	case <-fired:
		// Decoded synchronously during Open; the payload is already stored
		// and the session must not outlive this call.
		sc.mu.Unlock()
		if err := session.Close(); err != nil {
			sc.logger.Warn("decoder session close failed: %v", err)
		}
		return nil
	default:
	}
	sc.session = session
	sc.mu.Unlock()
	return nil
}

// EndDecode tears the decoder session down. Safe to call when none is open.
func (sc *ScanCoordinator) EndDecode() {
	sc.mu.Lock()
	session := sc.session
	sc.session = nil
	sc.mu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			sc.logger.Warn("decoder session close failed: %v", err)
		}
	}
}

// Decoding reports whether a decoder session is currently open.
func (sc *ScanCoordinator) Decoding() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session != nil
}

// Submit validates the payload locally, posts it, and on success prepends a
// ScanRecord to the bounded log. Identical rapid scans are not deduplicated.
// Server failures surface with the server-provided message verbatim.
func (sc *ScanCoordinator) Submit(ctx context.Context, qrPayload, classID string) (*ScanRecord, error) {
	payload := strings.TrimSpace(qrPayload)
	if payload == "" {
		return nil, ErrEmptyScanPayload
	}
	if classID == "" {
		return nil, ErrNoClassSelected
	}

	result, err := sc.api.SubmitScan(ctx, ScanSubmission{QRString: payload, ClassID: classID})
	if err != nil {
		return nil, err
	}

	record := ScanRecord{
		ID:         uuid.New(),
		Student:    result.Student,
		Class:      result.Class,
		Attendance: result.Attendance,
		ObservedAt: timeNow(),
	}

	sc.mu.Lock()
	sc.recent = append([]ScanRecord{record}, sc.recent...)
	if len(sc.recent) > maxRecentScans {
		sc.recent = sc.recent[:maxRecentScans]
	}
	if sc.pending == qrPayload {
		sc.pending = ""
	}
	sc.mu.Unlock()

	sc.record(ctx, record)
	return &record, nil
}

// Recent returns the recent scans, newest first, at most 10.
func (sc *ScanCoordinator) Recent() []ScanRecord {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]ScanRecord, len(sc.recent))
	copy(out, sc.recent)
	return out
}

// ClassQR fetches the projection code for the selected class.
func (sc *ScanCoordinator) ClassQR(ctx context.Context) (*ClassQR, error) {
	sc.mu.Lock()
	selected := sc.selected
	sc.mu.Unlock()

	if selected == "" {
		return nil, ErrNoClassSelected
	}
	return sc.api.ClassQRCode(ctx, selected)
}

func (sc *ScanCoordinator) record(ctx context.Context, rec ScanRecord) {
	sink := normalizeActivitySink(sc.sink)
	err := sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventScanRecorded,
		OccurredAt: rec.ObservedAt,
		Metadata: map[string]any{
			"student": rec.Student.ID,
			"class":   rec.Class.ID,
		},
	})
	if err != nil {
		sc.logger.Warn("scan activity sink error: %v", err)
	}
}
