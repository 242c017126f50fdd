package checkin_test

import (
	"context"
	"fmt"
	"testing"

	checkin "github.com/classtrack/go-checkin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func scanResultFor(studentID, classID string) *checkin.ScanResult {
	return &checkin.ScanResult{
		Student:    checkin.UserProfile{ID: studentID, Name: "Student " + studentID, Role: checkin.RoleStudent},
		Class:      checkin.Class{ID: classID, Name: "Class " + classID},
		Attendance: checkin.AttendanceRecord{ID: "att-" + studentID, Status: "present"},
	}
}

func TestScanCoordinatorLoadDefaultsToFirstClass(t *testing.T) {
	api := &MockAttendanceAPI{}
	api.On("MyClasses", mock.Anything).Return([]checkin.Class{
		{ID: "c1", Name: "Algebra"},
		{ID: "c2", Name: "History"},
	}, nil).Once()

	coordinator := checkin.NewScanCoordinator(api)
	require.NoError(t, coordinator.Load(context.Background()))

	assert.Equal(t, "c1", coordinator.SelectedClass())
	assert.Len(t, coordinator.Classes(), 2)
	api.AssertExpectations(t)
}

func TestScanCoordinatorLoadWithNoClassesClearsSelection(t *testing.T) {
	api := &MockAttendanceAPI{}
	api.On("MyClasses", mock.Anything).Return([]checkin.Class{}, nil).Once()

	coordinator := checkin.NewScanCoordinator(api)
	require.NoError(t, coordinator.Load(context.Background()))
	assert.Empty(t, coordinator.SelectedClass())
}

func TestScanCoordinatorSelectClassRequiresAssignment(t *testing.T) {
	api := &MockAttendanceAPI{}
	api.On("MyClasses", mock.Anything).Return([]checkin.Class{{ID: "c1"}, {ID: "c2"}}, nil).Once()

	coordinator := checkin.NewScanCoordinator(api)
	require.NoError(t, coordinator.Load(context.Background()))

	require.NoError(t, coordinator.SelectClass("c2"))
	assert.Equal(t, "c2", coordinator.SelectedClass())

	err := coordinator.SelectClass("c9")
	require.Error(t, err)
	assert.ErrorIs(t, err, checkin.ErrClassNotAssigned)
	assert.Equal(t, "c2", coordinator.SelectedClass(), "selection unchanged after a rejected switch")
}

func TestScanCoordinatorSubmitRejectsEmptyPayloadWithoutNetwork(t *testing.T) {
	api := &MockAttendanceAPI{}
	coordinator := checkin.NewScanCoordinator(api)

	_, err := coordinator.Submit(context.Background(), "   ", "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, checkin.ErrEmptyScanPayload)

	_, err = coordinator.Submit(context.Background(), "payload", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, checkin.ErrNoClassSelected)

	assert.Empty(t, coordinator.Recent(), "rejected submissions never reach the log")
	api.AssertNotCalled(t, "SubmitScan", mock.Anything, mock.Anything)
}

func TestScanCoordinatorSubmitSurfacesServerMessageVerbatim(t *testing.T) {
	api := &MockAttendanceAPI{}
	api.On("SubmitScan", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("QR Code expirado")).Once()

	coordinator := checkin.NewScanCoordinator(api)
	_, err := coordinator.Submit(context.Background(), "expired-payload", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QR Code expirado")
	assert.Empty(t, coordinator.Recent())
}

func TestScanCoordinatorSubmitRecordsAcceptedScan(t *testing.T) {
	api := &MockAttendanceAPI{}
	api.On("SubmitScan", mock.Anything, checkin.ScanSubmission{QRString: "qr-1", ClassID: "c1"}).
		Return(scanResultFor("s1", "c1"), nil).Once()

	sink := &RecordingSink{}
	coordinator := checkin.NewScanCoordinator(api).WithActivitySink(sink)

	record, err := coordinator.Submit(context.Background(), "qr-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "s1", record.Student.ID)
	assert.False(t, record.ObservedAt.IsZero())

	recent := coordinator.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, record.ID, recent[0].ID)
	assert.Len(t, sink.ByType(checkin.ActivityEventScanRecorded), 1)
	api.AssertExpectations(t)
}

func TestScanCoordinatorRecentKeepsNewestTen(t *testing.T) {
	api := &MockAttendanceAPI{}
	for i := 0; i < 11; i++ {
		studentID := fmt.Sprintf("s%d", i)
		api.On("SubmitScan", mock.Anything, checkin.ScanSubmission{QRString: "qr-" + studentID, ClassID: "c1"}).
			Return(scanResultFor(studentID, "c1"), nil).Once()
	}

	coordinator := checkin.NewScanCoordinator(api)
	for i := 0; i < 11; i++ {
		_, err := coordinator.Submit(context.Background(), fmt.Sprintf("qr-s%d", i), "c1")
		require.NoError(t, err)
	}

	recent := coordinator.Recent()
	require.Len(t, recent, 10, "the log is bounded at ten entries")
	assert.Equal(t, "s10", recent[0].Student.ID, "newest first")
	assert.Equal(t, "s1", recent[9].Student.ID, "the oldest entry fell off")
}

func TestScanCoordinatorAllowsIdenticalRapidScans(t *testing.T) {
	api := &MockAttendanceAPI{}
	api.On("SubmitScan", mock.Anything, checkin.ScanSubmission{QRString: "qr-1", ClassID: "c1"}).
		Return(scanResultFor("s1", "c1"), nil).Twice()

	coordinator := checkin.NewScanCoordinator(api)
	first, err := coordinator.Submit(context.Background(), "qr-1", "c1")
	require.NoError(t, err)
	second, err := coordinator.Submit(context.Background(), "qr-1", "c1")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "identical scans produce distinct log entries")
	assert.Len(t, coordinator.Recent(), 2)
}

func TestScanCoordinatorSubmitClearsMatchingPendingPayload(t *testing.T) {
	api := &MockAttendanceAPI{}
	api.On("SubmitScan", mock.Anything, mock.Anything).
		Return(scanResultFor("s1", "c1"), nil).Once()

	coordinator := checkin.NewScanCoordinator(api)
	coordinator.SetPayload("qr-1")

	_, err := coordinator.Submit(context.Background(), "qr-1", "c1")
	require.NoError(t, err)
	assert.Empty(t, coordinator.Payload())
}

func TestScanCoordinatorBeginDecodeRequiresDecoder(t *testing.T) {
	coordinator := checkin.NewScanCoordinator(&MockAttendanceAPI{})
	err := coordinator.BeginDecode(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, checkin.ErrDecoderUnavailable)
}

func TestScanCoordinatorDecoderLifecycle(t *testing.T) {
	decoder := &FakeDecoder{}
	coordinator := checkin.NewScanCoordinator(&MockAttendanceAPI{}).WithDecoder(decoder)

	require.NoError(t, coordinator.BeginDecode(context.Background()))
	assert.True(t, coordinator.Decoding())

	err := coordinator.BeginDecode(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, checkin.ErrDecoderActive, "one session per modal")

	decoder.Decode("decoded-payload")
	assert.Equal(t, "decoded-payload", coordinator.Payload())
	assert.False(t, coordinator.Decoding(), "first decode tears the session down")
	require.Len(t, decoder.Sessions, 1)
	assert.Equal(t, 1, decoder.Sessions[0].Closed())

	// Later camera callbacks from the closed session are ignored.
	decoder.Decode("late-payload")
	assert.Equal(t, "decoded-payload", coordinator.Payload())
}

func TestScanCoordinatorDecodeDuringOpenClosesSession(t *testing.T) {
	decoder := &FakeDecoder{DecodeOnOpen: "instant-payload"}
	coordinator := checkin.NewScanCoordinator(&MockAttendanceAPI{}).WithDecoder(decoder)

	require.NoError(t, coordinator.BeginDecode(context.Background()))
	assert.Equal(t, "instant-payload", coordinator.Payload())
	assert.False(t, coordinator.Decoding(), "a session decoded during open never stays active")
	require.Len(t, decoder.Sessions, 1)
	assert.Equal(t, 1, decoder.Sessions[0].Closed())

	// The coordinator is free for the next modal.
	decoder.DecodeOnOpen = ""
	require.NoError(t, coordinator.BeginDecode(context.Background()))
	assert.True(t, coordinator.Decoding())
	coordinator.EndDecode()
}

func TestScanCoordinatorEndDecodeIsIdempotent(t *testing.T) {
	decoder := &FakeDecoder{}
	coordinator := checkin.NewScanCoordinator(&MockAttendanceAPI{}).WithDecoder(decoder)

	require.NoError(t, coordinator.BeginDecode(context.Background()))
	coordinator.EndDecode()
	coordinator.EndDecode()

	require.Len(t, decoder.Sessions, 1)
	assert.Equal(t, 1, decoder.Sessions[0].Closed())
	assert.False(t, coordinator.Decoding())

	// A new session can open after teardown.
	require.NoError(t, coordinator.BeginDecode(context.Background()))
	assert.True(t, coordinator.Decoding())
	coordinator.EndDecode()
}

func TestScanCoordinatorClassQRRequiresSelection(t *testing.T) {
	api := &MockAttendanceAPI{}
	coordinator := checkin.NewScanCoordinator(api)

	_, err := coordinator.ClassQR(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, checkin.ErrNoClassSelected)

	api.On("MyClasses", mock.Anything).Return([]checkin.Class{{ID: "c1"}}, nil).Once()
	api.On("ClassQRCode", mock.Anything, "c1").
		Return(&checkin.ClassQR{Class: checkin.Class{ID: "c1"}}, nil).Once()

	require.NoError(t, coordinator.Load(context.Background()))
	qr, err := coordinator.ClassQR(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c1", qr.Class.ID)
	api.AssertExpectations(t)
}
