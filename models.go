package checkin

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Session exists only while a signed-in identity is active. It is owned
// exclusively by the SessionStore and destroyed on sign-out or provider
// session loss.
type Session struct {
	IdentityID  string `json:"identity_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// UserProfile is the application profile for an identity. It may legitimately
// be absent while a Session exists; that is the Degraded readiness state, not
// an error to suppress.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Class is a class the backend assigned to the current user.
type Class struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Teacher string `json:"teacher,omitempty"`
}

// AttendanceRecord is the backend's record of one accepted check-in.
type AttendanceRecord struct {
	ID         string    `json:"id"`
	Status     string    `json:"status,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// ScanResult is the response payload of a scan submission.
type ScanResult struct {
	Student    UserProfile      `json:"student"`
	Class      Class            `json:"class"`
	Attendance AttendanceRecord `json:"attendance"`
}

// ScanRecord is one entry of the bounded recent-activity log. Records are
// session-scoped and rebuilt empty on re-entry.
type ScanRecord struct {
	ID         uuid.UUID        `json:"id"`
	Student    UserProfile      `json:"student"`
	Class      Class            `json:"class"`
	Attendance AttendanceRecord `json:"attendance"`
	ObservedAt time.Time        `json:"observed_at"`
}

// StudentQRCode is a student's personal check-in code.
type StudentQRCode struct {
	DataURL     string    `json:"dataURL"`
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// StudentQR is the response of GET /qr-code/my-qr.
type StudentQR struct {
	Student UserProfile   `json:"student"`
	QRCode  StudentQRCode `json:"qrCode"`
}

// ClassQRCode is a projected class code with an expiry window.
type ClassQRCode struct {
	DataURL   string    `json:"dataURL"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ClassQR is the response of GET /qr-code/class/:classId.
type ClassQR struct {
	Class  Class       `json:"class"`
	QRCode ClassQRCode `json:"qrCode"`
}

// LoginPayload carries a sign-in request.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (p LoginPayload) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&p,
			validation.Field(&p.Email, validation.Required, is.Email),
			validation.Field(&p.Password, validation.Required),
		)
	}, "Invalid login payload")
}

// RegisterPayload carries a registration request.
type RegisterPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Validate will run validation rules
func (p RegisterPayload) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&p,
			validation.Field(&p.Email, validation.Required, is.Email),
			validation.Field(&p.Password, validation.Required, validation.Length(6, 100)),
			validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&p.Role, validation.Required, validation.By(validateRole)),
		)
	}, "Invalid registration payload")
}

// CreateProfileInput creates the backend profile record for a fresh identity.
type CreateProfileInput struct {
	IdentityID string `json:"identityId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
}

// Validate will run validation rules
func (in CreateProfileInput) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&in,
			validation.Field(&in.IdentityID, validation.Required),
			validation.Field(&in.Email, validation.Required, is.Email),
			validation.Field(&in.Role, validation.Required, validation.By(validateRole)),
		)
	}, "Invalid profile payload")
}

// ScanSubmission posts a decoded QR payload against a class.
type ScanSubmission struct {
	QRString string `json:"qrString"`
	ClassID  string `json:"classId"`
}

// Validate will run validation rules
func (s ScanSubmission) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&s,
			validation.Field(&s.QRString, validation.Required),
			validation.Field(&s.ClassID, validation.Required),
		)
	}, "Invalid scan submission")
}

func validateEmail(email string) *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.Validate(email, validation.Required, is.Email)
	}, "Invalid email address")
}

func validateRole(value any) error {
	role, _ := value.(Role)
	if !role.IsValid() {
		return validation.NewError("validation_role", "must be one of student, teacher, admin")
	}
	return nil
}
