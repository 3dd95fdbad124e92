package hospital

import (
	"time"

	"github.com/medkiosk/voice/internal/shared"
)

type Department struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null;uniqueIndex" json:"name"`
	Floor       int    `json:"floor"`
	Description string `json:"description,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type Doctor struct {
	ID             int64              `gorm:"primaryKey" json:"id"`
	Name           string             `gorm:"not null;index" json:"name"`
	DepartmentID   int64              `gorm:"not null;index" json:"department_id"`
	Department     *Department        `json:"department,omitempty"`
	Specialization string             `json:"specialization,omitempty"`
	Qualification  string             `json:"qualification,omitempty"`
	AvailableDays  shared.StringSlice `gorm:"type:json" json:"available_days,omitempty"`
	ImageURL       string             `json:"image_url,omitempty"`
}

// TimeSlot dates and times are stored as strings, "2006-01-02" and "15:04",
// so slot queries compare lexically.
type TimeSlot struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	DoctorID  int64  `gorm:"not null;index:idx_doctor_date" json:"doctor_id"`
	Date      string `gorm:"not null;index:idx_doctor_date" json:"date"`
	StartTime string `gorm:"not null" json:"start_time"`
	EndTime   string `gorm:"not null" json:"end_time"`
	IsBooked  bool   `gorm:"default:false" json:"is_booked"`
}

type Patient struct {
	ID           int64       `gorm:"primaryKey" json:"id"`
	Name         string      `gorm:"not null;index" json:"name"`
	Phone        string      `json:"phone,omitempty"`
	RoomNumber   string      `json:"room_number,omitempty"`
	DepartmentID int64       `gorm:"index" json:"department_id"`
	Department   *Department `json:"department,omitempty"`
	Diagnosis    string      `json:"diagnosis,omitempty"`
	AdmittedAt   time.Time   `json:"admitted_at"`
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID              int64             `gorm:"primaryKey" json:"id"`
	PatientName     string            `gorm:"not null;index" json:"patient_name"`
	Phone           string            `gorm:"index" json:"phone,omitempty"`
	DoctorID        int64             `gorm:"not null;index" json:"doctor_id"`
	Doctor          *Doctor           `json:"doctor,omitempty"`
	SlotID          int64             `gorm:"not null;uniqueIndex" json:"slot_id"`
	Slot            *TimeSlot         `gorm:"foreignKey:SlotID" json:"slot,omitempty"`
	AppointmentDate string            `json:"appointment_date,omitempty"`
	Status          AppointmentStatus `gorm:"default:'confirmed'" json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

type Info struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Category string `gorm:"index" json:"category"`
	Title    string `gorm:"not null" json:"title"`
	Content  string `json:"content"`
}
