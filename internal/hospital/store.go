package hospital

import (
	"context"
	"errors"
	"fmt"

	"github.com/medkiosk/voice/internal/shared"
	"github.com/qdrant/go-client/qdrant"
	"gorm.io/gorm"
)

const infoCollection = "hospital_info"

// EmbeddingService turns free text into a vector for semantic info search.
type EmbeddingService interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Store holds the hospital directory and booking tables. The qdrant client is
// optional; without it SearchInfo falls back to keyword matching.
type Store struct {
	db     *gorm.DB
	qdrant *qdrant.Client
}

func NewStore(db *gorm.DB, qdrantClient *qdrant.Client) *Store {
	return &Store{
		db:     db,
		qdrant: qdrantClient,
	}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Department{}, &Doctor{}, &TimeSlot{}, &Patient{}, &Appointment{}, &Info{})
}

func (s *Store) Departments(ctx context.Context) ([]*Department, error) {
	var departments []*Department
	err := s.db.WithContext(ctx).Order("name").Find(&departments).Error
	return departments, err
}

// FindDepartment matches a spoken department name case-insensitively on any
// substring, so "cardio" resolves to Cardiology.
func (s *Store) FindDepartment(ctx context.Context, name string) (*Department, error) {
	var dept Department
	err := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", "%"+shared.LowerPattern(name)+"%").
		First(&dept).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &dept, err
}

// Doctors lists doctors, optionally scoped to a department and filtered by a
// partial name.
func (s *Store) Doctors(ctx context.Context, departmentID *int64, name string, limit int) ([]*Doctor, error) {
	var doctors []*Doctor
	q := s.db.WithContext(ctx).Preload("Department")
	if departmentID != nil {
		q = q.Where("department_id = ?", *departmentID)
	}
	if name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+shared.LowerPattern(name)+"%")
	}
	err := q.Limit(limit).Find(&doctors).Error
	return doctors, err
}

func (s *Store) FindDoctor(ctx context.Context, name string) (*Doctor, error) {
	var doctor Doctor
	err := s.db.WithContext(ctx).Preload("Department").
		Where("LOWER(name) LIKE ?", "%"+shared.LowerPattern(name)+"%").
		First(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &doctor, err
}

func (s *Store) DoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	var doctor Doctor
	err := s.db.WithContext(ctx).Preload("Department").Where("id = ?", id).First(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &doctor, err
}

// AvailableSlots returns the unbooked slots for a doctor on one date, in
// start-time order.
func (s *Store) AvailableSlots(ctx context.Context, doctorID int64, date string) ([]*TimeSlot, error) {
	var slots []*TimeSlot
	err := s.db.WithContext(ctx).
		Where("doctor_id = ? AND date = ? AND is_booked = ?", doctorID, date, false).
		Order("start_time").
		Find(&slots).Error
	return slots, err
}

func (s *Store) SlotByID(ctx context.Context, id int64) (*TimeSlot, error) {
	var slot TimeSlot
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &slot, err
}

// Book reserves the slot and creates the appointment in one transaction. The
// reservation is a conditional write: when two bookings race for the same
// slot, exactly one sees RowsAffected == 1 and the loser gets ErrSlotTaken.
func (s *Store) Book(ctx context.Context, appt *Appointment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&TimeSlot{}).
			Where("id = ? AND is_booked = ?", appt.SlotID, false).
			Update("is_booked", true)
		if result.Error != nil {
			return fmt.Errorf("reserve slot: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.ErrSlotTaken
		}
		return tx.Create(appt).Error
	})
}

func (s *Store) SearchPatients(ctx context.Context, name string, limit int) ([]*Patient, error) {
	var patients []*Patient
	err := s.db.WithContext(ctx).Preload("Department").
		Where("LOWER(name) LIKE ?", "%"+shared.LowerPattern(name)+"%").
		Limit(limit).
		Find(&patients).Error
	return patients, err
}

// SearchInfo answers free-form questions about the hospital. With a qdrant
// client and embedder configured it ranks by vector similarity; otherwise it
// keyword-matches title, content, and category.
func (s *Store) SearchInfo(ctx context.Context, embedder EmbeddingService, query string, limit int) ([]*Info, error) {
	if s.qdrant != nil && embedder != nil {
		entries, err := s.searchInfoSemantic(ctx, embedder, query, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
	}

	var entries []*Info
	pattern := "%" + shared.LowerPattern(query) + "%"
	err := s.db.WithContext(ctx).
		Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ? OR LOWER(category) LIKE ?",
			pattern, pattern, pattern).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (s *Store) searchInfoSemantic(ctx context.Context, embedder EmbeddingService, query string, limit int) ([]*Info, error) {
	embedding, err := embedder.Generate(ctx, query)
	if err != nil || len(embedding) == 0 {
		return nil, err
	}

	results, err := s.qdrant.Query(ctx, &qdrant.QueryPoints{
		CollectionName: infoCollection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]*Info, 0, len(results))
	for _, point := range results {
		payload := point.GetPayload()
		if payload == nil {
			continue
		}
		entries = append(entries, &Info{
			Category: payload["category"].GetStringValue(),
			Title:    payload["title"].GetStringValue(),
			Content:  payload["content"].GetStringValue(),
		})
	}
	return entries, nil
}

// Appointments looks up existing bookings by patient name, phone, or both,
// newest appointment date first.
func (s *Store) Appointments(ctx context.Context, patientName, phone string, limit int) ([]*Appointment, error) {
	var appts []*Appointment
	q := s.db.WithContext(ctx).
		Preload("Doctor").Preload("Doctor.Department").Preload("Slot").
		Order("appointment_date DESC")
	if patientName != "" {
		q = q.Where("LOWER(patient_name) LIKE ?", "%"+shared.LowerPattern(patientName)+"%")
	}
	if phone != "" {
		q = q.Where("phone = ?", phone)
	}
	err := q.Limit(limit).Find(&appts).Error
	return appts, err
}
