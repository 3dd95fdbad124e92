package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medkiosk/voice/internal/hospital"
	"github.com/medkiosk/voice/internal/shared"
)

const (
	dateLayout     = "2006-01-02"
	bookingWindow  = 7
	doctorLimit    = 10
	patientLimit   = 5
	infoLimit      = 5
	appointmentLim = 10
)

func (d *Dispatcher) getDepartments(ctx context.Context) map[string]any {
	departments, err := d.store.Departments(ctx)
	if err != nil {
		return map[string]any{"error": "Failed to fetch departments"}
	}
	return map[string]any{"departments": departments}
}

func (d *Dispatcher) getDoctorAvailability(ctx context.Context, args arguments) map[string]any {
	departmentName := args.str("departmentName")
	doctorName := args.str("doctorName")

	var departmentID *int64
	var departmentInfo map[string]any

	if departmentName != "" {
		dept, err := d.store.FindDepartment(ctx, departmentName)
		if errors.Is(err, shared.ErrNotFound) {
			return map[string]any{"message": fmt.Sprintf(
				"Department %q not found. Available: Cardiology, Neurology, Orthopedics, General Medicine, Pediatrics, Gynecology, Dermatology, ENT, Ophthalmology, Gastroenterology.",
				departmentName)}
		}
		if err != nil {
			return map[string]any{"error": "Failed to fetch doctor availability"}
		}
		departmentID = &dept.ID
		departmentInfo = map[string]any{"name": dept.Name, "floor": dept.Floor}
	}

	doctors, err := d.store.Doctors(ctx, departmentID, doctorName, doctorLimit)
	if err != nil {
		return map[string]any{"error": "Failed to fetch doctor availability"}
	}
	if len(doctors) == 0 {
		msg := "No doctors found"
		if departmentName != "" {
			msg += " in " + departmentName
		}
		return map[string]any{"message": msg}
	}

	entries := make([]map[string]any, 0, len(doctors))
	for _, doc := range doctors {
		entry := map[string]any{
			"id":             doc.ID,
			"name":           doc.Name,
			"specialization": doc.Specialization,
			"qualification":  doc.Qualification,
			"availableDays":  doc.AvailableDays,
		}
		if doc.Department != nil {
			entry["department"] = doc.Department.Name
			entry["floor"] = doc.Department.Floor
		}
		entries = append(entries, entry)
	}

	result := map[string]any{"doctors": entries}
	if departmentInfo != nil {
		result["department"] = departmentInfo
	}
	return result
}

func (d *Dispatcher) getDoctorTimeSlots(ctx context.Context, args arguments) map[string]any {
	doctorID := args.id("doctorId")
	doctorName := args.str("doctorName")

	var doctor *hospital.Doctor
	var err error
	switch {
	case doctorID != 0:
		doctor, err = d.store.DoctorByID(ctx, doctorID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return map[string]any{"error": "Failed to fetch time slots"}
		}
	case doctorName != "":
		doctor, err = d.store.FindDoctor(ctx, doctorName)
		if errors.Is(err, shared.ErrNotFound) {
			return map[string]any{"message": fmt.Sprintf("Could not find doctor %q.", doctorName)}
		}
		if err != nil {
			return map[string]any{"error": "Failed to fetch time slots"}
		}
		doctorID = doctor.ID
	default:
		return map[string]any{"message": "Please provide a doctor name or ID."}
	}

	today := d.now().Format(dateLayout)
	maxDate := d.now().AddDate(0, 0, bookingWindow).Format(dateLayout)
	targetDate := args.str("date")
	if targetDate == "" {
		targetDate = today
	}

	base := map[string]any{"doctorId": doctorID, "date": targetDate}
	if doctor != nil {
		base["doctorName"] = doctor.Name
	}

	if targetDate < today {
		base["message"] = "Cannot book for past dates."
		return base
	}
	if targetDate > maxDate {
		base["message"] = fmt.Sprintf("Can only book within next %d days (until %s).", bookingWindow, maxDate)
		return base
	}

	slots, err := d.store.AvailableSlots(ctx, doctorID, targetDate)
	if err != nil {
		return map[string]any{"error": "Failed to fetch time slots"}
	}
	if len(slots) == 0 {
		name := "this doctor"
		if doctor != nil {
			name = doctor.Name
		}
		base["message"] = fmt.Sprintf("No available slots for %s on %s.", name, targetDate)
		return base
	}

	entries := make([]map[string]any, 0, len(slots))
	for _, slot := range slots {
		entries = append(entries, map[string]any{
			"id":   slot.ID,
			"time": slot.StartTime + " - " + slot.EndTime,
		})
	}
	base["availableSlots"] = entries
	if doctor != nil {
		base["specialization"] = doctor.Specialization
		if doctor.Department != nil {
			base["department"] = doctor.Department.Name
		}
	}
	return base
}

func (d *Dispatcher) bookAppointment(ctx context.Context, args arguments) map[string]any {
	patientName := args.str("patientName")
	phone := args.str("phone")
	slotID := args.id("slotId")
	doctorID := args.id("doctorId")

	if patientName == "" || slotID == 0 || doctorID == 0 {
		return map[string]any{"error": "Missing patient name, slot, or doctor."}
	}

	slot, err := d.store.SlotByID(ctx, slotID)
	if err != nil {
		return map[string]any{"error": "Failed to book time slot. It may already be booked."}
	}
	doctor, err := d.store.DoctorByID(ctx, doctorID)
	if err != nil {
		return map[string]any{"error": "Failed to create appointment"}
	}

	appointmentDate := args.str("appointmentDate")
	if appointmentDate == "" {
		appointmentDate = slot.Date
	}

	appt := &hospital.Appointment{
		PatientName:     patientName,
		Phone:           phone,
		DoctorID:        doctorID,
		SlotID:          slotID,
		AppointmentDate: appointmentDate,
		Status:          hospital.StatusConfirmed,
	}
	if err := d.store.Book(ctx, appt); err != nil {
		if errors.Is(err, shared.ErrSlotTaken) {
			return map[string]any{"error": "Failed to book time slot. It may already be booked."}
		}
		return map[string]any{"error": "Failed to create appointment"}
	}

	result := map[string]any{
		"success":       true,
		"appointmentId": appt.ID,
		"patientName":   patientName,
		"phone":         phone,
		"doctorName":    doctor.Name,
		"date":          slot.Date,
		"time":          slot.StartTime + " - " + slot.EndTime,
		"message":       "Appointment booked successfully!",
	}
	if doctor.Department != nil {
		result["department"] = doctor.Department.Name
	}
	return result
}

func (d *Dispatcher) findPatient(ctx context.Context, args arguments) map[string]any {
	patientName := args.str("patientName")
	patients, err := d.store.SearchPatients(ctx, patientName, patientLimit)
	if err != nil {
		return map[string]any{"error": "Failed to search for patient"}
	}
	if len(patients) == 0 {
		return map[string]any{"message": "No patient found with that name"}
	}

	entries := make([]map[string]any, 0, len(patients))
	for _, p := range patients {
		entry := map[string]any{
			"name":       p.Name,
			"room":       p.RoomNumber,
			"diagnosis":  p.Diagnosis,
			"admittedAt": p.AdmittedAt.Format(time.RFC3339),
		}
		if p.Department != nil {
			entry["department"] = p.Department.Name
			entry["floor"] = p.Department.Floor
		}
		entries = append(entries, entry)
	}
	return map[string]any{"patients": entries}
}

func (d *Dispatcher) getHospitalInfo(ctx context.Context, args arguments) map[string]any {
	query := args.str("query")
	entries, err := d.store.SearchInfo(ctx, d.embedder, query, infoLimit)
	if err != nil {
		return map[string]any{"error": "Failed to fetch hospital information"}
	}

	info := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		info = append(info, map[string]any{
			"title":    entry.Title,
			"content":  entry.Content,
			"category": entry.Category,
		})
	}
	return map[string]any{"information": info}
}

// symptomMap routes described symptoms to a department suggestion. Ordered so
// suggestions come back in a stable sequence.
var symptomMap = []struct {
	department string
	keywords   []string
}{
	{"Cardiology", []string{"chest pain", "heart", "breathing difficulty", "blood pressure"}},
	{"Neurology", []string{"headache", "dizziness", "numbness", "seizure", "memory"}},
	{"Orthopedics", []string{"bone", "joint", "fracture", "back pain", "knee", "shoulder"}},
	{"Gastroenterology", []string{"stomach", "abdomen", "vomiting", "nausea", "digestion"}},
	{"ENT", []string{"ear", "nose", "throat", "hearing", "sinus"}},
	{"Ophthalmology", []string{"eye", "vision", "sight"}},
	{"Dermatology", []string{"skin", "rash", "itching", "allergy"}},
	{"General Medicine", []string{"fever", "cold", "cough", "weakness", "fatigue"}},
}

func (d *Dispatcher) suggestDepartment(args arguments) map[string]any {
	symptoms := strings.ToLower(args.str("symptoms"))

	var suggestions []string
	for _, entry := range symptomMap {
		for _, keyword := range entry.keywords {
			if strings.Contains(symptoms, keyword) {
				suggestions = append(suggestions, entry.department)
				break
			}
		}
	}
	if len(suggestions) == 0 {
		suggestions = []string{"General Medicine"}
	}
	return map[string]any{
		"suggestedDepartments": suggestions,
		"disclaimer":           "This is only a suggestion. Please consult with a doctor.",
	}
}

func (d *Dispatcher) getAppointmentDetails(ctx context.Context, args arguments) map[string]any {
	patientName := args.str("patientName")
	phone := args.str("phone")
	if patientName == "" && phone == "" {
		return map[string]any{"message": "Please provide name or phone number."}
	}

	appts, err := d.store.Appointments(ctx, patientName, phone, appointmentLim)
	if err != nil {
		return map[string]any{"error": "Failed to fetch appointments"}
	}
	if len(appts) == 0 {
		return map[string]any{"message": "No appointments found."}
	}

	entries := make([]map[string]any, 0, len(appts))
	for _, appt := range appts {
		entry := map[string]any{
			"id":          appt.ID,
			"patientName": appt.PatientName,
			"phone":       appt.Phone,
			"status":      appt.Status,
			"bookedOn":    appt.CreatedAt.Format(time.RFC3339),
			"date":        appt.AppointmentDate,
		}
		if appt.Doctor != nil {
			entry["doctorName"] = appt.Doctor.Name
			entry["specialization"] = appt.Doctor.Specialization
			if appt.Doctor.Department != nil {
				entry["department"] = appt.Doctor.Department.Name
				entry["floor"] = appt.Doctor.Department.Floor
			}
		}
		if appt.Slot != nil {
			entry["date"] = appt.Slot.Date
			entry["time"] = appt.Slot.StartTime + " - " + appt.Slot.EndTime
		}
		entries = append(entries, entry)
	}
	return map[string]any{
		"appointments": entries,
		"message":      fmt.Sprintf("Found %d appointment(s)", len(appts)),
	}
}
