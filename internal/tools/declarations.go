package tools

import "github.com/medkiosk/voice/internal/live"

// Declarations returns the function surface advertised to the model during
// session setup.
func Declarations() []live.Tool {
	return []live.Tool{{FunctionDeclarations: []live.FunctionDeclaration{
		{
			Name:        "getDepartments",
			Description: "List every hospital department with its floor and phone number.",
		},
		{
			Name:        "getDoctorAvailability",
			Description: "Find doctors by department, by name, or both, with their working days.",
			Parameters: &live.Schema{
				Type: "object",
				Properties: map[string]*live.Schema{
					"departmentName": {Type: "string", Description: "Department to search, e.g. Cardiology."},
					"doctorName":     {Type: "string", Description: "Full or partial doctor name."},
				},
			},
		},
		{
			Name:        "getDoctorTimeSlots",
			Description: "List a doctor's open appointment slots for a date within the next 7 days.",
			Parameters: &live.Schema{
				Type: "object",
				Properties: map[string]*live.Schema{
					"doctorName": {Type: "string", Description: "Full or partial doctor name."},
					"doctorId":   {Type: "integer", Description: "Doctor id from a previous lookup."},
					"date":       {Type: "string", Description: "Date in YYYY-MM-DD form. Defaults to today."},
				},
			},
		},
		{
			Name:        "bookAppointment",
			Description: "Book a specific open slot for a patient. Requires a slot id from getDoctorTimeSlots.",
			Parameters: &live.Schema{
				Type: "object",
				Properties: map[string]*live.Schema{
					"patientName":     {Type: "string", Description: "Patient's full name."},
					"phone":           {Type: "string", Description: "Patient's contact number."},
					"doctorId":        {Type: "integer"},
					"slotId":          {Type: "integer"},
					"appointmentDate": {Type: "string", Description: "Date in YYYY-MM-DD form."},
				},
				Required: []string{"patientName", "doctorId", "slotId"},
			},
		},
		{
			Name:        "findPatient",
			Description: "Look up an admitted patient's room, department, and floor by name.",
			Parameters: &live.Schema{
				Type: "object",
				Properties: map[string]*live.Schema{
					"patientName": {Type: "string", Description: "Full or partial patient name."},
				},
				Required: []string{"patientName"},
			},
		},
		{
			Name:        "getHospitalInfo",
			Description: "Answer general questions about the hospital: visiting hours, pharmacy, billing, facilities.",
			Parameters: &live.Schema{
				Type: "object",
				Properties: map[string]*live.Schema{
					"query": {Type: "string", Description: "What the visitor wants to know."},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "suggestDepartment",
			Description: "Suggest which department to visit based on described symptoms.",
			Parameters: &live.Schema{
				Type: "object",
				Properties: map[string]*live.Schema{
					"symptoms": {Type: "string", Description: "Symptoms in the visitor's own words."},
				},
				Required: []string{"symptoms"},
			},
		},
		{
			Name:        "getAppointmentDetails",
			Description: "Look up existing appointments by patient name, phone number, or both.",
			Parameters: &live.Schema{
				Type: "object",
				Properties: map[string]*live.Schema{
					"patientName": {Type: "string"},
					"phone":       {Type: "string"},
				},
			},
		},
	}}}
}
