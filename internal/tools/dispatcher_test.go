package tools

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/medkiosk/voice/internal/hospital"
	"github.com/medkiosk/voice/internal/live"
	"github.com/medkiosk/voice/internal/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

type testFixture struct {
	dispatcher *Dispatcher
	store      *hospital.Store
	db         *gorm.DB
	doctorID   int64
	slotID     int64
}

func setupFixture(t *testing.T) *testFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	store := hospital.NewStore(db, nil)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	dept := &hospital.Department{Name: "Cardiology", Floor: 3, Phone: "044-2100"}
	db.Create(dept)
	doctor := &hospital.Doctor{
		Name:           "Dr. Meena Iyer",
		DepartmentID:   dept.ID,
		Specialization: "Interventional Cardiology",
		AvailableDays:  shared.StringSlice{"Monday", "Wednesday"},
	}
	db.Create(doctor)
	slot := &hospital.TimeSlot{DoctorID: doctor.ID, Date: "2026-09-01", StartTime: "09:00", EndTime: "09:30"}
	db.Create(slot)
	db.Create(&hospital.Patient{Name: "Lakshmi Narayanan", RoomNumber: "304", DepartmentID: dept.ID, Diagnosis: "Post-op recovery", AdmittedAt: testNow})
	db.Create(&hospital.Info{Category: "visiting", Title: "Visiting Hours", Content: "Daily 10:00 to 12:00."})

	d := NewDispatcher(store, nil, nil, WithClock(func() time.Time { return testNow }))
	return &testFixture{dispatcher: d, store: store, db: db, doctorID: doctor.ID, slotID: slot.ID}
}

func call(name string, args map[string]any) live.FunctionCall {
	return live.FunctionCall{Name: name, ID: "call-" + name, Args: args}
}

func executeOne(t *testing.T, f *testFixture, c live.FunctionCall) map[string]any {
	t.Helper()
	responses := f.dispatcher.Execute(context.Background(), "sess_test", []live.FunctionCall{c})
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if responses[0].ID != c.ID || responses[0].Name != c.Name {
		t.Fatalf("response must echo call id and name: %+v", responses[0])
	}
	return responses[0].Response
}

func TestDispatcher_GetDepartments(t *testing.T) {
	f := setupFixture(t)
	result := executeOne(t, f, call("getDepartments", nil))

	departments, ok := result["departments"].([]*hospital.Department)
	if !ok || len(departments) != 1 {
		t.Fatalf("expected 1 department, got %v", result)
	}
	if departments[0].Name != "Cardiology" {
		t.Errorf("unexpected department: %s", departments[0].Name)
	}
}

func TestDispatcher_DoctorAvailabilityUnknownDepartment(t *testing.T) {
	f := setupFixture(t)
	result := executeOne(t, f, call("getDoctorAvailability", map[string]any{"departmentName": "Astrology"}))

	msg, _ := result["message"].(string)
	if msg == "" {
		t.Fatalf("expected a not-found message, got %v", result)
	}
	if want := `Department "Astrology" not found`; len(msg) < len(want) || msg[:len(want)] != want {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestDispatcher_DoctorAvailabilityByDepartment(t *testing.T) {
	f := setupFixture(t)
	result := executeOne(t, f, call("getDoctorAvailability", map[string]any{"departmentName": "cardio"}))

	doctors, ok := result["doctors"].([]map[string]any)
	if !ok || len(doctors) != 1 {
		t.Fatalf("expected 1 doctor, got %v", result)
	}
	if doctors[0]["name"] != "Dr. Meena Iyer" || doctors[0]["floor"] != 3 {
		t.Errorf("doctor entry incomplete: %v", doctors[0])
	}
	dept, _ := result["department"].(map[string]any)
	if dept["name"] != "Cardiology" {
		t.Errorf("department header missing: %v", result)
	}
}

func TestDispatcher_TimeSlotsDateWindow(t *testing.T) {
	f := setupFixture(t)

	past := executeOne(t, f, call("getDoctorTimeSlots", map[string]any{
		"doctorId": float64(f.doctorID), "date": "2026-08-30",
	}))
	if past["message"] != "Cannot book for past dates." {
		t.Errorf("past date must be rejected: %v", past)
	}

	far := executeOne(t, f, call("getDoctorTimeSlots", map[string]any{
		"doctorId": float64(f.doctorID), "date": "2026-09-20",
	}))
	if far["message"] != "Can only book within next 7 days (until 2026-09-08)." {
		t.Errorf("far date must be rejected: %v", far)
	}

	today := executeOne(t, f, call("getDoctorTimeSlots", map[string]any{
		"doctorId": float64(f.doctorID),
	}))
	slots, ok := today["availableSlots"].([]map[string]any)
	if !ok || len(slots) != 1 {
		t.Fatalf("expected 1 slot for default date, got %v", today)
	}
	if slots[0]["time"] != "09:00 - 09:30" {
		t.Errorf("unexpected slot time: %v", slots[0])
	}
}

func TestDispatcher_TimeSlotsUnknownDoctor(t *testing.T) {
	f := setupFixture(t)

	result := executeOne(t, f, call("getDoctorTimeSlots", map[string]any{"doctorName": "Dr. Nobody"}))
	if result["message"] != `Could not find doctor "Dr. Nobody".` {
		t.Errorf("unexpected result: %v", result)
	}

	result = executeOne(t, f, call("getDoctorTimeSlots", nil))
	if result["message"] != "Please provide a doctor name or ID." {
		t.Errorf("missing-args message expected, got %v", result)
	}
}

func TestDispatcher_BookAppointment(t *testing.T) {
	f := setupFixture(t)

	result := executeOne(t, f, call("bookAppointment", map[string]any{
		"patientName": "Ravi Kumar",
		"phone":       "9840012345",
		"doctorId":    float64(f.doctorID),
		"slotId":      float64(f.slotID),
	}))

	if result["success"] != true {
		t.Fatalf("booking should succeed: %v", result)
	}
	if result["message"] != "Appointment booked successfully!" {
		t.Errorf("unexpected message: %v", result["message"])
	}
	if result["doctorName"] != "Dr. Meena Iyer" || result["time"] != "09:00 - 09:30" {
		t.Errorf("confirmation incomplete: %v", result)
	}

	again := executeOne(t, f, call("bookAppointment", map[string]any{
		"patientName": "Anita Rao",
		"doctorId":    float64(f.doctorID),
		"slotId":      float64(f.slotID),
	}))
	if again["error"] != "Failed to book time slot. It may already be booked." {
		t.Errorf("double booking must fail with the conflict message: %v", again)
	}
}

func TestDispatcher_ConcurrentBookingOneWinner(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	results := make([]map[string]any, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses := f.dispatcher.Execute(ctx, "sess_test", []live.FunctionCall{
				call("bookAppointment", map[string]any{
					"patientName": fmt.Sprintf("Visitor %d", i),
					"doctorId":    float64(f.doctorID),
					"slotId":      float64(f.slotID),
				}),
			})
			results[i] = responses[0].Response
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, result := range results {
		if result["success"] == true {
			wins++
		} else if result["error"] != "Failed to book time slot. It may already be booked." {
			t.Errorf("loser must get the conflict message, got %v", result)
		}
	}
	if wins != 1 {
		t.Errorf("exactly one booking must win, got %d", wins)
	}
}

func TestDispatcher_FindPatient(t *testing.T) {
	f := setupFixture(t)

	result := executeOne(t, f, call("findPatient", map[string]any{"patientName": "lakshmi"}))
	patients, ok := result["patients"].([]map[string]any)
	if !ok || len(patients) != 1 {
		t.Fatalf("expected 1 patient, got %v", result)
	}
	if patients[0]["room"] != "304" || patients[0]["department"] != "Cardiology" {
		t.Errorf("patient entry incomplete: %v", patients[0])
	}

	missing := executeOne(t, f, call("findPatient", map[string]any{"patientName": "nobody"}))
	if missing["message"] != "No patient found with that name" {
		t.Errorf("unexpected result: %v", missing)
	}
}

func TestDispatcher_HospitalInfo(t *testing.T) {
	f := setupFixture(t)

	result := executeOne(t, f, call("getHospitalInfo", map[string]any{"query": "visiting"}))
	info, ok := result["information"].([]map[string]any)
	if !ok || len(info) != 1 {
		t.Fatalf("expected 1 info entry, got %v", result)
	}
	if info[0]["title"] != "Visiting Hours" {
		t.Errorf("unexpected entry: %v", info[0])
	}
}

func TestDispatcher_SuggestDepartment(t *testing.T) {
	f := setupFixture(t)

	result := executeOne(t, f, call("suggestDepartment", map[string]any{
		"symptoms": "I have chest pain and a bad headache",
	}))
	suggestions, ok := result["suggestedDepartments"].([]string)
	if !ok || len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %v", result)
	}
	if suggestions[0] != "Cardiology" || suggestions[1] != "Neurology" {
		t.Errorf("unexpected suggestions: %v", suggestions)
	}
	if result["disclaimer"] != "This is only a suggestion. Please consult with a doctor." {
		t.Error("disclaimer must always be present")
	}

	fallback := executeOne(t, f, call("suggestDepartment", map[string]any{"symptoms": "just tired of queues"}))
	suggestions, _ = fallback["suggestedDepartments"].([]string)
	if len(suggestions) != 1 || suggestions[0] != "General Medicine" {
		t.Errorf("unmatched symptoms must fall back to General Medicine: %v", fallback)
	}
}

func TestDispatcher_AppointmentDetails(t *testing.T) {
	f := setupFixture(t)

	executeOne(t, f, call("bookAppointment", map[string]any{
		"patientName": "Ravi Kumar",
		"phone":       "9840012345",
		"doctorId":    float64(f.doctorID),
		"slotId":      float64(f.slotID),
	}))

	result := executeOne(t, f, call("getAppointmentDetails", map[string]any{"patientName": "ravi"}))
	appts, ok := result["appointments"].([]map[string]any)
	if !ok || len(appts) != 1 {
		t.Fatalf("expected 1 appointment, got %v", result)
	}
	if appts[0]["doctorName"] != "Dr. Meena Iyer" || appts[0]["time"] != "09:00 - 09:30" {
		t.Errorf("appointment entry incomplete: %v", appts[0])
	}
	if result["message"] != "Found 1 appointment(s)" {
		t.Errorf("unexpected message: %v", result["message"])
	}

	noArgs := executeOne(t, f, call("getAppointmentDetails", nil))
	if noArgs["message"] != "Please provide name or phone number." {
		t.Errorf("missing-args message expected, got %v", noArgs)
	}
}

func TestDispatcher_UnknownFunction(t *testing.T) {
	f := setupFixture(t)
	result := executeOne(t, f, call("launchRocket", nil))
	if result["error"] != "Unknown function: launchRocket" {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestDispatcher_BatchPreservesOrder(t *testing.T) {
	f := setupFixture(t)

	calls := []live.FunctionCall{
		{Name: "getDepartments", ID: "c1"},
		{Name: "suggestDepartment", ID: "c2", Args: map[string]any{"symptoms": "fever"}},
		{Name: "launchRocket", ID: "c3"},
	}
	responses := f.dispatcher.Execute(context.Background(), "sess_test", calls)
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}
	for i, c := range calls {
		if responses[i].ID != c.ID || responses[i].Name != c.Name {
			t.Errorf("response %d out of order: %+v", i, responses[i])
		}
	}
	if responses[2].Response["error"] != "Unknown function: launchRocket" {
		t.Error("per-call failure must not abort the batch")
	}
}

func TestDispatcher_SlowCallTimesOut(t *testing.T) {
	f := setupFixture(t)
	f.dispatcher.timeout = 50 * time.Millisecond

	release := make(chan struct{})
	defer close(release)
	inner := f.dispatcher.run
	f.dispatcher.run = func(ctx context.Context, c live.FunctionCall) map[string]any {
		if c.Name == "getDepartments" {
			// Ignores ctx, like a handler stuck on a slow query.
			<-release
			return map[string]any{"departments": nil}
		}
		return inner(ctx, c)
	}

	calls := []live.FunctionCall{
		{Name: "getDepartments", ID: "c1"},
		{Name: "suggestDepartment", ID: "c2", Args: map[string]any{"symptoms": "fever"}},
	}
	responses := f.dispatcher.Execute(context.Background(), "sess_test", calls)

	if responses[0].ID != "c1" || responses[0].Response["error"] != "Tool execution timed out" {
		t.Errorf("stuck call must yield a timeout error on its own id: %+v", responses[0])
	}
	if responses[1].ID != "c2" || responses[1].Response["error"] != nil {
		t.Errorf("other call in the batch must still succeed: %+v", responses[1])
	}
}

type captureRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureRecorder) ToolCall(sessionID, name string, meta shared.JSONMap) {
	c.mu.Lock()
	c.calls = append(c.calls, name)
	c.mu.Unlock()
}

func TestDispatcher_RecordsToolCalls(t *testing.T) {
	f := setupFixture(t)
	rec := &captureRecorder{}
	f.dispatcher.recorder = rec

	executeOne(t, f, call("getDepartments", nil))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) != 1 || rec.calls[0] != "getDepartments" {
		t.Errorf("tool call should be recorded: %v", rec.calls)
	}
}
