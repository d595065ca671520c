package attendance

import "time"

// Status is the lifecycle state of an attendance session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

const (
	// DefaultRosterCapacity is the number of rows on the printed sheet.
	DefaultRosterCapacity = 30
	// PlaceholderEmail marks padding rows that have no professional at all.
	PlaceholderEmail = "N/A"
)

// Professional is a registered participant identified by an opaque biometric code.
type Professional struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	RegistrationCode string    `json:"registration_code,omitempty"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Profession       string    `json:"profession"`
	Employer         string    `json:"company"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewProfessional holds the fields supplied at registration.
type NewProfessional struct {
	Code       string
	Name       string
	Email      string
	Profession string
	Employer   string
}

// Session is one training event for which attendance is tracked.
type Session struct {
	ID                      string     `json:"id"`
	FacilityName            string     `json:"installation_name"`
	MeetingDate             string     `json:"meeting_date"`
	MeetingTime             string     `json:"meeting_time"`
	CourseTitle             string     `json:"course_title"`
	CourseContent           string     `json:"course_content"`
	InstructorName          string     `json:"instructor_name"`
	InstructorRole          string     `json:"instructor_role"`
	InstructorQualification string     `json:"instructor_qualification"`
	Location                string     `json:"location"`
	Status                  Status     `json:"status"`
	StartedAt               time.Time  `json:"start_time"`
	EndedAt                 *time.Time `json:"end_time"`
	Duration                *string    `json:"duration"`
	CreatedAt               time.Time  `json:"created_at"`
}

// Active reports whether the session still accepts check-ins.
func (s Session) Active() bool { return s.Status == StatusActive }

// NewSession holds the descriptive fields a facilitator supplies when opening a session.
type NewSession struct {
	FacilityName            string
	MeetingDate             string
	MeetingTime             string
	CourseTitle             string
	CourseContent           string
	InstructorName          string
	InstructorRole          string
	InstructorQualification string
	Location                string
}

// CheckinRecord is one attendance event. Location is copied from the session
// when the record is created and never re-read.
type CheckinRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"list_id"`
	ProfessionalID string    `json:"professional_id"`
	Location       string    `json:"local"`
	Sequence       int       `json:"row_number"`
	EnteredAt      time.Time `json:"entry_time"`
}

// CheckinView is a record joined with the professional's current profile at read time.
type CheckinView struct {
	CheckinRecord
	ProfessionalName       string `json:"professional_name"`
	ProfessionalEmail      string `json:"professional_email"`
	ProfessionalProfession string `json:"professional_profession"`
	ProfessionalEmployer   string `json:"professional_company"`
}

func viewOf(rec CheckinRecord, p Professional) CheckinView {
	return CheckinView{
		CheckinRecord:          rec,
		ProfessionalName:       p.Name,
		ProfessionalEmail:      p.Email,
		ProfessionalProfession: p.Profession,
		ProfessionalEmployer:   p.Employer,
	}
}

// RosterRow is one line of the exported attendance sheet.
type RosterRow struct {
	Sequence    int    `json:"row_number"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Profession  string `json:"profession"`
	Employer    string `json:"company"`
	Location    string `json:"location"`
	Placeholder bool   `json:"placeholder"`
}

// Roster is a session together with its ordered, padded rows.
type Roster struct {
	Session Session     `json:"session"`
	Rows    []RosterRow `json:"rows"`
}
