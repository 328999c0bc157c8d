package domain

// Validation status codes for a cleaning task. The vocabulary is fixed and
// seeded by migration; the workflow only ever writes StatusAgentVerified or
// StatusProblem, the concierge states come from supervisor tooling.
const (
	StatusToDo               = "a-faire"
	StatusAgentVerified      = "verifie-agent"
	StatusProblem            = "probleme"
	StatusConciergeValidated = "verifie-concierge"
	StatusConciergeRejected  = "rejete-concierge"
)

// Message priorities.
const (
	PriorityNormal = "normale"
	PriorityUrgent = "urgente"
)

type Zone struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Residence struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortCode string `json:"short_code"`
	ZoneID    string `json:"zone_id"`
}

type Apartment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ShortCode   string     `json:"short_code"`
	ResidenceID string     `json:"residence_id"`
	Residence   *Residence `json:"residence,omitempty"`
}

// User is a row of the users table. ZoneIDs is the assigned-zones list used
// to route notifications and scope the residence filter.
type User struct {
	ID        string   `json:"id"`
	AuthID    string   `json:"auth_id"`
	FirstName string   `json:"first_name"`
	Role      string   `json:"role" enum:"agent,admin"`
	Active    bool     `json:"active"`
	ZoneIDs   []string `json:"zone_ids,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

// TaskType is a row of types_menage ("sortie", "hebdomadaire", ...).
type TaskType struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ValidationStatus is a row of validations_check_menage.
type ValidationStatus struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Task is one scheduled cleaning visit (a row of menages). Joined reference
// fields are read-only; the workflow never mutates them.
type Task struct {
	ID          string `json:"id"`
	DueDate     string `json:"due_date" format:"date"`
	AgentID     string `json:"agent_id"`
	ApartmentID string `json:"apartment_id"`
	TypeID      string `json:"type_id"`
	StatusID    string `json:"status_id"`

	StartTime           *string  `json:"start_time,omitempty"`
	EndTime             *string  `json:"end_time,omitempty"`
	AgentComment        *string  `json:"agent_comment,omitempty"`
	AgentPhotos         []string `json:"agent_photos,omitempty"`
	SupervisorComment   *string  `json:"supervisor_comment,omitempty"`
	SupervisorPhotos    []string `json:"supervisor_photos,omitempty"`
	LinenReplacement    bool     `json:"linen_replacement"`
	Problem             bool     `json:"problem"`
	CreatedBy           *string  `json:"created_by,omitempty"`
	AgentVerifiedAt     *string  `json:"agent_verified_at,omitempty"`
	ConciergeVerifiedAt *string  `json:"concierge_verified_at,omitempty"`

	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`

	Apartment *Apartment        `json:"apartment,omitempty"`
	Type      *TaskType         `json:"type,omitempty"`
	Status    *ValidationStatus `json:"status,omitempty"`
}

// StatusCode returns the joined validation code, or "" when the join is
// missing.
func (t Task) StatusCode() string {
	if t.Status == nil {
		return ""
	}
	return t.Status.Code
}

type Message struct {
	ID          string  `json:"id"`
	SenderID    string  `json:"sender_id"`
	RecipientID string  `json:"recipient_id"`
	Subject     *string `json:"subject,omitempty"`
	Body        string  `json:"body"`
	Priority    string  `json:"priority" enum:"normale,urgente"`
	Read        bool    `json:"read"`
	Archived    bool    `json:"archived"`
	DisplayDate *string `json:"display_date,omitempty" format:"date"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
