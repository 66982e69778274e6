package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Payload is the category specific body of a record.
type Payload interface {
	Category() Category
	Validate() error
	// OccurredAt returns the event date, or the zero time when the payload
	// carries none and the record falls back to its creation time.
	OccurredAt() time.Time
}

// Typed is implemented by payloads with a type dimension backing the type index.
type Typed interface {
	TypeKey() string
}

// Lifecycle tracks the active state of a mutable record.
type Lifecycle struct {
	Active             bool       `json:"active"`
	LastModified       time.Time  `json:"last_modified"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivationReason string     `json:"deactivation_reason,omitempty"`
}

// Record is a stored entry of one category owned by one subject.
type Record struct {
	ID        string     `json:"id"`
	Category  Category   `json:"category"`
	SubjectID string     `json:"subject_id"`
	Date      time.Time  `json:"date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Lifecycle *Lifecycle `json:"lifecycle,omitempty"`
	Payload   Payload    `json:"-"`
}

// Active reports whether the record counts as active. Non-mutable records
// are always active.
func (r Record) Active() bool {
	if r.Lifecycle == nil {
		return true
	}
	return r.Lifecycle.Active
}

// TypeKey returns the payload type dimension or "".
func (r Record) TypeKey() string {
	if typed, ok := r.Payload.(Typed); ok {
		return typed.TypeKey()
	}
	return ""
}

// Clone returns a deep copy safe to hand out of a store.
func (r Record) Clone() Record {
	out := r
	if r.Lifecycle != nil {
		lc := *r.Lifecycle
		if r.Lifecycle.DeactivatedAt != nil {
			at := *r.Lifecycle.DeactivatedAt
			lc.DeactivatedAt = &at
		}
		out.Lifecycle = &lc
	}
	if r.Payload != nil {
		if cloned, err := ClonePayload(r.Payload); err == nil {
			out.Payload = cloned
		}
	}
	return out
}

// Validate checks the record envelope and its payload.
func (r Record) Validate() error {
	if !r.Category.Valid() {
		return ValidationError{Category: r.Category, Reason: "unknown category"}
	}
	if strings.TrimSpace(r.SubjectID) == "" {
		return ValidationError{Category: r.Category, Fields: []string{"subject_id"}}
	}
	if r.Payload == nil {
		return ValidationError{Category: r.Category, Fields: []string{"payload"}}
	}
	if r.Payload.Category() != r.Category {
		return ValidationError{Category: r.Category, Reason: fmt.Sprintf("payload belongs to %s", r.Payload.Category())}
	}
	return r.Payload.Validate()
}

type recordAlias Record

// MarshalJSON emits the envelope with the payload under "payload".
func (r Record) MarshalJSON() ([]byte, error) {
	var payload json.RawMessage
	if r.Payload != nil {
		raw, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, err
		}
		payload = raw
	}
	return json.Marshal(struct {
		recordAlias
		Payload json.RawMessage `json:"payload,omitempty"`
	}{recordAlias: recordAlias(r), Payload: payload})
}

// UnmarshalJSON decodes the envelope and the payload of its category.
func (r *Record) UnmarshalJSON(data []byte) error {
	aux := struct {
		*recordAlias
		Payload json.RawMessage `json:"payload"`
	}{recordAlias: (*recordAlias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		r.Payload = nil
		return nil
	}
	payload, err := DecodePayload(r.Category, aux.Payload)
	if err != nil {
		return err
	}
	r.Payload = payload
	return nil
}

// DecodePayload decodes raw JSON into the payload type of c.
func DecodePayload(c Category, raw []byte) (Payload, error) {
	switch c {
	case CategorySeizureEvent:
		return decodeAs[SeizureEvent](raw)
	case CategoryTherapy:
		return decodeAs[Therapy](raw)
	case CategoryDevelopment:
		return decodeAs[DevelopmentCheckpoint](raw)
	case CategoryLabResult:
		return decodeAs[LabResult](raw)
	case CategoryMedication:
		return decodeAs[Medication](raw)
	case CategoryTransfusion:
		return decodeAs[Transfusion](raw)
	case CategoryHospitalization:
		return decodeAs[Hospitalization](raw)
	case CategoryOperation:
		return decodeAs[Operation](raw)
	case CategoryVaccination:
		return decodeAs[Vaccination](raw)
	case CategoryAnnualExam:
		return decodeAs[AnnualExam](raw)
	case CategoryDailyTracking:
		return decodeAs[DailyTracking](raw)
	case CategoryRedFlag:
		return decodeAs[RedFlagEvent](raw)
	case CategoryDoctorVisit:
		return decodeAs[DoctorVisit](raw)
	case CategoryFoodDiary:
		return decodeAs[FoodDiaryEntry](raw)
	case CategoryEliminationPlan:
		return decodeAs[EliminationPlan](raw)
	case CategoryTherapyHistory, CategoryBaseline:
		return nil, ValidationError{Category: c, Reason: "category has no record payload"}
	}
	return nil, ValidationError{Category: c, Reason: "unknown category"}
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, ValidationError{Category: out.Category(), Reason: err.Error()}
	}
	return out, nil
}

// ClonePayload deep copies p through its JSON form.
func ClonePayload(p Payload) (Payload, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return DecodePayload(p.Category(), raw)
}

// Patch is a partial payload keyed by JSON field name.
type Patch map[string]any

// ApplyPatch merges patch into p and returns the resulting payload. Unknown
// fields are rejected.
func ApplyPatch(p Payload, patch Patch) (Payload, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range patch {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, ValidationError{Category: p.Category(), Reason: err.Error()}
	}
	return DecodePayload(p.Category(), merged)
}

// EventDate resolves the date a record is indexed under.
func EventDate(p Payload, createdAt time.Time) time.Time {
	if p != nil {
		if at := p.OccurredAt(); !at.IsZero() {
			return at
		}
	}
	return createdAt
}
