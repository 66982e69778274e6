package domain

import "sort"

// SchemaVersion is the current persisted layout version. Stores holding an
// older version are migrated once on open.
const SchemaVersion = 3

// IndexKey names a secondary index maintained for a category.
type IndexKey string

// Secondary indices.
const (
	IndexSubject    IndexKey = "subject_id"
	IndexDate       IndexKey = "date"
	IndexActive     IndexKey = "active"
	IndexType       IndexKey = "type"
	IndexRecord     IndexKey = "record_id"
	IndexChangeDate IndexKey = "change_date"
)

// CategorySpec declares how a category is stored and indexed.
type CategorySpec struct {
	Category Category
	Indices  []IndexKey
	// Mutable categories carry a Lifecycle and every change is audited.
	Mutable bool
	// Audit marks the append-only audit trail category.
	Audit bool
	// Singleton categories hold at most one row per subject, keyed by subject id.
	Singleton bool
	// DateField is the payload field backing the date index.
	DateField string
	// TypeField is the payload field backing the type index, if any.
	TypeField string
}

// HasIndex reports whether the category declares the index.
func (s CategorySpec) HasIndex(key IndexKey) bool {
	for _, k := range s.Indices {
		if k == key {
			return true
		}
	}
	return false
}

var (
	subjectDate       = []IndexKey{IndexSubject, IndexDate}
	subjectDateType   = []IndexKey{IndexSubject, IndexDate, IndexType}
	subjectDateActive = []IndexKey{IndexSubject, IndexDate, IndexActive}
)

// Spec returns the registry entry for c.
func Spec(c Category) (CategorySpec, bool) {
	switch c {
	case CategorySeizureEvent:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "date_time"}, true
	case CategoryTherapy:
		return CategorySpec{Category: c, Indices: subjectDateActive, Mutable: true, DateField: "created_at"}, true
	case CategoryTherapyHistory:
		return CategorySpec{Category: c, Indices: []IndexKey{IndexRecord, IndexChangeDate}, Audit: true, DateField: "changed_at"}, true
	case CategoryDevelopment:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "record_date"}, true
	case CategoryLabResult:
		return CategorySpec{Category: c, Indices: subjectDateType, DateField: "date", TypeField: "test_type"}, true
	case CategoryMedication:
		return CategorySpec{Category: c, Indices: subjectDateActive, Mutable: true, DateField: "start_date"}, true
	case CategoryTransfusion:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "date"}, true
	case CategoryHospitalization:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "admission_date"}, true
	case CategoryOperation:
		return CategorySpec{Category: c, Indices: subjectDateType, DateField: "date", TypeField: "type"}, true
	case CategoryVaccination:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "date"}, true
	case CategoryAnnualExam:
		return CategorySpec{Category: c, Indices: subjectDateType, DateField: "date", TypeField: "exam_type"}, true
	case CategoryDailyTracking:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "date"}, true
	case CategoryRedFlag:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "date"}, true
	case CategoryDoctorVisit:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "date"}, true
	case CategoryBaseline:
		return CategorySpec{Category: c, Indices: []IndexKey{IndexSubject}, Singleton: true}, true
	case CategoryFoodDiary:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "date"}, true
	case CategoryEliminationPlan:
		return CategorySpec{Category: c, Indices: subjectDate, DateField: "created_at"}, true
	}
	return CategorySpec{}, false
}

// Registry returns the CategorySpec of every category in declaration order.
func Registry() []CategorySpec {
	out := make([]CategorySpec, 0, len(allCategories))
	for _, c := range allCategories {
		spec, _ := Spec(c)
		out = append(out, spec)
	}
	return out
}

// Migration upgrades a snapshot persisted at version From to From+1.
type Migration struct {
	From        int
	Description string
	Apply       func(*Snapshot)
}

var migrations = []Migration{
	{
		From:        1,
		Description: "default baseline standard deviation to 1.0",
		Apply: func(s *Snapshot) {
			for i := range s.Baselines {
				if s.Baselines[i].HbStdDev <= 0 {
					s.Baselines[i].HbStdDev = DefaultStdDev
				}
			}
		},
	},
	{
		From:        2,
		Description: "backfill lifecycle on mutable records and event dates",
		Apply: func(s *Snapshot) {
			for i := range s.Records {
				rec := &s.Records[i]
				if rec.Category.IsMutable() && rec.Lifecycle == nil {
					rec.Lifecycle = &Lifecycle{Active: true, LastModified: rec.UpdatedAt}
				}
				if rec.Date.IsZero() {
					rec.Date = rec.CreatedAt
				}
			}
		},
	},
}

// Migrations returns the registered migrations ordered by source version.
func Migrations() []Migration {
	out := append([]Migration(nil), migrations...)
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// Migrate upgrades s to SchemaVersion. A zero version denotes a fresh store
// and is stamped without running migrations. It reports whether any
// migration ran.
func Migrate(s Snapshot) (Snapshot, bool) {
	if s.Version == 0 {
		s.Version = SchemaVersion
		return s, false
	}
	ran := false
	for _, m := range Migrations() {
		if s.Version != m.From || s.Version >= SchemaVersion {
			continue
		}
		m.Apply(&s)
		s.Version = m.From + 1
		ran = true
	}
	return s, ran
}
