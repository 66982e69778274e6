// Package archive exports generated reports and saved elimination plans as
// JSON artifacts to object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"afyafamilia/internal/blob"
	"afyafamilia/internal/report"
	"afyafamilia/pkg/domain"
)

// Kind groups artifacts under a key prefix.
type Kind string

// Artifact kinds.
const (
	KindReport Kind = "reports"
	KindPlan   Kind = "plans"
)

const contentTypeJSON = "application/json"

// Artifact metadata keys.
const (
	MetaSubject = "subject"
	MetaKind    = "kind"
)

// Archiver writes artifacts to a blob store. Artifacts are immutable; a
// second write to the same key fails with blob.ErrExists.
type Archiver struct {
	store blob.Store
}

// New returns an archiver over store.
func New(store blob.Store) *Archiver {
	return &Archiver{store: store}
}

// ReportKey is the key of a report generated for subjectID at generatedAt.
func ReportKey(subjectID string, generatedAt time.Time) string {
	return path.Join(string(KindReport), safeSegment(subjectID), generatedAt.UTC().Format("20060102T150405Z")+".json")
}

// PlanKey is the key of the saved plan record id.
func PlanKey(subjectID, id string) string {
	return path.Join(string(KindPlan), safeSegment(subjectID), safeSegment(id)+".json")
}

// SaveReport stores rep under ReportKey.
func (a *Archiver) SaveReport(ctx context.Context, rep report.Report) (blob.Info, error) {
	if strings.TrimSpace(rep.SubjectID) == "" {
		return blob.Info{}, domain.ValidationError{Fields: []string{"subject_id"}, Reason: "report subject is required"}
	}
	return a.put(ctx, ReportKey(rep.SubjectID, rep.GeneratedAt), KindReport, rep.SubjectID, rep)
}

// SavePlan stores a saved elimination plan record under PlanKey.
func (a *Archiver) SavePlan(ctx context.Context, rec domain.Record) (blob.Info, error) {
	if rec.Category != domain.CategoryEliminationPlan {
		return blob.Info{}, domain.ValidationError{Category: rec.Category, Reason: "not an elimination plan"}
	}
	if rec.ID == "" {
		return blob.Info{}, domain.ValidationError{Category: rec.Category, Fields: []string{"id"}, Reason: "plan record has no id"}
	}
	return a.put(ctx, PlanKey(rec.SubjectID, rec.ID), KindPlan, rec.SubjectID, rec)
}

func (a *Archiver) put(ctx context.Context, key string, kind Kind, subjectID string, v any) (blob.Info, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode %s: %w", key, err)
	}
	info, err := a.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: contentTypeJSON,
		Metadata:    map[string]string{MetaSubject: subjectID, MetaKind: string(kind)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive %s: %w", key, err)
	}
	return info, nil
}

// List returns the artifacts of kind for subjectID in key order, which is
// chronological for reports. An empty subject lists every subject.
func (a *Archiver) List(ctx context.Context, kind Kind, subjectID string) ([]blob.Info, error) {
	prefix := string(kind) + "/"
	if subjectID != "" {
		prefix += safeSegment(subjectID) + "/"
	}
	return a.store.List(ctx, prefix)
}

// LoadReport decodes the report stored at key.
func (a *Archiver) LoadReport(ctx context.Context, key string) (report.Report, error) {
	var rep report.Report
	if err := a.load(ctx, key, &rep); err != nil {
		return report.Report{}, err
	}
	return rep, nil
}

// LoadPlan decodes the plan record stored at key.
func (a *Archiver) LoadPlan(ctx context.Context, key string) (domain.Record, error) {
	var rec domain.Record
	if err := a.load(ctx, key, &rec); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (a *Archiver) load(ctx context.Context, key string, v any) error {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// URL returns a time-limited download link when the backend supports it.
func (a *Archiver) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return a.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
}

func safeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}
