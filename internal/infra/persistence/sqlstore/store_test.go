package sqlstore

import (
	"strings"
	"testing"
	"time"
)

func TestDialectRebind(t *testing.T) {
	q := `INSERT INTO baselines(subject_id, payload) VALUES(?, ?)`
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `INSERT INTO baselines(subject_id, payload) VALUES($1, $2)`
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind: got %s want %s", got, want)
	}
}

func TestSchemaUsesDialectPayloadType(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		var tables int
		for _, stmt := range d.Schema() {
			if strings.HasPrefix(strings.TrimSpace(stmt), "CREATE TABLE") {
				tables++
				if strings.Contains(stmt, "payload") && !strings.Contains(stmt, "payload "+d.PayloadType) {
					t.Fatalf("%s: payload column not typed %s: %s", d.Name, d.PayloadType, stmt)
				}
			}
		}
		if tables != 4 {
			t.Fatalf("%s: expected 4 tables, got %d", d.Name, tables)
		}
	}
}

func TestFormatTimeSortsLexically(t *testing.T) {
	a := formatTime(time.Date(2024, 12, 31, 23, 59, 59, 0, time.FixedZone("EAT", 3*3600)))
	b := formatTime(time.Date(2025, 1, 1, 0, 0, 0, 5, time.UTC))
	if a >= b {
		t.Fatalf("expected %s < %s", a, b)
	}
	if len(a) != len(b) {
		t.Fatalf("expected fixed width timestamps")
	}
}
