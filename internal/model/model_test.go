package model

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestStatusConstants(t *testing.T) {
	statuses := []struct {
		constant Status
		expected string
	}{
		{StatusCreated, "created"},
		{StatusUploaded, "uploaded"},
		{StatusQueued, "queued"},
		{StatusKilled, "killed"},
		{StatusDeleted, "deleted"},
	}
	for _, s := range statuses {
		if string(s.constant) != s.expected {
			t.Errorf("status constant = %q, want %q", s.constant, s.expected)
		}
		if !s.constant.Valid() {
			t.Errorf("%q.Valid() = false, want true", s.constant)
		}
	}
	if Status("running").Valid() {
		t.Error(`Status("running").Valid() = true, want false`)
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusUploaded, true},
		{StatusCreated, StatusQueued, true},
		{StatusCreated, StatusKilled, true},
		{StatusCreated, StatusDeleted, true},
		{StatusCreated, StatusCreated, false},
		{StatusUploaded, StatusUploaded, true},
		{StatusUploaded, StatusQueued, true},
		{StatusUploaded, StatusCreated, false},
		{StatusQueued, StatusUploaded, false},
		{StatusQueued, StatusQueued, true},
		{StatusQueued, StatusKilled, true},
		{StatusKilled, StatusKilled, true},
		{StatusKilled, StatusDeleted, true},
		{StatusKilled, StatusQueued, false},
		{StatusKilled, StatusUploaded, false},
		{StatusDeleted, StatusDeleted, true},
		{StatusDeleted, StatusKilled, false},
		{StatusDeleted, StatusUploaded, false},
		{StatusDeleted, StatusQueued, false},
		{Status("bogus"), StatusDeleted, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRecordFieldsRoundTrip(t *testing.T) {
	r := &Record{
		ProcessID:    "01HZX",
		Status:       StatusUploaded,
		ObjectBucket: "proc-data",
		ObjectKey:    ObjectKey("01HZX"),
	}

	fields := r.Fields()
	if len(fields) != 5 {
		t.Fatalf("len(Fields()) = %d, want 5", len(fields))
	}
	if fields[FieldStatus] != "uploaded" {
		t.Errorf("status field = %q, want %q", fields[FieldStatus], "uploaded")
	}
	if v, ok := fields[FieldError]; !ok || v != "" {
		t.Errorf("error field = %q (present=%v), want empty and present", v, ok)
	}

	got, err := DecodeRecord(fields)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if *got != *r {
		t.Errorf("DecodeRecord = %+v, want %+v", *got, *r)
	}
}

func TestDecodeRecordMissingField(t *testing.T) {
	for _, name := range []string{FieldProcessID, FieldStatus, FieldObjectBucket, FieldObjectKey} {
		fields := (&Record{ProcessID: "p", Status: StatusCreated}).Fields()
		delete(fields, name)

		_, err := DecodeRecord(fields)
		if !errors.Is(err, ErrCorruptRecord) {
			t.Errorf("missing %q: error = %v, want ErrCorruptRecord", name, err)
		}
	}
}

func TestDecodeRecordErrorOptional(t *testing.T) {
	fields := (&Record{ProcessID: "p", Status: StatusKilled}).Fields()
	delete(fields, FieldError)

	got, err := DecodeRecord(fields)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}
}

func TestDecodeRecordUnknownStatus(t *testing.T) {
	fields := (&Record{ProcessID: "p", Status: "running"}).Fields()

	_, err := DecodeRecord(fields)
	if !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("error = %v, want ErrCorruptRecord", err)
	}
}

func TestDecodeRecordEmpty(t *testing.T) {
	_, err := DecodeRecord(map[string]string{})
	if !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("error = %v, want ErrCorruptRecord", err)
	}
}

func TestHasObject(t *testing.T) {
	tests := []struct {
		bucket, key string
		want        bool
	}{
		{"b", "k", true},
		{"", "k", false},
		{"b", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := &Record{ObjectBucket: tt.bucket, ObjectKey: tt.key}
		if got := r.HasObject(); got != tt.want {
			t.Errorf("HasObject(%q, %q) = %v, want %v", tt.bucket, tt.key, got, tt.want)
		}
	}
}

func TestKeyConventions(t *testing.T) {
	if got := MetaKey("abc"); got != "proc:meta:abc" {
		t.Errorf("MetaKey = %q, want %q", got, "proc:meta:abc")
	}
	if got := ObjectKey("abc"); got != "proc/abc/input" {
		t.Errorf("ObjectKey = %q, want %q", got, "proc/abc/input")
	}
}

func TestJobJSONShape(t *testing.T) {
	b, err := json.Marshal(Job{ProcessID: "p1", JobType: "default", Params: map[string]any{"x": 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"process_id":"p1","job_type":"default","params":{"x":1}}`
	if string(b) != want {
		t.Errorf("job JSON = %s, want %s", b, want)
	}
}
