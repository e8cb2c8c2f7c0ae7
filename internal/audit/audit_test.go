package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"zapchasti.org/internal/obs"
)

func TestNewEntryCreate(t *testing.T) {
	after := ProductSnapshot{ID: "p-1", Title: "Фильтр масляный", SKU: "MANN-W75/3", Price: 65000}
	entry, err := NewEntry(EntityProduct, ActionCreate, "admin-1", "p-1", "dep-1", nil, after, "")
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if entry.Before != nil {
		t.Fatal("create entry must not carry a before snapshot")
	}
	var got ProductSnapshot
	if err := json.Unmarshal(entry.After, &got); err != nil {
		t.Fatalf("after snapshot not JSON: %v", err)
	}
	if got.Title != after.Title || got.SKU != after.SKU {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Fatal("entry id and timestamp must be set")
	}
}

func TestNewEntryUpdateRequiresBothSnapshots(t *testing.T) {
	after := UserSnapshot{ID: "u-1", Phone: "9954091882", Role: "manager"}
	if _, err := NewEntry(EntityUser, ActionUpdate, "admin-1", "u-1", "", nil, after, ""); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	before := UserSnapshot{ID: "u-1", Phone: "9954091882", Role: "client"}
	entry, err := NewEntry(EntityUser, ActionUpdate, "admin-1", "u-1", "", before, after, "role change")
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if entry.Message != "role change" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
}

func TestNewEntryDelete(t *testing.T) {
	before := ProductSnapshot{ID: "p-1", Title: "Колодки", DepartmentID: "dep-2", DepartmentName: "Склад Север"}
	entry, err := NewEntry(EntityProduct, ActionDelete, "admin-1", "p-1", "dep-2", before, nil, "")
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if entry.After != nil {
		t.Fatal("delete entry must not carry an after snapshot")
	}
	if entry.DepartmentID != "dep-2" {
		t.Fatalf("unexpected department %q", entry.DepartmentID)
	}
}

func TestNewEntryRejectsUnknownEntityAndActor(t *testing.T) {
	if _, err := NewEntry(Entity("order"), ActionCreate, "a", "t", "", nil, struct{}{}, ""); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	if _, err := NewEntry(EntityProduct, ActionCreate, "", "t", "", nil, struct{}{}, ""); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestLogWrittenMirror(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := WithRequestID(context.Background(), "req-123")
	entry, err := NewEntry(EntityProduct, ActionDelete, "admin-1", "p-9", "dep-1",
		ProductSnapshot{ID: "p-9"}, nil, "")
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	LogWritten(ctx, entry)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if line["type"] != "audit" || line["action"] != "delete" {
		t.Fatalf("unexpected log line: %v", line)
	}
	if line["request_id"] != "req-123" {
		t.Fatalf("request id missing: %v", line)
	}
}
