// Package audit models the immutable change log written for every
// successful mutation of a logged entity (products, users). Entries are
// persisted by the store inside the same transaction as the business
// mutation; this package defines the entry shape, denormalized snapshots
// and a structured-log mirror.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/ids"
	"zapchasti.org/internal/obs"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Entity string

const (
	EntityProduct Entity = "product"
	EntityUser    Entity = "user"
)

var ErrInvalidEntry = errors.New("audit: invalid entry")

// Entry is one immutable audit record. Before/After hold denormalized
// snapshots so the log stays readable after referenced departments or
// categories are renamed or removed.
type Entry struct {
	ID           string          `json:"id"`
	Entity       Entity          `json:"entity"`
	Action       Action          `json:"action"`
	ActorID      string          `json:"actor_id"`
	TargetID     string          `json:"target_id"`
	DepartmentID string          `json:"department_id,omitempty"`
	Before       json.RawMessage `json:"before,omitempty"`
	After        json.RawMessage `json:"after,omitempty"`
	Message      string          `json:"message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ProductSnapshot is the denormalized product state captured per mutation.
// CategoryTitle and DepartmentName are resolved at write time.
type ProductSnapshot struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	SKU            string `json:"sku"`
	Brand          string `json:"brand,omitempty"`
	Price          int64  `json:"price"`
	Quantity       int    `json:"quantity"`
	CategoryID     string `json:"category_id,omitempty"`
	CategoryTitle  string `json:"category_title,omitempty"`
	DepartmentID   string `json:"department_id,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`
}

// UserSnapshot is the denormalized identity state captured per mutation.
// The password hash is never part of a snapshot.
type UserSnapshot struct {
	ID             string `json:"id"`
	Phone          string `json:"phone"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	DepartmentID   string `json:"department_id,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`
}

// Store reads persisted entries for the back-office audit views.
type Store interface {
	ListEntries(ctx context.Context, entity Entity, scope auth.Scope, limit int) ([]Entry, error)
}

// NewEntry builds a validated entry. Snapshot presence follows the action:
// create has only After, delete only Before, update both.
func NewEntry(entity Entity, action Action, actorID, targetID, departmentID string, before, after any, message string) (Entry, error) {
	if entity != EntityProduct && entity != EntityUser {
		return Entry{}, fmt.Errorf("%w: unknown entity %q", ErrInvalidEntry, entity)
	}
	if strings.TrimSpace(actorID) == "" || strings.TrimSpace(targetID) == "" {
		return Entry{}, fmt.Errorf("%w: actor and target are required", ErrInvalidEntry)
	}
	e := Entry{
		ID:           ids.New(),
		Entity:       entity,
		Action:       action,
		ActorID:      actorID,
		TargetID:     targetID,
		DepartmentID: departmentID,
		Message:      strings.TrimSpace(message),
		CreatedAt:    time.Now().UTC(),
	}
	var err error
	if e.Before, err = marshalSnapshot(before); err != nil {
		return Entry{}, err
	}
	if e.After, err = marshalSnapshot(after); err != nil {
		return Entry{}, err
	}
	switch action {
	case ActionCreate:
		if e.Before != nil || e.After == nil {
			return Entry{}, fmt.Errorf("%w: create needs only an after snapshot", ErrInvalidEntry)
		}
	case ActionUpdate:
		if e.Before == nil || e.After == nil {
			return Entry{}, fmt.Errorf("%w: update needs before and after snapshots", ErrInvalidEntry)
		}
	case ActionDelete:
		if e.Before == nil || e.After != nil {
			return Entry{}, fmt.Errorf("%w: delete needs only a before snapshot", ErrInvalidEntry)
		}
	default:
		return Entry{}, fmt.Errorf("%w: unknown action %q", ErrInvalidEntry, action)
	}
	return e, nil
}

func marshalSnapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return data, nil
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier for the log mirror.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogWritten mirrors a persisted entry to the structured log and bumps the
// audit metric. Called by the store after the owning transaction commits.
func LogWritten(ctx context.Context, e Entry) {
	line := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"type":      "audit",
		"entity":    string(e.Entity),
		"action":    string(e.Action),
		"actor_id":  e.ActorID,
		"target_id": e.TargetID,
	}
	if e.DepartmentID != "" {
		line["department_id"] = e.DepartmentID
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		line["request_id"] = rid
	}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
	obs.CountAuditEntry(string(e.Entity), string(e.Action))
}
