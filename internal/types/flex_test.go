package types

import (
	"encoding/json"
	"testing"
)

func TestFlexUint64(t *testing.T) {
	var payload struct {
		ID FlexUint64 `json:"id"`
	}

	if err := json.Unmarshal([]byte(`{"id": 42}`), &payload); err != nil {
		t.Fatalf("number decode failed: %v", err)
	}
	if payload.ID.Uint64() != 42 {
		t.Errorf("expected 42, got %d", payload.ID)
	}

	if err := json.Unmarshal([]byte(`{"id": "17"}`), &payload); err != nil {
		t.Fatalf("string decode failed: %v", err)
	}
	if payload.ID.Uint64() != 17 {
		t.Errorf("expected 17, got %d", payload.ID)
	}

	if err := json.Unmarshal([]byte(`{"id": "abc"}`), &payload); err == nil {
		t.Error("expected an error for a non-numeric string")
	}
}

func TestFlexList(t *testing.T) {
	var payload struct {
		Apps FlexList[string] `json:"apps"`
	}

	if err := json.Unmarshal([]byte(`{"apps": ["crm", "codings"]}`), &payload); err != nil {
		t.Fatalf("array decode failed: %v", err)
	}
	if len(payload.Apps) != 2 {
		t.Errorf("expected 2 entries, got %d", len(payload.Apps))
	}

	if err := json.Unmarshal([]byte(`{"apps": "crm"}`), &payload); err != nil {
		t.Fatalf("scalar decode failed: %v", err)
	}
	if len(payload.Apps) != 1 || payload.Apps[0] != "crm" {
		t.Errorf("expected a single wrapped entry, got %v", payload.Apps)
	}

	if err := json.Unmarshal([]byte(`{"apps": null}`), &payload); err != nil {
		t.Fatalf("null decode failed: %v", err)
	}
}

func TestDomainErrorPredicates(t *testing.T) {
	if !IsNotFound(&NotFoundError{Entity: "release", ID: 1}) {
		t.Error("IsNotFound must match NotFoundError")
	}
	if !IsValidation(&ValidationError{Message: "bad"}) {
		t.Error("IsValidation must match ValidationError")
	}
	if !IsPrecondition(&PreconditionError{Message: "nope"}) {
		t.Error("IsPrecondition must match PreconditionError")
	}
	if IsNotFound(&ValidationError{Message: "bad"}) {
		t.Error("predicates must not cross-match")
	}
}
