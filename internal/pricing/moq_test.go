package pricing

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestEffectiveMOQPrecedence(t *testing.T) {
	override := 3
	item, err := NewLineItem(uuid.New(), uuid.New(), nil, nil, 10, dec(t, "100"), &override)
	if err != nil {
		t.Fatalf("build line item: %v", err)
	}

	if got := EffectiveMOQ(item, GlobalMOQ{Active: true, MinQty: 5}); got != 3 {
		t.Fatalf("override should win over global setting, got %d", got)
	}

	item.MOQOverride = nil
	if got := EffectiveMOQ(item, GlobalMOQ{Active: true, MinQty: 5}); got != 5 {
		t.Fatalf("active global setting should apply, got %d", got)
	}
	if got := EffectiveMOQ(item, GlobalMOQ{Active: false, MinQty: 5}); got != 1 {
		t.Fatalf("inactive global setting should fall back to 1, got %d", got)
	}
}

func TestValidateQuantityBoundary(t *testing.T) {
	item := testItem(t, 5, "100")

	if err := ValidateQuantity(item, 5); err != nil {
		t.Fatalf("quantity at the boundary must pass, got %v", err)
	}

	item.Qty = 4
	err := ValidateQuantity(item, 5)
	var below *BelowMinimumError
	if !errors.As(err, &below) {
		t.Fatalf("expected BelowMinimumError, got %v", err)
	}
	if below.Required != 5 {
		t.Fatalf("expected required minimum 5, got %d", below.Required)
	}
}

func TestClampDeltaRejectsInsteadOfFlooring(t *testing.T) {
	next, err := ClampDelta(10, -5, 5)
	if err != nil {
		t.Fatalf("decrease to the boundary must pass, got %v", err)
	}
	if next != 5 {
		t.Fatalf("expected 5, got %d", next)
	}

	_, err = ClampDelta(5, -1, 5)
	var below *BelowMinimumError
	if !errors.As(err, &below) {
		t.Fatalf("expected BelowMinimumError, got %v", err)
	}
	if below.Required != 5 {
		t.Fatalf("expected required minimum 5, got %d", below.Required)
	}

	if _, err := ClampDelta(2, -2, 1); err == nil {
		t.Fatal("a change reaching zero must be rejected, not floored")
	}
}
