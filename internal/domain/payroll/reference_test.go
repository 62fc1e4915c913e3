package payroll

import (
	"testing"
	"time"
)

func TestFormatOverrideReference(t *testing.T) {
	month := time.Date(2025, time.August, 14, 0, 0, 0, 0, time.UTC)
	if got := FormatOverrideReference(month, 7); got != "OVR-202508-0007" {
		t.Fatalf("expected OVR-202508-0007, got %s", got)
	}
}

func TestParseOverrideReference(t *testing.T) {
	monthKey, sequence, ok := ParseOverrideReference("OVR-202508-0042")
	if !ok || monthKey != "202508" || sequence != 42 {
		t.Fatalf("expected 202508/42, got %s/%d ok=%v", monthKey, sequence, ok)
	}

	malformed := []string{
		"OVR-202508-0000",
		"OVR-2025-0001",
		"OVR-202508-001",
		"ovr-202508-0001",
		"OVR-202508-00012",
		"",
	}
	for _, id := range malformed {
		if _, _, ok := ParseOverrideReference(id); ok {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
}

func TestNextOverrideReferenceFirstOfMonth(t *testing.T) {
	now := time.Date(2025, time.August, 3, 10, 0, 0, 0, time.UTC)
	reference, exhausted := NextOverrideReference(now, nil)
	if exhausted {
		t.Fatal("expected sequence space to be available")
	}
	if reference != "OVR-202508-0001" {
		t.Fatalf("expected OVR-202508-0001, got %s", reference)
	}
}

func TestNextOverrideReferenceSkipsOtherMonthsAndGarbage(t *testing.T) {
	now := time.Date(2025, time.August, 3, 10, 0, 0, 0, time.UTC)
	issued := []string{
		"OVR-202507-0050",
		"OVR-202508-0003",
		"not-a-reference",
		"OVR-202508-0001",
	}
	reference, exhausted := NextOverrideReference(now, issued)
	if exhausted {
		t.Fatal("expected sequence space to be available")
	}
	if reference != "OVR-202508-0004" {
		t.Fatalf("expected OVR-202508-0004, got %s", reference)
	}
}

func TestNextOverrideReferenceExhausted(t *testing.T) {
	now := time.Date(2025, time.August, 3, 10, 0, 0, 0, time.UTC)
	reference, exhausted := NextOverrideReference(now, []string{"OVR-202508-9999"})
	if !exhausted {
		t.Fatal("expected exhausted sequence space")
	}
	if reference != "OVR-202508-9999" {
		t.Fatalf("expected capped reference OVR-202508-9999, got %s", reference)
	}
}
