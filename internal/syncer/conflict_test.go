package syncer

import (
	"testing"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func booking(source, ref string, start, end time.Time, status string) models.Booking {
	b := models.Booking{
		VillaID:   "villa-1",
		GuestName: "Guest",
		StartDate: start,
		EndDate:   end,
		Status:    status,
		Source:    source,
	}
	if ref != "" {
		b.ExternalRef = &ref
	}
	return b
}

// ---------------------------------------------------------------------------
// Scenario 1: no overlap → accepted
// ---------------------------------------------------------------------------

func TestClassify_NoOverlap_Accepted(t *testing.T) {
	existing := []models.Booking{
		booking("airbnb", "A-1", day(2026, 3, 1), day(2026, 3, 5), models.BookingStatusConfirmed),
	}
	incoming := booking("booking_com", "B-1", day(2026, 3, 5), day(2026, 3, 10), models.BookingStatusConfirmed)

	cls := Classify(existing, incoming, make(RefSet))
	if cls.Verdict != VerdictAccept {
		t.Fatalf("verdict = %v, want accept", cls.Verdict)
	}
}

// ---------------------------------------------------------------------------
// Scenario 2: back-to-back stays share a checkout day → no conflict
// ---------------------------------------------------------------------------

func TestClassify_HalfOpenRanges_CheckoutDayReusable(t *testing.T) {
	existing := []models.Booking{
		booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusConfirmed),
	}
	// Checks in on the other guest's checkout day.
	incoming := booking("vrbo", "V-1", day(2026, 3, 15), day(2026, 3, 20), models.BookingStatusConfirmed)

	cls := Classify(existing, incoming, make(RefSet))
	if cls.Verdict != VerdictAccept {
		t.Fatalf("verdict = %v, want accept", cls.Verdict)
	}
}

// ---------------------------------------------------------------------------
// Scenario 3: cross-platform overlap → flagged, never auto-resolved
// ---------------------------------------------------------------------------

func TestClassify_CrossPlatformOverlap_Flagged(t *testing.T) {
	existing := []models.Booking{
		booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusConfirmed),
	}
	incoming := booking("booking_com", "B-1", day(2026, 3, 12), day(2026, 3, 18), models.BookingStatusConfirmed)

	cls := Classify(existing, incoming, make(RefSet))
	if cls.Verdict != VerdictFlag {
		t.Fatalf("verdict = %v, want flag", cls.Verdict)
	}
	if cls.Reason != ReasonCrossPlatformConflict {
		t.Errorf("reason = %q, want %q", cls.Reason, ReasonCrossPlatformConflict)
	}
	if cls.Conflicting == nil || *cls.Conflicting.ExternalRef != "A-1" {
		t.Errorf("conflicting booking not reported")
	}
}

// ---------------------------------------------------------------------------
// Scenario 4: overlap with a manual booking → flagged
// ---------------------------------------------------------------------------

func TestClassify_ManualOverlap_Flagged(t *testing.T) {
	manual := booking(models.SourceManual, "", day(2026, 7, 1), day(2026, 7, 8), models.BookingStatusConfirmed)
	incoming := booking("airbnb", "A-9", day(2026, 7, 4), day(2026, 7, 6), models.BookingStatusConfirmed)

	cls := Classify([]models.Booking{manual}, incoming, make(RefSet))
	if cls.Verdict != VerdictFlag || cls.Reason != ReasonCrossPlatformConflict {
		t.Fatalf("verdict = %v reason = %q, want flag/%s", cls.Verdict, cls.Reason, ReasonCrossPlatformConflict)
	}
}

// ---------------------------------------------------------------------------
// Scenario 5: same platform contradicts its own earlier data → rejected
// ---------------------------------------------------------------------------

func TestClassify_SameSourceOverlap_Rejected(t *testing.T) {
	existing := []models.Booking{
		booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusConfirmed),
	}
	incoming := booking("airbnb", "A-2", day(2026, 3, 12), day(2026, 3, 18), models.BookingStatusConfirmed)

	cls := Classify(existing, incoming, make(RefSet))
	if cls.Verdict != VerdictReject {
		t.Fatalf("verdict = %v, want reject", cls.Verdict)
	}
	if cls.Reason != ReasonSourceInconsistency {
		t.Errorf("reason = %q, want %q", cls.Reason, ReasonSourceInconsistency)
	}
}

// ---------------------------------------------------------------------------
// Scenario 6: overlapping pair within one batch → flagged, not rejected
// ---------------------------------------------------------------------------

func TestClassify_SameBatchOverlap_Flagged(t *testing.T) {
	first := booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusConfirmed)
	incoming := booking("airbnb", "A-2", day(2026, 3, 12), day(2026, 3, 18), models.BookingStatusConfirmed)

	batch := make(RefSet)
	batch.Add("A-1")

	cls := Classify([]models.Booking{first}, incoming, batch)
	if cls.Verdict != VerdictFlag {
		t.Fatalf("verdict = %v, want flag", cls.Verdict)
	}
	if cls.Reason != ReasonCrossPlatformConflict {
		t.Errorf("reason = %q, want %q", cls.Reason, ReasonCrossPlatformConflict)
	}
}

// ---------------------------------------------------------------------------
// Scenario 7: same external ref → update, regardless of overlap
// ---------------------------------------------------------------------------

func TestClassify_SameRef_AcceptedAsUpdate(t *testing.T) {
	existing := []models.Booking{
		booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusConfirmed),
	}
	// Same reservation with extended dates.
	incoming := booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 17), models.BookingStatusConfirmed)

	cls := Classify(existing, incoming, make(RefSet))
	if cls.Verdict != VerdictAccept {
		t.Fatalf("verdict = %v, want accept", cls.Verdict)
	}
}

// ---------------------------------------------------------------------------
// Scenario 8: remote cancellation of a known ref → accepted
// ---------------------------------------------------------------------------

func TestClassify_Cancellation_Accepted(t *testing.T) {
	existing := []models.Booking{
		booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusConfirmed),
	}
	incoming := booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusCancelled)

	cls := Classify(existing, incoming, make(RefSet))
	if cls.Verdict != VerdictAccept {
		t.Fatalf("verdict = %v, want accept", cls.Verdict)
	}
}

// ---------------------------------------------------------------------------
// Scenario 9: non-confirmed incoming never conflicts
// ---------------------------------------------------------------------------

func TestClassify_PendingIncoming_Accepted(t *testing.T) {
	existing := []models.Booking{
		booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusConfirmed),
	}
	incoming := booking("booking_com", "B-1", day(2026, 3, 12), day(2026, 3, 14), models.BookingStatusPending)

	cls := Classify(existing, incoming, make(RefSet))
	if cls.Verdict != VerdictAccept {
		t.Fatalf("verdict = %v, want accept", cls.Verdict)
	}
}

// ---------------------------------------------------------------------------
// Scenario 10: cancelled local booking frees its range
// ---------------------------------------------------------------------------

func TestClassify_CancelledExisting_RangeReusable(t *testing.T) {
	existing := []models.Booking{
		booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusCancelled),
	}
	incoming := booking("booking_com", "B-1", day(2026, 3, 12), day(2026, 3, 18), models.BookingStatusConfirmed)

	cls := Classify(existing, incoming, make(RefSet))
	if cls.Verdict != VerdictAccept {
		t.Fatalf("verdict = %v, want accept", cls.Verdict)
	}
}
