package syncer

import (
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// Verdict is the conflict resolver's decision for one incoming booking.
type Verdict int

const (
	// VerdictAccept applies the booking as an upsert.
	VerdictAccept Verdict = iota
	// VerdictReject drops the booking: the source platform's own data is
	// self-conflicting, so applying it would propagate the error.
	VerdictReject
	// VerdictFlag surfaces the booking to a human without persisting it.
	// Cross-platform overlaps are never resolved automatically.
	VerdictFlag
)

// Conflict reasons recorded in sync log entries.
const (
	ReasonSourceInconsistency   = "source_inconsistency"
	ReasonCrossPlatformConflict = "cross_platform_conflict"
)

// Classification is the resolver's verdict plus the booking it clashed with.
type Classification struct {
	Verdict     Verdict
	Reason      string
	Conflicting *models.Booking
}

// RefSet tracks the external refs persisted earlier in the same sync batch.
// An overlap with a same-batch booking is a cross-platform-style flag rather
// than a source-inconsistency reject: both reservations arrived in one feed
// and neither is known to be the platform's error.
type RefSet map[string]struct{}

// Add records a ref in the set.
func (s RefSet) Add(ref string) {
	s[ref] = struct{}{}
}

func (s RefSet) contains(ref string) bool {
	_, ok := s[ref]
	return ok
}

// Classify decides whether incoming can be applied against the villa's
// current Confirmed set. It is a pure function: callers pass the freshly
// read existing bookings and the resolver holds no state of its own.
//
// Rules, in order:
//   - A booking whose external ref matches an existing local booking from
//     the same platform is an update, accepted regardless of overlap with
//     itself. This also covers remote cancellations.
//   - A booking that would not be Confirmed cannot conflict; accept.
//   - An overlap with a Confirmed booking from the same platform is the
//     platform contradicting itself: reject (unless the other booking was
//     persisted earlier in this same batch, which flags instead).
//   - An overlap with a Confirmed booking from another platform or a manual
//     entry is a genuine double-booking: flag for human resolution.
func Classify(existing []models.Booking, incoming models.Booking, batch RefSet) Classification {
	// Same-ref match means update, not conflict candidate.
	for i := range existing {
		if incoming.SameExternalRef(&existing[i]) {
			return Classification{Verdict: VerdictAccept}
		}
	}

	if incoming.Status != models.BookingStatusConfirmed {
		return Classification{Verdict: VerdictAccept}
	}

	var crossOverlap *models.Booking
	for i := range existing {
		other := &existing[i]
		if !other.IsConfirmed() || !incoming.Overlaps(other) {
			continue
		}

		if other.Source == incoming.Source {
			if other.ExternalRef != nil && batch.contains(*other.ExternalRef) {
				return Classification{
					Verdict:     VerdictFlag,
					Reason:      ReasonCrossPlatformConflict,
					Conflicting: other,
				}
			}
			return Classification{
				Verdict:     VerdictReject,
				Reason:      ReasonSourceInconsistency,
				Conflicting: other,
			}
		}

		if crossOverlap == nil {
			crossOverlap = other
		}
	}

	if crossOverlap != nil {
		return Classification{
			Verdict:     VerdictFlag,
			Reason:      ReasonCrossPlatformConflict,
			Conflicting: crossOverlap,
		}
	}

	return Classification{Verdict: VerdictAccept}
}
