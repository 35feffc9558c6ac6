package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

const (
	prodID     = "-//villa-sync-manager//calendar//EN"
	dateFormat = "20060102"
)

// Export writes a villa's Confirmed bookings as an iCal feed. The output
// round-trips through Parse: re-importing reproduces the same set of
// (start, end, uid) tuples. Event UIDs are the booking's external ref when
// present, otherwise its local ID.
func Export(w io.Writer, villa *models.Villa, bookings []models.Booking) error {
	var b strings.Builder

	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+prodID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, foldLine("X-WR-CALNAME:"+escapeText(villa.Name)))

	now := time.Now().UTC().Format("20060102T150405Z")
	for _, booking := range bookings {
		if !booking.IsConfirmed() {
			continue
		}

		uid := booking.ID
		if booking.ExternalRef != nil {
			uid = *booking.ExternalRef
		}

		writeLine(&b, "BEGIN:VEVENT")
		writeLine(&b, foldLine("UID:"+escapeText(uid)))
		writeLine(&b, "DTSTAMP:"+now)
		writeLine(&b, "DTSTART;VALUE=DATE:"+booking.StartDate.UTC().Format(dateFormat))
		writeLine(&b, "DTEND;VALUE=DATE:"+booking.EndDate.UTC().Format(dateFormat))
		writeLine(&b, foldLine("SUMMARY:"+escapeText(summaryFor(&booking))))
		writeLine(&b, "STATUS:CONFIRMED")
		writeLine(&b, "END:VEVENT")
	}

	writeLine(&b, "END:VCALENDAR")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	return nil
}

func summaryFor(b *models.Booking) string {
	if b.GuestName != "" {
		return b.GuestName
	}
	return "Reserved"
}

// writeLine appends a content line with the CRLF terminator iCal requires.
func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}

// escapeText escapes the characters RFC 5545 reserves in TEXT values.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// foldLine folds a content line at 75 octets using a space continuation.
func foldLine(line string) string {
	const limit = 75
	if len(line) <= limit {
		return line
	}

	var b strings.Builder
	for len(line) > limit {
		b.WriteString(line[:limit])
		b.WriteString("\r\n ")
		line = line[limit:]
	}
	b.WriteString(line)
	return b.String()
}
