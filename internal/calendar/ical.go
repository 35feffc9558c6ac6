// Package calendar provides iCal parsing and export for villa bookings.
package calendar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// Parser parses iCal/ICS calendar feeds.
type Parser struct {
	httpClient *http.Client
}

// NewParser creates a new iCal parser.
func NewParser(timeout time.Duration) *Parser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Parser{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchAndParse downloads and parses an iCal feed from a URL.
func (p *Parser) FetchAndParse(ctx context.Context, url string) ([]models.CalendarEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building calendar request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FeedStatusError{StatusCode: resp.StatusCode}
	}

	return p.Parse(resp.Body)
}

// FeedStatusError reports a non-200 response from a calendar feed.
type FeedStatusError struct {
	StatusCode int
}

func (e *FeedStatusError) Error() string {
	return fmt.Sprintf("calendar returned status %d", e.StatusCode)
}

// Parse reads and parses iCal data from a reader.
func (p *Parser) Parse(r io.Reader) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	var currentEvent *models.CalendarEvent
	var currentField string
	var multilineValue strings.Builder

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSuffix(line, "\r")

		// Handle line continuation (lines starting with space or tab)
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if currentField != "" {
				multilineValue.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, " "), "\t"))
			}
			continue
		}

		// Process previous multiline field
		if currentField != "" && currentEvent != nil {
			setEventField(currentEvent, currentField, multilineValue.String())
			currentField = ""
			multilineValue.Reset()
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}

		field := line[:colonIdx]
		value := line[colonIdx+1:]

		// Handle property parameters (e.g., DTSTART;VALUE=DATE:20231215)
		if semicolonIdx := strings.Index(field, ";"); semicolonIdx != -1 {
			field = field[:semicolonIdx]
		}

		switch field {
		case "BEGIN":
			if value == "VEVENT" {
				currentEvent = &models.CalendarEvent{}
			}
		case "END":
			if value == "VEVENT" && currentEvent != nil {
				// Only include events with valid dates
				if !currentEvent.Start.IsZero() && !currentEvent.End.IsZero() {
					events = append(events, *currentEvent)
				}
				currentEvent = nil
			}
		case "UID", "SUMMARY", "DESCRIPTION", "LOCATION", "STATUS", "DTSTART", "DTEND":
			if currentEvent != nil {
				currentField = field
				multilineValue.WriteString(value)
			}
		}
	}

	// Flush a trailing field when the feed lacks a final newline.
	if currentField != "" && currentEvent != nil {
		setEventField(currentEvent, currentField, multilineValue.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}

	return events, nil
}

// setEventField sets a field on a CalendarEvent.
func setEventField(event *models.CalendarEvent, field, value string) {
	// Unescape common iCal escape sequences
	value = strings.ReplaceAll(value, "\\n", "\n")
	value = strings.ReplaceAll(value, "\\,", ",")
	value = strings.ReplaceAll(value, "\\;", ";")
	value = strings.ReplaceAll(value, "\\\\", "\\")

	switch field {
	case "UID":
		event.UID = value
	case "SUMMARY":
		event.Summary = value
	case "DESCRIPTION":
		event.Description = value
	case "LOCATION":
		event.Location = value
	case "STATUS":
		event.Status = value
	case "DTSTART":
		event.Start = parseDateTime(value)
	case "DTEND":
		event.End = parseDateTime(value)
	}
}

// parseDateTime parses an iCal date/time value.
func parseDateTime(value string) time.Time {
	// Common iCal date formats
	formats := []string{
		"20060102T150405Z",     // UTC datetime
		"20060102T150405",      // Local datetime
		"20060102",             // Date only
		"2006-01-02T15:04:05Z", // ISO 8601 with dashes
		"2006-01-02",           // ISO 8601 date
	}

	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t
		}
	}

	return time.Time{}
}

// FilterByDateRange returns events that overlap with the given half-open
// date range.
func FilterByDateRange(events []models.CalendarEvent, start, end time.Time) []models.CalendarEvent {
	var filtered []models.CalendarEvent
	for _, e := range events {
		if e.Start.Before(end) && e.End.After(start) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
