// Package timeutil provides parsing and formatting helpers for the compact
// ISO 8601 timestamps used by AWS request signing.
package timeutil

import (
	"time"

	"github.com/palantir/stacktrace"
)

// ISO8601CompactFormat is the timestamp format used in the X-Amz-Date
// header and query parameter: YYYYMMDDThhmmssZ, always UTC.
const ISO8601CompactFormat = "20060102T150405Z"

// DateStampFormat is the date-only format used in the credential scope:
// YYYYMMDD, always UTC.
const DateStampFormat = "20060102"

// iso8601Layouts lists the accepted timestamp shapes, most specific first.
// AWS emits the compact form; clients in the wild send dashed dates,
// colon-separated times, fractional seconds, and numeric offsets in every
// combination.
var iso8601Layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T150405Z",
	"20060102T15:04:05Z",
	ISO8601CompactFormat,
	"20060102T150405Z0700",
	"2006-01-02",
	DateStampFormat,
}

// ParseISO8601Timestamp parses a timestamp in any of the ISO 8601 variants
// accepted for SigV4 date fields. The result is converted to UTC.
func ParseISO8601Timestamp(s string) (time.Time, error) {
	for _, layout := range iso8601Layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, stacktrace.NewError(
		"Invalid ISO 8601 timestamp: %#v", s)
}
