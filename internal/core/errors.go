package core

// errors.go defines the sentinel errors of the conversion pipeline and maps
// technical errors to user-friendly messages with a support code.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File not found: the export does not exist at the given path
//	          Action: Export the table from Lovable and check the file name
//	FILE002 - Empty file: the file has no header row
//	          Action: Export the table again; the file must include a header
//	FILE003 - Encoding: the input encoding is not supported
//	          Action: Use utf-8, latin1 or windows-1252
//	FILE004 - Permission denied reading or writing a file
//	          Action: Check file permissions in the export directory
//
// # CSV Errors (CSV001-CSV099)
//
//	CSV001 - Extra fields: a row has more fields than the header
//	         Action: Check for unquoted delimiters in that row
//	CSV002 - Parse error: the CSV could not be parsed
//	         Action: Re-export the file; check for unterminated quotes
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: rows already exist in the target table
//	DB002 - Foreign key: referenced rows are missing (import parent tables first)
//	DB003 - Malformed array literal: an array column could not be parsed by PostgreSQL
//	DB004 - Missing table or column in the target database
//	DB005 - Connection refused
//	DB006 - Timeout
//
// # Server Errors (SRV001-SRV099)
//
//	SRV001 - Too many conversions in progress
//	SRV002 - Upload too large
//	SRV003 - No file provided
//
// # Default Error (ERR000)
//
// Patterns are matched case-insensitively with strings.Contains after the
// sentinel checks; the first match wins.

import (
	"errors"
	"io/fs"
	"strings"
)

var (
	// ErrFileNotFound is returned when a source export does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrEmptyFile is returned when a source file has no header row.
	ErrEmptyFile = errors.New("empty file: no header row")

	// ErrUnsupportedEncoding is returned for unknown input encodings.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrTooManyFields is returned when a record is wider than the header.
	ErrTooManyFields = errors.New("record has more fields than the header")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgFileNotFound = UserMessage{
		Message: "The export file was not found",
		Action:  "Export the table from Lovable and check the file name",
		Code:    "FILE001",
	}
	msgEmptyFile = UserMessage{
		Message: "The file is empty",
		Action:  "Export the table again; the file must include a header row",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "The input encoding is not supported",
		Action:  "Use utf-8, latin1 or windows-1252",
		Code:    "FILE003",
	}
	msgPermission = UserMessage{
		Message: "Permission denied",
		Action:  "Check file permissions in the export directory",
		Code:    "FILE004",
	}
	msgTooManyFields = UserMessage{
		Message: "A row has more fields than the header",
		Action:  "Check that row for an unquoted delimiter",
		Code:    "CSV001",
	}
	msgTooManyConversions = UserMessage{
		Message: "Too many conversions in progress",
		Action:  "Please wait a moment and try again",
		Code:    "SRV001",
	}
	msgUnknown = UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Check the log output for details",
		Code:    "ERR000",
	}
)

// errorPatterns map technical error text (case-insensitive) to user messages.
// Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{"parse error", UserMessage{
		Message: "The CSV file could not be parsed",
		Action:  "Re-export the file and check for unterminated quotes",
		Code:    "CSV002",
	}},
	{"duplicate key", UserMessage{
		Message: "Rows with the same key already exist in the table",
		Action:  "Use --truncate to replace the table contents",
		Code:    "DB001",
	}},
	{"foreign key", UserMessage{
		Message: "Referenced rows do not exist",
		Action:  "Import parent tables (contributors, profiles) first",
		Code:    "DB002",
	}},
	{"malformed array literal", UserMessage{
		Message: "PostgreSQL rejected an array value",
		Action:  "Check the materials and printer_models columns of the converted file",
		Code:    "DB003",
	}},
	{"does not exist", UserMessage{
		Message: "The target table or column does not exist",
		Action:  "Create the schema in Supabase before importing",
		Code:    "DB004",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Check DATABASE_URL and that the database is reachable",
		Code:    "DB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try again or raise DB_IMPORT_TIMEOUT",
		Code:    "DB006",
	}},
	{"request body too large", UserMessage{
		Message: "The uploaded file is too large",
		Action:  "Convert large exports with the CLI instead",
		Code:    "SRV002",
	}},
	{"no file provided", UserMessage{
		Message: "No file was provided",
		Action:  "Send the CSV as the request body or as form field \"file\"",
		Code:    "SRV003",
	}},
}

// MapError converts a technical error into a user-friendly message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrFileNotFound), errors.Is(err, fs.ErrNotExist):
		return msgFileNotFound
	case errors.Is(err, ErrEmptyFile):
		return msgEmptyFile
	case errors.Is(err, ErrUnsupportedEncoding):
		return msgEncoding
	case errors.Is(err, fs.ErrPermission):
		return msgPermission
	case errors.Is(err, ErrTooManyFields):
		return msgTooManyFields
	case errors.Is(err, ErrTooManyConversions):
		return msgTooManyConversions
	}

	text := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(text, p.pattern) {
			return p.msg
		}
	}

	return msgUnknown
}
