// Package dataset loads the session records that drive a load run.
//
// The input is a comma separated text file. The first line is a header and
// is discarded; every following line holds an access code, the first address
// line and the postcode of one invitee:
//
//	uac,addressLine1,postcode
//	ABCD1234EFGH5678,1 High Street,EX1 1AA
//
// Fields are split on every comma. Quoting is not supported, so a field
// cannot itself contain a comma.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Delimiter separates the fields of a record line.
const Delimiter = ","

// FieldCount is the number of fields every record line must carry.
const FieldCount = 3

// SessionRecord holds the data for one simulated user. It is never
// modified after loading and is shared read-only between workers.
type SessionRecord struct {
	AccessCode   string
	AddressLine1 string
	Postcode     string
}

// LoadError reports a malformed record line.
type LoadError struct {
	Source string
	Line   int
	Fields int
	Text   string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s:%d: expected %d fields but found %d in %q",
		e.Source, e.Line, FieldCount, e.Fields, e.Text)
}

// ErrEmptyDataset is returned by Require when no records were loaded.
var ErrEmptyDataset = errors.New("dataset contains no records")

// Load reads all records from the file at path.
func Load(path string) ([]SessionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return Parse(f, path)
}

// Parse reads records from r. source names the input in error messages.
//
// Blank lines at the end of the input are ignored; a blank line followed
// by another record is a *LoadError. Trailing empty fields are dropped
// before the field count is checked, so "CODE,1 High Street," is rejected.
func Parse(r io.Reader, source string) ([]SessionRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []SessionRecord
	lineNo, blankLine := 0, 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if blankLine == 0 {
				blankLine = lineNo
			}
			continue
		}
		if blankLine != 0 {
			return nil, &LoadError{Source: source, Line: blankLine}
		}

		fields := splitFields(line)
		if len(fields) < FieldCount {
			return nil, &LoadError{Source: source, Line: lineNo, Fields: len(fields), Text: line}
		}

		records = append(records, SessionRecord{
			AccessCode:   fields[0],
			AddressLine1: fields[1],
			Postcode:     fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	return records, nil
}

// Require returns ErrEmptyDataset when records is empty.
func Require(records []SessionRecord) error {
	if len(records) == 0 {
		return ErrEmptyDataset
	}
	return nil
}

func splitFields(line string) []string {
	fields := strings.Split(line, Delimiter)
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}
