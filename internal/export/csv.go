// Package export renders triage records as CSV downloads.
package export

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no records to export")

// Field is one named value of a record.
type Field struct {
	Name  string
	Value string
}

// Record is an ordered list of fields.
type Record []Field

// Write emits a header row taken from the first record's field names
// followed by one row per record. Every field is double-quoted and inner
// quotes are doubled, so commas and newlines inside values survive.
// Rows are positional: later records are written field by field in their own order.
func Write(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	bw := bufio.NewWriter(w)
	header := make([]string, len(records[0]))
	for i, f := range records[0] {
		header[i] = f.Name
	}
	writeRow(bw, header)

	for _, record := range records {
		values := make([]string, len(record))
		for i, f := range record {
			values[i] = f.Value
		}
		writeRow(bw, values)
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, values []string) {
	for i, v := range values {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(v, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// IssueRecords maps issues to records using their JSON field names.
func IssueRecords(issues []domain.Issue) []Record {
	records := make([]Record, 0, len(issues))
	for _, i := range issues {
		records = append(records, Record{
			{"id", strconv.FormatInt(i.ID, 10)},
			{"title", i.Title},
			{"body", i.Body},
			{"reporter", i.Reporter},
			{"reporterTeam", i.ReporterTeam},
			{"repo", i.Repo},
			{"url", i.URL},
			{"state", i.State},
			{"createdAt", i.CreatedAt},
			{"status", string(i.Status)},
		})
	}
	return records
}

// RepoRecords maps issueless repositories to single-column records.
func RepoRecords(repos []domain.IssuelessRepo) []Record {
	records := make([]Record, 0, len(repos))
	for _, r := range repos {
		records = append(records, Record{{"name", r.Name}})
	}
	return records
}
