package store

import (
	"encoding/json"
	"fmt"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// encodeDocument serializes an issue for the SQL and redis adapters.
// The status lives in its own column/field so updates never rewrite the document.
func encodeDocument(issue domain.Issue) (string, error) {
	issue.Status = ""
	data, err := json.Marshal(issue)
	if err != nil {
		return "", fmt.Errorf("encode document %d: %w", issue.ID, err)
	}
	return string(data), nil
}

func decodeDocument(document []byte, status string) (*domain.Issue, error) {
	var issue domain.Issue
	if err := json.Unmarshal(document, &issue); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	issue.Status = domain.Status(status)
	return &issue, nil
}
