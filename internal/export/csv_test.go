package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

func TestWrite_QuotesCommas(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	records := []Record{{{"id", "1"}, {"title", "a,b"}}}

	// Act
	err := Write(&buf, records)

	// Assert
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{`"id","title"`, `"1","a,b"`}, lines)
}

func TestWrite_EscapesQuotes(t *testing.T) {
	var buf bytes.Buffer

	err := Write(&buf, []Record{{{"title", `say "hi"`}}})

	require.NoError(t, err)
	assert.Equal(t, "\"title\"\n\"say \"\"hi\"\"\"\n", buf.String())
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer

	err := Write(&buf, nil)

	assert.ErrorIs(t, err, ErrNoRecords)
	assert.Zero(t, buf.Len())
}

func TestWrite_Deterministic(t *testing.T) {
	records := IssueRecords([]domain.Issue{
		{ID: 1, Title: "one", Repo: "api", Status: domain.StatusValid},
		{ID: 2, Title: "two\nlines", Repo: "web"},
	})
	var first, second bytes.Buffer

	require.NoError(t, Write(&first, records))
	require.NoError(t, Write(&second, records))

	assert.Equal(t, first.String(), second.String())
	assert.True(t, strings.HasPrefix(first.String(),
		`"id","title","body","reporter","reporterTeam","repo","url","state","createdAt","status"`+"\n"))
	assert.Contains(t, first.String(), `"2","two`+"\n"+`lines"`)
}

func TestRepoRecords(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Write(&buf, RepoRecords([]domain.IssuelessRepo{{Name: "docs"}})))

	assert.Equal(t, "\"name\"\n\"docs\"\n", buf.String())
}
