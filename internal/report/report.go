// Package report renders and delivers the per-run conflict report: the
// unresolved overlap groups and invalid categories a human needs to act on,
// plus the run's status counts.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"daybook/internal/archive"
)

// RenderMarkdown produces the markdown body of a run report.
func RenderMarkdown(summary archive.RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Archive report %s, %s\n\n", summary.UserID, summary.Day)
	fmt.Fprintf(&b, "Run `%s`, %d fetched, %d duplicates dropped.\n\n", summary.RunID, summary.Fetched, summary.Duplicates)

	b.WriteString("## Counts\n\n")
	statuses := make([]string, 0, len(summary.Counts))
	for s := range summary.Counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "- %s: %d\n", s, summary.Counts[archive.Status(s)])
	}
	b.WriteString("\n")

	b.WriteString("## Unresolved conflicts\n\n")
	if len(summary.Conflicts) == 0 {
		b.WriteString("None.\n\n")
	} else {
		for _, c := range summary.Conflicts {
			fmt.Fprintf(&b, "- group `%s` (%s): %s\n", c.Group.ID, c.Reason, strings.Join(c.Group.Members, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Invalid categories\n\n")
	if len(summary.InvalidCategories) == 0 {
		b.WriteString("None.\n")
	} else {
		for _, ic := range summary.InvalidCategories {
			fmt.Fprintf(&b, "- `%s`: %q (%s)\n", ic.AppointmentID, ic.Raw, ic.Reason)
		}
	}

	return b.String()
}

// RenderHTML converts the markdown report body to HTML.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
