package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"daybook/internal/archive"
)

// FileSink writes run reports to disk, one markdown and one HTML file per
// run, under baseDir/<user>/. Delivery is best-effort per the collaborator
// contract: callers log sink errors and continue.
type FileSink struct {
	baseDir string
	log     zerolog.Logger
}

// NewFileSink creates a sink writing under baseDir.
func NewFileSink(baseDir string, log zerolog.Logger) *FileSink {
	return &FileSink{baseDir: baseDir, log: log}
}

// Report renders and writes the run report.
func (s *FileSink) Report(_ context.Context, summary archive.RunSummary) error {
	dir := filepath.Join(s.baseDir, summary.UserID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	md := RenderMarkdown(summary)
	stem := fmt.Sprintf("%s-%s", summary.Day, summary.RunID)

	mdPath := filepath.Join(dir, stem+".md")
	if err := os.WriteFile(mdPath, []byte(md), 0600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	html, err := RenderHTML(md)
	if err != nil {
		return fmt.Errorf("failed to render report html: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".html"), []byte(html), 0600); err != nil {
		return fmt.Errorf("failed to write report html: %w", err)
	}

	s.log.Info().Str("path", mdPath).
		Int("conflicts", len(summary.Conflicts)).
		Int("invalid_categories", len(summary.InvalidCategories)).
		Msg("run report written")
	return nil
}
