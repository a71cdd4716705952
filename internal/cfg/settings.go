package cfg

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"msgclf/internal/common"
)

// Addr returns the dashboard listen address.
func (s *Settings) Addr() string {
	return fmt.Sprintf(":%d", s.HTTPPort)
}

// ResultsPath returns the bbolt file holding exported result tables, or ""
// when no data directory is configured and results stay in memory.
func (s *Settings) ResultsPath() string {
	if s.DataPath == "" {
		return ""
	}
	return filepath.Join(s.DataPath, common.DefaultResultsFileName)
}

// ExportFileName is the download name offered for bulk results.
func (s *Settings) ExportFileName() string {
	if s.Profile == common.ProfileSpam {
		return common.DefaultSpamExport
	}
	return common.DefaultSentimentExport
}

// Level returns the configured log level, info if it does not parse.
func (s *Settings) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
