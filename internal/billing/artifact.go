// File: internal/billing/artifact.go
package billing

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var pdfMagic = []byte("%PDF")

// ArtifactWriter persists downloaded statements to the output directory,
// creating it on first use.
type ArtifactWriter struct {
	dir    string
	logger *zap.Logger
}

func NewArtifactWriter(dir string, logger *zap.Logger) *ArtifactWriter {
	return &ArtifactWriter{dir: dir, logger: logger.Named("artifacts")}
}

// WriteBill stores one statement as bill_<account>_<billID>.pdf and returns
// the path written. A body without the PDF magic bytes is still written (the
// portal occasionally serves error documents with a 200) but flagged loudly.
func (w *ArtifactWriter) WriteBill(accountNumber, billID string, content []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}

	if !bytes.HasPrefix(content, pdfMagic) {
		w.logger.Warn("Downloaded bill does not look like a PDF",
			zap.String("account", accountNumber),
			zap.String("bill_id", billID),
			zap.Int("size", len(content)),
		)
	}

	name := fmt.Sprintf("bill_%s_%s.pdf", sanitizeComponent(accountNumber), sanitizeComponent(billID))
	path := filepath.Join(w.dir, name)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	w.logger.Info("Saved bill PDF",
		zap.String("account", accountNumber),
		zap.String("bill_id", billID),
		zap.String("path", path),
	)
	return path, nil
}

// sanitizeComponent keeps identifiers filesystem-safe. Anything outside a
// conservative character set becomes a dash.
func sanitizeComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}
