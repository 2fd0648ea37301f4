// File: internal/billing/artifact_test.go
package billing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteBillCreatesDirectoryAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "bills")
	writer := NewArtifactWriter(dir, zap.NewNop())

	path, err := writer.WriteBill("A1", "B1", []byte("%PDF-1.4 data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bill_A1_B1.pdf"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 data", string(content))
}

func TestWriteBillSanitizesIdentifiers(t *testing.T) {
	dir := t.TempDir()
	writer := NewArtifactWriter(dir, zap.NewNop())

	path, err := writer.WriteBill("../A 1", "B/1", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bill_..-A-1_B-1.pdf"), path)
}

func TestWriteBillWarnsOnNonPDFContent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	writer := NewArtifactWriter(t.TempDir(), zap.New(core))

	_, err := writer.WriteBill("A1", "B1", []byte(`{"error":"session expired"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}
