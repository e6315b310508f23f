package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIngestDirectoryMissing(t *testing.T) {
	repo := newFakeRepository()
	svc := NewIngestionService(repo, testLogger, testMetrics)

	_, err := svc.IngestDirectory(context.Background(), "/nonexistent/wx_data", 10)

	var dirErr *DirectoryNotFoundError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "/nonexistent/wx_data", dirErr.Path)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "USC00110072.txt",
		"19850101\t-22\t-128\t94\n"+
			"\n"+ // blank lines are skipped silently
			"19850102\t100\t50\t0\n"+
			"19850103\tnot-a-number\t50\t0\n") // malformed, counted as error
	writeDataFile(t, dir, "USC00110187.txt",
		"19850101\t111\t22\t33\n")

	repo := newFakeRepository()
	svc := NewIngestionService(repo, testLogger, testMetrics)

	result, err := svc.IngestDirectory(context.Background(), dir, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 3, result.RecordsIngested)
	assert.Equal(t, 0, result.RecordsSkipped)
	assert.Equal(t, 1, result.Errors)

	// Station ID comes from the file base name.
	rec, ok := repo.daily["USC00110187|19850101"]
	require.True(t, ok)
	assert.Equal(t, "USC00110187", rec.StationID)
	assert.Equal(t, 111, rec.MaxTemp)
}

func TestIngestDirectorySecondRunSkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "S1.txt",
		"19850101\t-22\t-128\t94\n"+
			"19850102\t100\t50\t0\n")

	repo := newFakeRepository()
	svc := NewIngestionService(repo, testLogger, testMetrics)
	ctx := context.Background()

	first, err := svc.IngestDirectory(ctx, dir, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, first.RecordsIngested)
	assert.Equal(t, 0, first.RecordsSkipped)

	second, err := svc.IngestDirectory(ctx, dir, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RecordsIngested)
	assert.Equal(t, 2, second.RecordsSkipped, "reingested records are duplicate skips")
	assert.Equal(t, 0, second.Errors)

	// Still exactly one row per (station, date).
	assert.Len(t, repo.daily, 2)
	assert.Equal(t, -22, repo.daily["S1|19850101"].MaxTemp)
}

func TestIngestDirectoryPersistenceErrorContinues(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "S1.txt", "19850101\t-22\t-128\t94\n")
	writeDataFile(t, dir, "S2.txt", "19850101\t100\t50\t0\n")

	repo := newFakeRepository()
	repo.batchErr = errors.New("relation does not exist")
	svc := NewIngestionService(repo, testLogger, testMetrics)

	result, err := svc.IngestDirectory(context.Background(), dir, 10)
	require.NoError(t, err, "persistence failures never abort the run")

	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 0, result.RecordsIngested)
	assert.Equal(t, 2, result.Errors)
}

func TestIngestDirectoryEmpty(t *testing.T) {
	repo := newFakeRepository()
	svc := NewIngestionService(repo, testLogger, testMetrics)

	result, err := svc.IngestDirectory(context.Background(), t.TempDir(), 10)
	require.NoError(t, err)

	assert.Equal(t, 0, result.FilesProcessed)
	assert.Equal(t, 0, result.RecordsIngested)
	assert.Equal(t, 0, result.Errors)
}
