package task

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/icodeforyou/energiprice-go/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMaintainer struct {
	calls     []string
	backupErr error
	maxLog    int
	retention int
}

func (f *fakeMaintainer) Backup(context.Context) (string, error) {
	f.calls = append(f.calls, "backup")
	return "backup.zip", f.backupErr
}

func (f *fakeMaintainer) PurgeBackups(int) (int, error) {
	f.calls = append(f.calls, "purge_backups")
	return 1, nil
}

func (f *fakeMaintainer) PurgeLog(_ context.Context, maxLogEntries int) error {
	f.calls = append(f.calls, "purge_log")
	f.maxLog = maxLogEntries
	return nil
}

func (f *fakeMaintainer) PurgePublishedPrices(_ context.Context, retentionDays int) (int64, error) {
	f.calls = append(f.calls, "purge_prices")
	f.retention = retentionDays
	return 0, nil
}

func TestMaintenanceTaskRunsEveryStep(t *testing.T) {
	days := 7
	cnfg := &config.AppConfig{Database: config.AppConfigDatabase{DataRetentionDays: &days}}
	db := &fakeMaintainer{backupErr: errors.New("disk full")}

	NewMaintenanceTask(slog.Default(), db, cnfg)()

	// A failed backup does not stop the purges.
	assert.Equal(t, []string{"backup", "purge_backups", "purge_log", "purge_prices"}, db.calls)
	assert.Equal(t, 10000, db.maxLog)
	assert.Equal(t, 7, db.retention)
}

func TestRunRejectsInvalidSchedule(t *testing.T) {
	spec := "every night"
	cnfg := &config.AppConfig{Schedule: config.AppConfigSchedule{MaintenanceAt: &spec}}

	err := NewTasks(&fakeMaintainer{}, cnfg).Run()
	assert.ErrorContains(t, err, "scheduling maintenance task")
}

func TestRunAndStop(t *testing.T) {
	tasks := NewTasks(&fakeMaintainer{}, &config.AppConfig{})
	require.NoError(t, tasks.Run())
	<-tasks.Stop().Done()
}
