package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/user/akun-go/apperror"
	"github.com/user/akun-go/config"
)

func TestGormLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return `SELECT * FROM "users"`, 1 }

	tests := []struct {
		name    string
		elapsed time.Duration
		err     error
		level   logrus.Level
		msg     string
	}{
		{"query error", time.Millisecond, errors.New("boom"), logrus.ErrorLevel, "query failed"},
		{"slow query", time.Second, nil, logrus.WarnLevel, "slow query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			l := NewGormLogger(log, 100*time.Millisecond)

			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), sql, tt.err)

			require.Len(t, hook.AllEntries(), 1)
			assert.Equal(t, tt.level, hook.LastEntry().Level)
			assert.Equal(t, tt.msg, hook.LastEntry().Message)
			assert.Equal(t, `SELECT * FROM "users"`, hook.LastEntry().Data["sql"])
		})
	}
}

func TestGormLogger_IgnoresRecordNotFoundAndSilent(t *testing.T) {
	log, hook := test.NewNullLogger()
	sql := func() (string, int64) { return "SELECT 1", 0 }

	l := NewGormLogger(log, time.Second)
	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, hook.AllEntries())

	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	assert.Empty(t, hook.AllEntries())
}

func TestRunMigrations_MissingDirectory(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := &config.PoolConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "akun"}

	err := RunMigrations(cfg, filepath.Join(t.TempDir(), "missing"), log)
	require.Error(t, err)
	appErr, ok := apperror.FromError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.MigrationError, appErr.Type)
}
