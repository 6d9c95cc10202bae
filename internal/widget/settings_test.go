// internal/widget/settings_test.go
//
// Run: go test ./internal/widget -v

package widget

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newSettingsStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestSettingsByWidget(t *testing.T) {
	s, mock := newSettingsStore(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget_settings`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{
			"white_label_enabled", "custom_css", "layout_mode",
			"auto_refresh_enabled", "auto_refresh_interval_sec", "theme_mode"}).
			AddRow(true, ".grid{gap:4px}", "masonry", true, 120, "dark"))

	got, err := s.SettingsByWidget(context.Background(), "w1")
	if err != nil {
		t.Fatalf("SettingsByWidget: %v", err)
	}
	if !got.WhiteLabelEnabled || got.LayoutMode != "masonry" ||
		got.AutoRefreshIntervalSec != 120 || got.ThemeMode != "dark" {
		t.Fatalf("unexpected settings: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSettingsByWidgetMissingRowDefaults(t *testing.T) {
	s, mock := newSettingsStore(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget_settings`).
		WithArgs("w2").
		WillReturnError(sql.ErrNoRows)

	got, err := s.SettingsByWidget(context.Background(), "w2")
	if err != nil {
		t.Fatalf("SettingsByWidget: %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

func TestSettingsByWidgetReadFailure(t *testing.T) {
	s, mock := newSettingsStore(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+widget_settings`).
		WithArgs("w3").
		WillReturnError(sql.ErrConnDone)

	got, err := s.SettingsByWidget(context.Background(), "w3")
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("err = %v, want ErrConnDone", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults alongside the error", got)
	}
}
