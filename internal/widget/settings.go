// internal/widget/settings.go
//
// Per-widget display settings.
//
// The server never interprets these: the feed endpoint passes them
// through for the embed to apply (layout, theme, auto-refresh).  A
// widget without a settings row runs on defaults, and a failed read is
// non-fatal for the same reason — the feed still works.
package widget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Settings mirrors one row in the `widget_settings` table.
type Settings struct {
	WhiteLabelEnabled      bool   `db:"white_label_enabled"       json:"white_label_enabled"`
	CustomCSS              string `db:"custom_css"                json:"custom_css"`
	LayoutMode             string `db:"layout_mode"               json:"layout_mode"`
	AutoRefreshEnabled     bool   `db:"auto_refresh_enabled"      json:"auto_refresh_enabled"`
	AutoRefreshIntervalSec int    `db:"auto_refresh_interval_sec" json:"auto_refresh_interval_sec"`
	ThemeMode              string `db:"theme_mode"                json:"theme_mode"`
}

// DefaultSettings is what a widget runs on before any row exists.
func DefaultSettings() Settings {
	return Settings{LayoutMode: "grid", ThemeMode: "default"}
}

// SettingsByWidget returns the widget's settings, or the defaults when
// no row exists yet.
func (s *Store) SettingsByWidget(ctx context.Context, widgetID string) (Settings, error) {
	const q = `
        SELECT white_label_enabled, custom_css, layout_mode,
               auto_refresh_enabled, auto_refresh_interval_sec, theme_mode
        FROM   widget_settings
        WHERE  widget_id = ?`

	var set Settings
	if err := s.db.GetContext(ctx, &set, q, widgetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultSettings(), nil
		}
		return DefaultSettings(), fmt.Errorf("widget settings: %w", err)
	}
	return set, nil
}
