// internal/widget/setup.go
//
// Setup completion: the write side of the provisioning flow.
//
// Context
// -------
// The OAuth callback is the moment a customer turns real: the workspace
// credential is stored (upsert — re-authorizing replaces the previous
// connection), the first widget is created if none exists, the one-time
// setup token is consumed, and the long-lived dashboard token is minted.
// Token mechanics up to the credential are an external collaborator;
// everything after the exchanged token lands here.
//
// The setup token row keeps its value after consumption — a consumed
// token must still resolve to the widget slug so a revisited setup link
// can redirect instead of dead-ending — so consumption flips the
// setup_used flag rather than nulling the column.
package widget

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gridfolio/gridfolio/internal/fault"
	"go.uber.org/zap"

	"github.com/gridfolio/gridfolio/internal/notion"
)

// SetupService completes the provisioning flow after a successful OAuth
// exchange.
type SetupService struct {
	db      *sqlx.DB
	widgets *Store
}

// NewSetupService wires the service.
func NewSetupService(db *sqlx.DB, widgets *Store) *SetupService {
	return &SetupService{db: db, widgets: widgets}
}

// SetupResult is handed back to the callback handler for the redirect.
type SetupResult struct {
	Widget         *Widget
	DashboardToken string
}

// Complete runs the whole post-exchange sequence for one customer.  Each
// step is idempotent, so a retried callback converges instead of
// duplicating rows.
func (s *SetupService) Complete(ctx context.Context, customerID, customerSlug string, tok *notion.Token) (*SetupResult, error) {
	if err := s.UpsertConnection(ctx, customerID, tok); err != nil {
		return nil, err
	}

	w, err := s.EnsureWidget(ctx, customerID, customerSlug)
	if err != nil {
		return nil, err
	}

	if err := s.ConsumeSetupToken(ctx, customerID); err != nil {
		return nil, err
	}

	token, err := s.EnsureDashboardToken(ctx, customerID, w.Slug)
	if err != nil {
		return nil, err
	}

	zap.S().Infow("setup completed",
		"customer_id", customerID,
		"widget_slug", w.Slug,
		"workspace", tok.WorkspaceName,
	)
	return &SetupResult{Widget: w, DashboardToken: token}, nil
}

// UpsertConnection stores the workspace credential, replacing any
// previous connection for the customer (UNIQUE key on customer_id).
func (s *SetupService) UpsertConnection(ctx context.Context, customerID string, tok *notion.Token) error {
	const q = `
        INSERT INTO connection
               (id, customer_id, access_token, workspace_id,
                workspace_name, bot_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, NOW(6), NOW(6))
        ON DUPLICATE KEY UPDATE
               access_token   = VALUES(access_token),
               workspace_id   = VALUES(workspace_id),
               workspace_name = VALUES(workspace_name),
               bot_id         = VALUES(bot_id),
               updated_at     = NOW(6)`

	_, err := s.db.ExecContext(ctx, q,
		uuid.NewString(), customerID,
		tok.AccessToken, tok.WorkspaceID, tok.WorkspaceName, tok.BotID)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

// EnsureWidget returns the customer's oldest widget, creating the
// default one when none exists yet.
func (s *SetupService) EnsureWidget(ctx context.Context, customerID, customerSlug string) (*Widget, error) {
	w, err := s.widgets.OldestByCustomer(ctx, customerID)
	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, fault.ErrNotFound):
		return s.widgets.Create(ctx, customerID, DefaultName, customerSlug)
	default:
		return nil, err
	}
}

// ConsumeSetupToken marks the one-time token used.  Already-consumed is
// not an error here; the resolver enforces single-use on the read side.
func (s *SetupService) ConsumeSetupToken(ctx context.Context, customerID string) error {
	const q = `UPDATE customer SET setup_used = TRUE WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, customerID); err != nil {
		return fmt.Errorf("consume setup token: %w", err)
	}
	return nil
}

// EnsureDashboardToken returns the customer's dashboard token, minting
// one on first setup.  default_widget_slug is filled in the same write
// when still empty.
func (s *SetupService) EnsureDashboardToken(ctx context.Context, customerID, widgetSlug string) (string, error) {
	const get = `SELECT COALESCE(dashboard_token, '') FROM customer WHERE id = ?`
	var token string
	if err := s.db.GetContext(ctx, &token, get, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("ensure dashboard token: customer %s missing", customerID)
		}
		return "", fmt.Errorf("ensure dashboard token: %w", err)
	}
	if token != "" {
		return token, nil
	}

	token = newOpaqueToken()
	const set = `
        UPDATE customer
        SET    dashboard_token = ?,
               dashboard_token_created_at = NOW(6),
               default_widget_slug = COALESCE(NULLIF(default_widget_slug, ''), ?)
        WHERE  id = ?`
	if _, err := s.db.ExecContext(ctx, set, token, widgetSlug, customerID); err != nil {
		return "", fmt.Errorf("ensure dashboard token: %w", err)
	}
	return token, nil
}

// newOpaqueToken mints a 48-hex-char credential.
func newOpaqueToken() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// isDuplicateKey recognises MySQL/MariaDB error 1062.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
