// internal/config/model.go
//
// Typed configuration model for Gridfolio.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                        – dotenv values,
//   • `conf/global.yaml`                          – primary static file,
//   • `GRIDFOLIO_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client after unmarshalling (see secrets.go), so by
// the time components read Config they see plain strings only.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// App section
//

// App holds the public base URL used for OAuth and dashboard redirects.
type App struct {
	PublicURL string `koanf:"public_url" validate:"required,url"`
}

//
// Database section
//

// Database holds the shared-store DSN.  The secret portion may live in
// Vault (`vault:` prefix) and is injected before the pool opens, keeping
// credentials out of flat files and git history.
type Database struct {
	DSN string `koanf:"dsn" validate:"required"`
}

//
// Notion section
//

// Notion holds the integration credentials for the content source.
// BaseURL is overridable for tests; empty means the production API.
type Notion struct {
	ClientID     string `koanf:"client_id"     validate:"required"`
	ClientSecret string `koanf:"client_secret" validate:"required"`
	RedirectURI  string `koanf:"redirect_uri"  validate:"required,url"`
	BaseURL      string `koanf:"base_url"`
}

//
// Geo section
//

// Geo optionally points at a GeoLite2 database for request enrichment.
// Empty path disables geo lookups.
type Geo struct {
	MMDBPath string `koanf:"mmdb_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or GRIDFOLIO_ROOT override) so later code
// can build absolute file paths.
type Paths struct {
	Root string // GRIDFOLIO_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	App      App      `koanf:"app"`
	Database Database `koanf:"database"`
	Notion   Notion   `koanf:"notion"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
