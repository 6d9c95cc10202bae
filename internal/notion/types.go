// internal/notion/types.go
//
// Wire shapes for the slice of the Notion API this service consumes.
//
// Context
// -------
// A database row arrives as a Page whose Properties map is schema-less:
// every property carries all possible value slots and only the one
// matching its type is populated.  We decode just the slots the
// normalizer reads (title, rich_text, files, select, multi_select,
// checkbox, date) and ignore the rest.  Absent properties decode to zero
// values, so downstream code never has to guard against nil maps.
package notion

// Page is one record returned by a database query.
type Page struct {
	ID         string              `json:"id"`
	Properties map[string]Property `json:"properties"`
}

// Property is the union of value slots we care about.  Exactly one slot
// is populated for a given property; the others stay zero.
type Property struct {
	Title       []RichText `json:"title"`
	RichText    []RichText `json:"rich_text"`
	Files       []File     `json:"files"`
	Select      *Option    `json:"select"`
	MultiSelect []Option   `json:"multi_select"`
	Checkbox    bool       `json:"checkbox"`
	Date        *Date      `json:"date"`
}

// RichText is a text fragment; we only read the flattened plain_text.
type RichText struct {
	PlainText string `json:"plain_text"`
}

// File is either Notion-hosted ("file") or externally linked
// ("external").  URL returns whichever is present.
type File struct {
	File     *FileRef `json:"file"`
	External *FileRef `json:"external"`
}

// FileRef carries the actual URL.
type FileRef struct {
	URL string `json:"url"`
}

// URL returns the hosted URL, the external URL, or "".
func (f File) URL() string {
	if f.File != nil && f.File.URL != "" {
		return f.File.URL
	}
	if f.External != nil {
		return f.External.URL
	}
	return ""
}

// Option is a select / multi-select choice.
type Option struct {
	Name string `json:"name"`
}

// Date carries the start of a date property (ISO 8601).
type Date struct {
	Start string `json:"start"`
}

// Database is the metadata envelope returned by the retrieve-database
// endpoint.  Only the title is consumed (default binding label).
type Database struct {
	ID    string     `json:"id"`
	Title []RichText `json:"title"`
}

// DisplayTitle flattens the database title, or "Untitled" when empty.
func (d Database) DisplayTitle() string {
	if len(d.Title) > 0 && d.Title[0].PlainText != "" {
		return d.Title[0].PlainText
	}
	return "Untitled"
}

// Token is the credential minted by the OAuth code exchange.  The access
// token never leaves the connection store boundary.
type Token struct {
	AccessToken   string `json:"access_token"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	BotID         string `json:"bot_id"`
}
