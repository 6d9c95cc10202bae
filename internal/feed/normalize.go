// internal/feed/normalize.go
//
// Row normalization: one raw source record → Profile candidate or Post.
//
// Context
// -------
// Source databases are user-built, so the property bag is best-effort:
// any property may be missing, renamed, or empty.  Every extraction
// applies a default instead of failing — a record can never abort a feed.
//
// Profile detection
// -----------------
// Widget templates have used three incompatible conventions for the row
// that carries profile data.  The chain below is a compatibility shim
// over all deployed templates, applied in priority order:
//
//  1. An explicit `Row Type` select equal to "Profile" (current template;
//     authoritative whenever the property is present).
//  2. Any populated profile-named property — "Profile Name",
//     "Profile Picture", or "Profile Note" (previous template).
//  3. Otherwise the record is a Post.
//
// At most one record per feed becomes the Profile; the aggregator keeps
// the first in fetch order and ignores later candidates.
package feed

import (
	"strings"

	"github.com/gridfolio/gridfolio/internal/notion"
)

// Canonical property names in the widget template.
const (
	propRowType        = "Row Type"
	propProfileName    = "Profile Name"
	propProfilePicture = "Profile Picture"
	propProfileNote    = "Profile Note"
	propName           = "Name"
	propPublishDate    = "Publish Date"
	propAttachment     = "Attachment"
	propVideo          = "Media/Video"
	propThumbnail      = "Thumbnail"
	propType           = "Type"
	propPin            = "Pin"
	propHide           = "Hide"
	propHighlight      = "Highlight"

	rowTypeProfile = "Profile"

	defaultProfileName = "Grid Planner"
)

// Profile is derived, never persisted.
type Profile struct {
	Name    string  `json:"name"`
	Picture *string `json:"picture"`
	Note    *string `json:"note"`
}

// Post is derived, never persisted.  Identity is the source record's id.
type Post struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PublishDate *string  `json:"publishDate"`
	Attachment  []string `json:"attachment"`
	Video       *string  `json:"video"`
	Thumbnail   *string  `json:"thumbnail"`
	Type        []string `json:"type"`
	Pinned      bool     `json:"pinned"`
	Hide        bool     `json:"hide"`
	Highlight   bool     `json:"highlight"`
}

// Normalize maps one record to either a Profile candidate or a Post,
// never both.
func Normalize(page notion.Page) (*Post, *Profile) {
	if isProfileRow(page) {
		return nil, buildProfile(page)
	}
	return buildPost(page), nil
}

func isProfileRow(page notion.Page) bool {
	// Explicit selector wins when present.
	if rt, ok := page.Properties[propRowType]; ok && rt.Select != nil {
		return rt.Select.Name == rowTypeProfile
	}

	// Legacy: any populated profile-named property.
	if firstText(page, propProfileName) != "" {
		return true
	}
	if firstFileURL(page, propProfilePicture) != "" {
		return true
	}
	if joinedText(page, propProfileNote) != "" {
		return true
	}
	return false
}

func buildProfile(page notion.Page) *Profile {
	name := firstText(page, propProfileName)
	if name == "" {
		name = defaultProfileName
	}
	return &Profile{
		Name:    name,
		Picture: optional(firstFileURL(page, propProfilePicture)),
		Note:    optional(joinedText(page, propProfileNote)),
	}
}

func buildPost(page notion.Page) *Post {
	return &Post{
		ID:          page.ID,
		Name:        firstText(page, propName),
		PublishDate: optional(dateStart(page, propPublishDate)),
		Attachment:  fileURLs(page, propAttachment),
		Video:       optional(firstFileURL(page, propVideo)),
		Thumbnail:   optional(firstFileURL(page, propThumbnail)),
		Type:        selectNames(page, propType),
		Pinned:      checkbox(page, propPin),
		Hide:        checkbox(page, propHide),
		Highlight:   checkbox(page, propHighlight),
	}
}

/*─────────────────────── property extraction ──────────────────────────────*/

// firstText returns the first title or rich-text fragment, else "".
func firstText(page notion.Page, name string) string {
	p, ok := page.Properties[name]
	if !ok {
		return ""
	}
	if len(p.Title) > 0 {
		return p.Title[0].PlainText
	}
	if len(p.RichText) > 0 {
		return p.RichText[0].PlainText
	}
	return ""
}

// joinedText concatenates every rich-text fragment.
func joinedText(page notion.Page, name string) string {
	p, ok := page.Properties[name]
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, t := range p.RichText {
		b.WriteString(t.PlainText)
	}
	return b.String()
}

// fileURLs returns every non-empty file URL; never nil.
func fileURLs(page notion.Page, name string) []string {
	urls := make([]string, 0, 4)
	if p, ok := page.Properties[name]; ok {
		for _, f := range p.Files {
			if u := f.URL(); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func firstFileURL(page notion.Page, name string) string {
	if p, ok := page.Properties[name]; ok {
		for _, f := range p.Files {
			if u := f.URL(); u != "" {
				return u
			}
		}
	}
	return ""
}

// selectNames returns multi-select option names; never nil.
func selectNames(page notion.Page, name string) []string {
	names := make([]string, 0, 4)
	if p, ok := page.Properties[name]; ok {
		for _, o := range p.MultiSelect {
			names = append(names, o.Name)
		}
	}
	return names
}

func checkbox(page notion.Page, name string) bool {
	p, ok := page.Properties[name]
	return ok && p.Checkbox
}

func dateStart(page notion.Page, name string) string {
	if p, ok := page.Properties[name]; ok && p.Date != nil {
		return p.Date.Start
	}
	return ""
}

// optional maps "" to nil so absent values serialize as JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
