// internal/feed/aggregate_test.go
//
// Unit-tests for multi-source feed assembly.
//
// Run: go test ./internal/feed -v

package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/gridfolio/gridfolio/internal/notion"
)

// fakeFetcher serves canned pages per database id; listed ids in errs
// fail after returning their (possibly partial) pages.
type fakeFetcher struct {
	pages map[string][]notion.Page
	errs  map[string]error
}

func (f *fakeFetcher) FetchAll(_ context.Context, databaseID, _ string) ([]notion.Page, error) {
	return f.pages[databaseID], f.errs[databaseID]
}

func postPage(id, name string) notion.Page {
	return notion.Page{ID: id, Properties: map[string]notion.Property{
		"Name": title(name),
	}}
}

func profilePage(id, name string) notion.Page {
	return notion.Page{ID: id, Properties: map[string]notion.Property{
		"Row Type":     sel("Profile"),
		"Profile Name": text(name),
	}}
}

func postIDs(fd *Feed) []string {
	ids := make([]string, len(fd.Posts))
	for i, p := range fd.Posts {
		ids[i] = p.ID
	}
	return ids
}

func TestAssembleMergeOrder(t *testing.T) {
	agg := NewAggregator(&fakeFetcher{pages: map[string][]notion.Page{
		"a": {postPage("a1", "one"), postPage("a2", "two")},
		"b": {postPage("b1", "three")},
		"c": {postPage("c1", "four"), postPage("c2", "five")},
	}})

	fd := agg.Assemble(context.Background(), "secret", []string{"a", "b", "c"})

	want := []string{"a1", "a2", "b1", "c1", "c2"}
	got := postIDs(fd)
	if len(got) != len(want) {
		t.Fatalf("post count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("merge order = %v, want %v", got, want)
		}
	}
}

func TestAssembleFirstProfileWins(t *testing.T) {
	agg := NewAggregator(&fakeFetcher{pages: map[string][]notion.Page{
		"a": {postPage("a1", "post"), profilePage("ap", "First")},
		"b": {profilePage("bp", "Second")},
	}})

	fd := agg.Assemble(context.Background(), "secret", []string{"a", "b"})

	if fd.Profile == nil || fd.Profile.Name != "First" {
		t.Fatalf("Profile = %+v, want First", fd.Profile)
	}
	// Demoted profile candidates never leak into the post list.
	for _, p := range fd.Posts {
		if p.ID == "ap" || p.ID == "bp" {
			t.Fatalf("profile candidate leaked into posts: %v", postIDs(fd))
		}
	}
	if len(fd.Posts) != 1 || fd.Posts[0].ID != "a1" {
		t.Fatalf("posts = %v", postIDs(fd))
	}
}

func TestAssembleSourceFailureIsolated(t *testing.T) {
	agg := NewAggregator(&fakeFetcher{
		pages: map[string][]notion.Page{
			"a": {postPage("a1", "survives")},
			"b": {postPage("b1", "partial")}, // returned alongside the error
			"c": {postPage("c1", "also survives")},
		},
		errs: map[string]error{"b": errors.New("upstream exploded")},
	})

	fd := agg.Assemble(context.Background(), "secret", []string{"a", "b", "c"})

	want := []string{"a1", "b1", "c1"}
	got := postIDs(fd)
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("posts = %v, want %v (partial pages kept, siblings unaffected)", got, want)
	}
}

func TestAssembleEmptyState(t *testing.T) {
	agg := NewAggregator(&fakeFetcher{})

	for name, fd := range map[string]*Feed{
		"no credential": agg.Assemble(context.Background(), "", []string{"a"}),
		"no selection":  agg.Assemble(context.Background(), "secret", nil),
	} {
		if fd == nil || fd.Profile != nil || fd.Posts == nil || len(fd.Posts) != 0 {
			t.Errorf("%s: got %+v, want empty feed with non-nil posts", name, fd)
		}
	}
}
