package loader

import (
	"testing"
	"time"

	"go.akshayshah.org/attest"
)

func TestHasChanged(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	later := now.Add(time.Minute)

	for _, tt := range []struct {
		name string
		old  SourceMetadata
		new  SourceMetadata
		want bool
	}{
		{"both empty", SourceMetadata{}, SourceMetadata{}, true},
		{"old empty", SourceMetadata{}, SourceMetadata{ModTime: now}, true},
		{"new empty", SourceMetadata{ModTime: now}, SourceMetadata{}, true},
		{"mtime advanced", SourceMetadata{ModTime: now}, SourceMetadata{ModTime: later}, true},
		{"mtime unchanged", SourceMetadata{ModTime: now}, SourceMetadata{ModTime: now}, false},
		{"mtime regressed", SourceMetadata{ModTime: later}, SourceMetadata{ModTime: now}, false},
		{"etag differs", SourceMetadata{ETag: `"v1"`}, SourceMetadata{ETag: `"v2"`}, true},
		{"etag same", SourceMetadata{ETag: `"v1"`}, SourceMetadata{ETag: `"v1"`}, false},
		{"last-modified differs", SourceMetadata{LastModified: "a"}, SourceMetadata{LastModified: "b"}, true},
		{"last-modified same", SourceMetadata{LastModified: "a"}, SourceMetadata{LastModified: "a"}, false},
		{"no comparable field", SourceMetadata{ETag: `"v1"`}, SourceMetadata{ModTime: now}, true},
	} {
		attest.Equal(t, HasChanged(tt.old, tt.new), tt.want, attest.Sprintf("%s", tt.name))
	}
}

func TestSourceMetadataIsEmpty(t *testing.T) {
	t.Parallel()

	attest.True(t, SourceMetadata{}.IsEmpty())
	attest.False(t, SourceMetadata{ETag: "x"}.IsEmpty())
	attest.False(t, SourceMetadata{LastModified: "x"}.IsEmpty())
	attest.False(t, SourceMetadata{ModTime: time.Unix(1, 0)}.IsEmpty())
}

func TestParseDataSource(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		in   string
		want SourceKind
	}{
		{"http://example.com/data.csv", SourceURL},
		{"https://example.com/data.csv", SourceURL},
		{"/var/data/objects.csv", SourceFile},
		{"objects.csv", SourceFile},
	} {
		got := ParseDataSource(tt.in)
		attest.Equal(t, got.Kind, tt.want)
		attest.Equal(t, got.Location, tt.in)
	}
}
