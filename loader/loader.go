// Package loader turns a [DataSource] (file path or HTTP URL) into a built
// [index.Index], tracking [SourceMetadata] across calls so the reload
// scheduler can skip rebuilding an Index from unchanged data.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mwangi/occlusion/client"
	occerrors "github.com/mwangi/occlusion/errors"
	"github.com/mwangi/occlusion/index"
	"github.com/mwangi/occlusion/internal/conc"
)

// SourceKind distinguishes the two shapes a DataSource can take.
type SourceKind int

const (
	// SourceFile names a local filesystem path.
	SourceFile SourceKind = iota
	// SourceURL names an http:// or https:// endpoint.
	SourceURL
)

// DataSource is the parsed form of the single opaque configuration string
// naming where entries come from.
type DataSource struct {
	Kind     SourceKind
	Location string
}

// ParseDataSource classifies s: a "http://" or "https://" prefix makes it a
// URL source, anything else is treated as a file path.
func ParseDataSource(s string) DataSource {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return DataSource{Kind: SourceURL, Location: s}
	}
	return DataSource{Kind: SourceFile, Location: s}
}

// SourceMetadata is a small provenance record used to decide whether a
// source needs refetching. An empty SourceMetadata (the zero value) means
// "unknown — assume changed."
type SourceMetadata struct {
	ModTime      time.Time
	ETag         string
	LastModified string
}

// IsEmpty reports whether m carries no provenance information at all.
func (m SourceMetadata) IsEmpty() bool {
	return m.ModTime.IsZero() && m.ETag == "" && m.LastModified == ""
}

// HasChanged reports whether new should be treated as a different source
// state than old, per the rules: either side unknown means changed; a
// comparable mtime, ETag, or Last-Modified pair decides it; otherwise (no
// comparable field exists at all, e.g. a file source replaced by a URL
// source) it is conservatively treated as changed.
func HasChanged(old, new SourceMetadata) bool {
	if old.IsEmpty() || new.IsEmpty() {
		return true
	}
	if !old.ModTime.IsZero() && !new.ModTime.IsZero() {
		return new.ModTime.After(old.ModTime)
	}
	if old.ETag != "" && new.ETag != "" {
		return old.ETag != new.ETag
	}
	if old.LastModified != "" && new.LastModified != "" {
		return old.LastModified != new.LastModified
	}
	return true
}

// Result is what a successful [Loader.Load] call produces.
type Result struct {
	// Changed reports whether a new Index was built. When false, Index is
	// nil and Metadata equals the metadata passed in.
	Changed  bool
	Index    index.Index
	Metadata SourceMetadata
}

// Loader fetches and parses a DataSource into an Index of a fixed variant,
// reusing a single HTTP client across calls as required for conditional
// requests to behave (some servers tie ETag semantics to connection state).
type Loader struct {
	http    *client.Client
	variant index.Variant
}

// New builds a Loader that produces Index values of variant, fetching URL
// sources with httpClient. Pass a client built with [client.SafeClient] when
// the data source string may be attacker-influenced, or [client.UnsafeClient]
// for a fully trusted operator-configured endpoint.
func New(httpClient *client.Client, variant index.Variant) *Loader {
	return &Loader{http: httpClient, variant: variant}
}

// Load fetches src, conditioned on old, and builds a fresh Index if the
// source has changed. If the source is unchanged (file mtime not newer, or
// the server answers 304), Result.Changed is false and no Index is built.
//
// Errors are tagged with a [occerrors.Kind] via [occerrors.WithKind]:
// KindSourceUnavailable for I/O or HTTP failures, KindSourceMalformed for
// framing/parse errors, KindDuplicateUUID and KindBuildFailed for failures
// assembling the Index.
func (l *Loader) Load(ctx context.Context, src DataSource, old SourceMetadata) (Result, error) {
	switch src.Kind {
	case SourceFile:
		return l.loadFile(src.Location, old)
	case SourceURL:
		return l.loadURL(ctx, src.Location, old)
	default:
		return Result{}, occerrors.WithKind(occerrors.KindSourceUnavailable,
			fmt.Errorf("loader: unknown source kind %d", src.Kind))
	}
}

func (l *Loader) loadFile(path string, old SourceMetadata) (Result, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Result{}, occerrors.WithKind(occerrors.KindSourceUnavailable,
			fmt.Errorf("loader: stat %s: %w", path, err))
	}

	mtime := stat.ModTime()
	if !old.IsEmpty() && !old.ModTime.IsZero() && !mtime.After(old.ModTime) {
		return Result{Changed: false, Metadata: old}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, occerrors.WithKind(occerrors.KindSourceUnavailable,
			fmt.Errorf("loader: open %s: %w", path, err))
	}
	defer f.Close()

	idx, err := l.build(f)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Changed:  true,
		Index:    idx,
		Metadata: SourceMetadata{ModTime: mtime},
	}, nil
}

func (l *Loader) loadURL(ctx context.Context, url string, old SourceMetadata) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, occerrors.WithKind(occerrors.KindSourceUnavailable,
			fmt.Errorf("loader: building request for %s: %w", url, err))
	}
	if old.ETag != "" {
		req.Header.Set("If-None-Match", old.ETag)
	}
	if old.LastModified != "" {
		req.Header.Set("If-Modified-Since", old.LastModified)
	}

	resp, err := l.http.Do(ctx, req)
	if err != nil {
		return Result{}, occerrors.WithKind(occerrors.KindSourceUnavailable,
			fmt.Errorf("loader: fetching %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return Result{Changed: false, Metadata: old}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, occerrors.WithKind(occerrors.KindSourceUnavailable,
			fmt.Errorf("loader: %s: unexpected status %s", url, resp.Status))
	}

	idx, err := l.build(resp.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Changed: true,
		Index:   idx,
		Metadata: SourceMetadata{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
	}, nil
}

// build runs CSV parsing and index construction — the CPU-bound part of a
// reload — in a [conc.Group], so a panic anywhere in that path (a corrupt
// reader implementation, a bug in a variant's Build) surfaces with a stack
// trace through the group rather than taking down the caller's goroutine
// bare.
func (l *Loader) build(r io.Reader) (index.Index, error) {
	var idx index.Index
	var buildErr error

	group := conc.New(1)
	_ = group.Go(context.Background(), func() error {
		entries, err := parseCSV(r)
		if err != nil {
			buildErr = err
			return nil
		}

		built, err := index.Build(l.variant, entries)
		if err != nil {
			var dup *index.DuplicateUUIDError
			if occerrors.As(err, &dup) {
				buildErr = occerrors.WithKind(occerrors.KindDuplicateUUID, err)
				return nil
			}
			buildErr = occerrors.WithKind(occerrors.KindBuildFailed, err)
			return nil
		}
		idx = built
		return nil
	})

	return idx, buildErr
}
