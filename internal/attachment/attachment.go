// Package attachment downloads bug attachments next to the export so the
// importer can fetch them from the attachments host.
package attachment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/source"
)

// Fetcher copies attachment payloads into a local directory.
type Fetcher struct {
	src     source.Source
	dir     string
	baseURL string
	logger  *slog.Logger
}

// NewFetcher returns a fetcher storing files in dir. baseURL is the address
// the directory is served from.
func NewFetcher(src source.Source, dir, baseURL string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		src:     src,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// LocalName returns the file name an attachment of bugKey is stored under.
func LocalName(bugKey, fileName string) string {
	r := strings.NewReplacer(":", "_", " ", "_", "/", "_")
	return r.Replace(bugKey + "_" + fileName)
}

// Fetch downloads the attachments of bug that are not on disk yet and returns
// their metadata. Files already present were recorded by an earlier run and
// are left out of the result. A failing attachment is logged and dropped.
func (f *Fetcher) Fetch(ctx context.Context, bug source.Bug) ([]model.Attachment, error) {
	items, err := f.src.Attachments(ctx, bug.ID)
	if err != nil {
		return nil, fmt.Errorf("list attachments of bug %d: %w", bug.ID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments directory: %w", err)
	}

	var out []model.Attachment
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if item.Err != nil {
			f.logger.Error("attachment export failed", "bug", bug.ID, "file", item.Title, "err", item.Err)
			continue
		}

		name := LocalName(bug.Key(), item.FileName)
		path := filepath.Join(f.dir, name)
		if _, err := os.Stat(path); err == nil {
			f.logger.Debug("attachment already exists, skipping", "bug", bug.ID, "file", name)
			continue
		}

		size, err := f.download(ctx, item, path)
		if err != nil {
			f.logger.Error("attachment export failed", "bug", bug.ID, "file", item.FileName, "err", err)
			continue
		}
		f.logger.Debug("attachment exported", "bug", bug.ID, "file", name, "size", humanize.Bytes(uint64(size)))

		out = append(out, model.Attachment{
			Name:     item.FileName,
			Attacher: item.Owner,
			Created:  model.FormatTime(item.Created),
			URI:      f.baseURL + "/" + name,
		})
	}
	return out, nil
}

func (f *Fetcher) download(ctx context.Context, item source.Attachment, path string) (int64, error) {
	rc, err := f.src.OpenAttachment(ctx, item)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	cr := &countingReader{r: rc}
	if err := atomic.WriteFile(path, cr); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
