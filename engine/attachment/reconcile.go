package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/credportal/credportal/engine/infra/monitoring"
	"github.com/credportal/credportal/pkg/logger"
	"github.com/tidwall/gjson"
)

var ErrInvalidDocument = errors.New("invalid rich-text document")

// ImageURLs returns the sorted, de-duplicated file URLs of the image blocks in
// a block-structured rich-text document ({"blocks":[{"type":"image","data":
// {"file":{"url":...}}}]}). The document may also arrive encoded as a JSON
// string. Empty and null documents have no images.
func ImageURLs(doc []byte) ([]string, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(doc) {
		return nil, ErrInvalidDocument
	}
	root := gjson.ParseBytes(doc)
	if root.Type == gjson.String {
		if root.Str == "" {
			return nil, nil
		}
		if !gjson.Valid(root.Str) {
			return nil, ErrInvalidDocument
		}
		root = gjson.Parse(root.Str)
	}
	if root.Type == gjson.Null {
		return nil, nil
	}
	if !root.IsObject() {
		return nil, ErrInvalidDocument
	}
	blocks := root.Get("blocks")
	if blocks.Exists() && !blocks.IsArray() {
		return nil, ErrInvalidDocument
	}
	seen := make(map[string]struct{})
	blocks.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() != "image" {
			return true
		}
		if url := block.Get("data.file.url").String(); url != "" {
			seen[url] = struct{}{}
		}
		return true
	})
	urls := make([]string, 0, len(seen))
	for url := range seen {
		urls = append(urls, url)
	}
	slices.Sort(urls)
	return urls, nil
}

// Reconciler removes stored images that an edit dropped from a document.
type Reconciler struct {
	store   Store
	layout  Layout
	metrics *monitoring.Metrics
}

func NewReconciler(store Store, layout Layout, metrics *monitoring.Metrics) *Reconciler {
	return &Reconciler{store: store, layout: layout, metrics: metrics}
}

// Reconcile deletes every local image referenced by oldDoc but not by newDoc
// and returns the removed keys. References are compared by their store key,
// so two spellings of the same file count as one. External URLs are never
// touched. Removal failures are logged and skipped; only unparseable
// documents return an error, before anything is deleted.
func (r *Reconciler) Reconcile(ctx context.Context, oldDoc, newDoc []byte) ([]string, error) {
	before, err := ImageURLs(oldDoc)
	if err != nil {
		return nil, fmt.Errorf("previous document: %w", err)
	}
	after, err := ImageURLs(newDoc)
	if err != nil {
		return nil, fmt.Errorf("current document: %w", err)
	}
	kept := r.localKeys(after)
	log := logger.FromContext(ctx)
	var removed []string
	for _, key := range r.localKeys(before) {
		if _, ok := slices.BinarySearch(kept, key); ok {
			continue
		}
		if err := r.store.Remove(ctx, key); err != nil {
			log.Warn("Failed to remove orphaned attachment", "key", key, "error", err)
			r.metrics.RecordOrphanRemoval(monitoring.ResultFailure)
			continue
		}
		r.metrics.RecordOrphanRemoval(monitoring.ResultSuccess)
		removed = append(removed, key)
	}
	if len(removed) > 0 {
		log.Debug("Removed orphaned attachments", "count", len(removed))
	}
	return removed, nil
}

// localKeys maps urls to sorted, unique store keys, dropping external ones.
func (r *Reconciler) localKeys(urls []string) []string {
	keys := make([]string, 0, len(urls))
	for _, url := range urls {
		if key, ok := r.layout.KeyFromURL(url); ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}
