package crawl

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/iiadata/treaty-crawler/internal/metrics"
)

const (
	checkpointFile = "checkpoint.json"
	partialFile    = "treaties_partial.csv"
)

var partialHeader = []string{
	"anchor_id", "anchor_name", "source_url", "title", "category", "status",
	"parties_raw", "signature_raw", "entry_into_force_raw", "termination_raw",
}

// checkpointMarker is the durable progress record. It is the commit point:
// items in the accumulator file count only for anchors listed here.
type checkpointMarker struct {
	RunID              string `json:"run_id"`
	CompletedAnchorIDs []int  `json:"completed_anchor_ids"`
	ItemCount          int    `json:"item_count"`
}

// CheckpointStore persists crawl progress as two files under a data
// directory: a JSON marker and a CSV accumulator of raw items. Both are
// written via temp-file-plus-rename; the marker is renamed last, so a load
// after any prior save reproduces a consistent state.
type CheckpointStore struct {
	dir    string
	logger *zap.Logger
}

// NewCheckpointStore builds a store rooted at dir.
func NewCheckpointStore(dir string, logger *zap.Logger) *CheckpointStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckpointStore{dir: dir, logger: logger}
}

// Exists reports whether a checkpoint marker is present, which signals that
// a previous run did not complete.
func (s *CheckpointStore) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, checkpointFile))
	return err == nil
}

// Save writes a durable snapshot of the completed ids and the accumulated
// raw items. Failure to persist progress is not recoverable by the crawl.
func (s *CheckpointStore) Save(runID string, completedIDs []int, items []RawItem) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint dir %s: %w", s.dir, err)
	}
	if err := s.writeItems(items); err != nil {
		return err
	}
	marker := checkpointMarker{
		RunID:              runID,
		CompletedAnchorIDs: completedIDs,
		ItemCount:          len(items),
	}
	payload, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := atomicWrite(filepath.Join(s.dir, checkpointFile), payload); err != nil {
		return err
	}
	metrics.CheckpointSaved()
	s.logger.Info("Checkpoint saved",
		zap.Int("countries_done", len(completedIDs)),
		zap.Int("raw_items", len(items)),
	)
	return nil
}

// Load reads the checkpoint, returning the empty state when none exists.
// Accumulated items are filtered to the anchors the marker lists as
// completed, so a write torn between the two files degrades to "anchor not
// done" rather than to an inconsistent resume.
func (s *CheckpointStore) Load() (map[int]struct{}, []RawItem, error) {
	payload, err := os.ReadFile(filepath.Join(s.dir, checkpointFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[int]struct{}), nil, nil
		}
		return nil, nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var marker checkpointMarker
	if err := json.Unmarshal(payload, &marker); err != nil {
		return nil, nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	completed := make(map[int]struct{}, len(marker.CompletedAnchorIDs))
	for _, id := range marker.CompletedAnchorIDs {
		completed[id] = struct{}{}
	}

	items, err := s.readItems()
	if err != nil {
		return nil, nil, err
	}
	kept := items[:0]
	for _, item := range items {
		if _, ok := completed[item.AnchorID]; ok {
			kept = append(kept, item)
		}
	}
	if len(kept) != marker.ItemCount {
		s.logger.Warn("Checkpoint item count mismatch, keeping committed anchors only",
			zap.Int("marker_count", marker.ItemCount),
			zap.Int("loaded_count", len(kept)),
		)
	}
	s.logger.Info("Resumed from checkpoint",
		zap.Int("countries_done", len(completed)),
		zap.Int("raw_items", len(kept)),
	)
	return completed, kept, nil
}

// Clear removes both checkpoint files. Called once the full pipeline,
// export included, has succeeded.
func (s *CheckpointStore) Clear() error {
	for _, name := range []string{checkpointFile, partialFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (s *CheckpointStore) writeItems(items []RawItem) error {
	tmp, err := os.CreateTemp(s.dir, partialFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp accumulator: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := csv.NewWriter(tmp)
	if err := w.Write(partialHeader); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write accumulator header: %w", err)
	}
	for _, item := range items {
		record := []string{
			strconv.Itoa(item.AnchorID), item.AnchorName,
			item.SourceURL, item.Title, item.Category, item.Status,
			item.PartiesRaw, item.SignatureRaw, item.EntryIntoForceRaw, item.TerminationRaw,
		}
		if err := w.Write(record); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write accumulator row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush accumulator: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close accumulator: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, partialFile)); err != nil {
		return fmt.Errorf("replace accumulator: %w", err)
	}
	return nil
}

func (s *CheckpointStore) readItems() ([]RawItem, error) {
	f, err := os.Open(filepath.Join(s.dir, partialFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open accumulator: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read accumulator: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	items := make([]RawItem, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < len(partialHeader) {
			continue
		}
		anchorID, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		items = append(items, RawItem{
			AnchorID:          anchorID,
			AnchorName:        rec[1],
			SourceURL:         rec[2],
			Title:             rec[3],
			Category:          rec[4],
			Status:            rec[5],
			PartiesRaw:        rec[6],
			SignatureRaw:      rec[7],
			EntryIntoForceRaw: rec[8],
			TerminationRaw:    rec[9],
		})
	}
	return items, nil
}

func atomicWrite(path string, payload []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
