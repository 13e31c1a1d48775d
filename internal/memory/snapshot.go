package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SnapshotVersion is the current snapshot document version.
const SnapshotVersion = 1

// Snapshot is the durable form of the collective memory.
type Snapshot struct {
	Version        int        `json:"version"`
	InstanceID     string     `json:"instance_id"`
	Records        []Record   `json:"records"`
	Log            []LogEntry `json:"log"`
	TotalLearnings int64      `json:"total_learnings"`
	UpdatesPushed  int64      `json:"updates_pushed"`
	Dirty          int64      `json:"dirty"`
	SavedAt        time.Time  `json:"saved_at"`
}

// Serialize encodes a snapshot as an indented JSON document.
func Serialize(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Deserialize decodes and validates a snapshot document.
func Deserialize(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Snapshot) validate() error {
	if s.Version > SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	for i := range s.Records {
		r := &s.Records[i]
		if !r.Kind.Valid() {
			return fmt.Errorf("record %d: unknown kind %q", i, r.Kind)
		}
		if r.Frequency < 0 {
			return fmt.Errorf("record %d: negative frequency", i)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return fmt.Errorf("record %d: confidence %v out of range", i, r.Confidence)
		}
	}
	return nil
}

// index is the in-memory form of a snapshot, keyed by signature.
type index struct {
	instanceID     string
	records        map[Signature]*Record
	log            []LogEntry
	totalLearnings int64
	updatesPushed  int64
	dirty          int64
	seq            int64
	savedAt        time.Time
}

func newIndex(instanceID string) *index {
	return &index{
		instanceID: instanceID,
		records:    make(map[Signature]*Record),
	}
}

// fromSnapshot builds an index from a decoded snapshot. Duplicate
// signatures in a hand-edited document are folded together.
func fromSnapshot(s *Snapshot) *index {
	idx := newIndex(s.InstanceID)
	idx.totalLearnings = s.TotalLearnings
	idx.updatesPushed = s.UpdatesPushed
	idx.dirty = s.Dirty
	idx.savedAt = s.SavedAt
	idx.log = append([]LogEntry(nil), s.Log...)

	for i := range s.Records {
		r := s.Records[i]
		if r.Seq > idx.seq {
			idx.seq = r.Seq
		}
		sig := r.Signature()
		if existing, ok := idx.records[sig]; ok {
			mergeShared(existing, &r)
			continue
		}
		idx.records[sig] = &r
	}
	return idx
}

// snapshot converts the index to its durable form, keeping only the newest
// maxLog log entries when maxLog > 0.
func (idx *index) snapshot(maxLog int) *Snapshot {
	s := &Snapshot{
		Version:        SnapshotVersion,
		InstanceID:     idx.instanceID,
		Records:        idx.sorted(nil),
		TotalLearnings: idx.totalLearnings,
		UpdatesPushed:  idx.updatesPushed,
		Dirty:          idx.dirty,
		SavedAt:        idx.savedAt,
	}
	log := idx.log
	if maxLog > 0 && len(log) > maxLog {
		log = log[len(log)-maxLog:]
	}
	s.Log = append([]LogEntry{}, log...)
	return s
}

// sorted returns copies of the records that satisfy keep, in insertion order.
func (idx *index) sorted(keep func(*Record) bool) []Record {
	out := make([]Record, 0, len(idx.records))
	for _, r := range idx.records {
		if keep == nil || keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (idx *index) clone() *index {
	c := *idx
	c.records = make(map[Signature]*Record, len(idx.records))
	for sig, r := range idx.records {
		cp := *r
		c.records[sig] = &cp
	}
	c.log = append([]LogEntry(nil), idx.log...)
	return &c
}

func (idx *index) insert(r Record, now time.Time) *Record {
	idx.seq++
	r.Seq = idx.seq
	r.UpdatedAt = now
	r.Confidence = clamp01(r.Confidence)
	if r.Frequency < 0 {
		r.Frequency = 0
	}
	idx.records[r.Signature()] = &r
	return &r
}

// merge folds other into idx following the merge law: shared signatures sum
// frequencies and take the frequency-weighted confidence, one-sided records
// are copied, logs are unioned without duplicates and counters take the
// maximum of both sides.
func (idx *index) merge(other *index, now time.Time) {
	for _, r := range other.sorted(nil) {
		sig := r.Signature()
		if existing, ok := idx.records[sig]; ok {
			mergeShared(existing, &r)
			existing.UpdatedAt = now
			continue
		}
		idx.insert(r, now)
	}

	idx.log = unionLogs(idx.log, other.log)
	idx.totalLearnings = max(idx.totalLearnings, other.totalLearnings)
	idx.updatesPushed = max(idx.updatesPushed, other.updatesPushed)
	idx.dirty = max(idx.dirty, other.dirty)
}

func mergeShared(dst, src *Record) {
	total := dst.Frequency + src.Frequency
	if total > 0 {
		dst.Confidence = (dst.Confidence*float64(dst.Frequency) + src.Confidence*float64(src.Frequency)) / float64(total)
	} else {
		dst.Confidence = (dst.Confidence + src.Confidence) / 2
	}
	dst.Confidence = clamp01(dst.Confidence)
	dst.Frequency = total
	if dst.Explanation == "" {
		dst.Explanation = src.Explanation
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Code == "" {
		dst.Code = src.Code
	}
}

func unionLogs(a, b []LogEntry) []LogEntry {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]LogEntry, 0, len(a)+len(b))
	for _, list := range [][]LogEntry{a, b} {
		for _, e := range list {
			key := logKey(e)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func logKey(e LogEntry) string {
	// encoding/json sorts map keys, so equal payloads encode identically.
	payload, _ := json.Marshal(e.Payload)
	return e.Timestamp.UTC().Format(time.RFC3339Nano) + sigSep + string(e.Kind) + sigSep + string(payload)
}
