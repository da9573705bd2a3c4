package exthash

import (
	"fmt"
	"strings"
)

// BucketStatus describes one unique bucket in a status report.
type BucketStatus struct {
	FileName   string
	LocalDepth int
	// Slots lists the directory slots addressing this bucket, in slot order.
	// Its length is the bucket's fan-in, 2^(globalDepth-localDepth).
	Slots []int
	Items int
}

// Status is a point-in-time report of a table's shape.
type Status struct {
	GlobalDepth   int
	DirectorySize int
	UniqueBuckets int
	Items         int
	// Buckets lists unique buckets in order of their first directory slot.
	Buckets []BucketStatus
}

// Status reports the table's current shape: global depth, directory size,
// and for each unique bucket its local depth, the slots addressing it, and
// its item count.
func (t *Table[K, V]) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[bucketID]int, len(t.buckets)) // id -> index into report
	report := Status{
		GlobalDepth:   t.globalDepth,
		DirectorySize: len(t.dir),
	}

	for slot, id := range t.dir {
		i, ok := seen[id]
		if !ok {
			b := t.buckets[id]
			i = len(report.Buckets)
			seen[id] = i
			report.Buckets = append(report.Buckets, BucketStatus{
				FileName:   b.FileName(),
				LocalDepth: b.LocalDepth(),
				Items:      b.Len(),
			})
			report.Items += b.Len()
		}
		report.Buckets[i].Slots = append(report.Buckets[i].Slots, slot)
	}
	report.UniqueBuckets = len(report.Buckets)

	return report
}

// String formats the report, one line per unique bucket.
func (s Status) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "exthash{globalDepth=%d, directorySize=%d, uniqueBuckets=%d, items=%d}",
		s.GlobalDepth, s.DirectorySize, s.UniqueBuckets, s.Items)
	for _, b := range s.Buckets {
		fmt.Fprintf(&sb, "\n  bucket file=%s localDepth=%d slots=%v items=%d",
			b.FileName, b.LocalDepth, b.Slots, b.Items)
	}
	return sb.String()
}
