package latency

import (
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/arloliu/busbench/types"
)

// Row is one received event with its derived latencies.
type Row struct {
	// Index is the 1-based position of the row in the report.
	Index int
	types.ReceivedEvent
	ProducedEnqueued time.Duration
	EnqueuedReceived time.Duration
	ProducedReceived time.Duration
}

// Stats summarizes one latency metric across all rows.
type Stats struct {
	Mean time.Duration
	Min  time.Duration
	Max  time.Duration
	P50  time.Duration
	P90  time.Duration
	P99  time.Duration
}

// Report is the aggregated result of a recording.
type Report struct {
	// Rows are ordered by partition id, then arrival order within the partition.
	Rows []Row

	// ProducedEnqueued summarizes enqueuedAt - producedAt.
	ProducedEnqueued Stats
	// EnqueuedReceived summarizes receivedAt - enqueuedAt.
	EnqueuedReceived Stats
	// ProducedReceived summarizes receivedAt - producedAt.
	ProducedReceived Stats

	// Partitions is the number of distinct partitions events arrived from.
	Partitions int
	// PartitionSkew is set when events arrived from more than one partition
	// although they were sent with a single partition key.
	PartitionSkew bool
}

// Count returns the number of rows.
func (r *Report) Count() int {
	return len(r.Rows)
}

func buildReport(byPartition map[string][]types.ReceivedEvent) *Report {
	ids := make([]string, 0, len(byPartition))
	total := 0
	for id, events := range byPartition {
		if len(events) == 0 {
			continue
		}
		ids = append(ids, id)
		total += len(events)
	}
	sortPartitionIDs(ids)

	report := &Report{
		Rows:          make([]Row, 0, total),
		Partitions:    len(ids),
		PartitionSkew: len(ids) > 1,
	}

	pe := make([]time.Duration, 0, total)
	er := make([]time.Duration, 0, total)
	pr := make([]time.Duration, 0, total)
	for _, id := range ids {
		for _, e := range byPartition[id] {
			row := Row{
				Index:            len(report.Rows) + 1,
				ReceivedEvent:    e,
				ProducedEnqueued: e.ProducedToEnqueued(),
				EnqueuedReceived: e.EnqueuedToReceived(),
				ProducedReceived: e.ProducedToReceived(),
			}
			report.Rows = append(report.Rows, row)
			pe = append(pe, row.ProducedEnqueued)
			er = append(er, row.EnqueuedReceived)
			pr = append(pr, row.ProducedReceived)
		}
	}

	report.ProducedEnqueued = summarize(pe)
	report.EnqueuedReceived = summarize(er)
	report.ProducedReceived = summarize(pr)

	return report
}

// sortPartitionIDs orders numeric ids numerically and everything else lexically after them.
func sortPartitionIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, aErr := strconv.ParseInt(ids[i], 10, 64)
		b, bErr := strconv.ParseInt(ids[j], 10, 64)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}

func summarize(values []time.Duration) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	var sum time.Duration
	for _, v := range values {
		sum += v
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return Stats{
		Mean: sum / time.Duration(len(values)),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P50:  percentile(sorted, 50),
		P90:  percentile(sorted, 90),
		P99:  percentile(sorted, 99),
	}
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}

	return sorted[rank-1]
}
