package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wikitopics/topic-platform/pkg/kafka"
)

// AggregatedStats is a point-in-time rollup of the query stream.
type AggregatedStats struct {
	TotalQueries     int64        `json:"total_queries"`
	EmptyQueries     int64        `json:"empty_queries"`
	CacheHits        int64        `json:"cache_hits"`
	CacheMisses      int64        `json:"cache_misses"`
	AvgLatencyMs     float64      `json:"avg_latency_ms"`
	P50LatencyMs     int64        `json:"p50_latency_ms"`
	P95LatencyMs     int64        `json:"p95_latency_ms"`
	P99LatencyMs     int64        `json:"p99_latency_ms"`
	AvgTopicCount    float64      `json:"avg_topic_count"`
	TopTopics        []TopicCount `json:"top_topics"`
	QueriesPerMinute float64      `json:"queries_per_minute"`
}

// TopicCount pairs a topic id with how many queries it topped.
type TopicCount struct {
	Topic int   `json:"topic"`
	Count int64 `json:"count"`
}

// Aggregator consumes the event stream and keeps running counters.
type Aggregator struct {
	mu           sync.RWMutex
	totalQueries atomic.Int64
	emptyQueries atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	latencies    []int64
	topicTotal   int64
	topicCounts  map[int]int64
	startTime    time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 10000),
		topicCounts: make(map[int]int64),
		startTime:   time.Now(),
		consumer:    consumer,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer attaches the Kafka consumer feeding this aggregator. It
// exists because the consumer's handler closes over the aggregator.
func (a *Aggregator) SetConsumer(consumer *kafka.Consumer) {
	a.consumer = consumer
}

func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent adapts an Aggregator into the consumer's message callback.
// Undecodable events are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.recordQueryEvent(event)
		return nil
	}
}

func (a *Aggregator) recordQueryEvent(event QueryEvent) {
	a.totalQueries.Add(1)
	if event.Type == EventEmptyQuery {
		a.emptyQueries.Add(1)
	} else if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.topicTotal += int64(event.TopicCount)
	if event.TopTopic >= 0 {
		a.topicCounts[event.TopTopic]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries: a.totalQueries.Load(),
		EmptyQueries: a.emptyQueries.Load(),
		CacheHits:    a.cacheHits.Load(),
		CacheMisses:  a.cacheMisses.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
		stats.AvgTopicCount = float64(a.topicTotal) / float64(len(sorted))
	}
	stats.TopTopics = topN(a.topicCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[int]int64, n int) []TopicCount {
	result := make([]TopicCount, 0, len(counts))
	for topic, count := range counts {
		result = append(result, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Topic < result[j].Topic
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
