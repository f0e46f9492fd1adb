package analytics

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"
)

func feed(t *testing.T, agg *Aggregator, events ...QueryEvent) {
	t.Helper()
	handler := HandleEvent(agg)
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshaling event: %v", err)
		}
		if err := handler(context.Background(), nil, payload); err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
	}
}

func TestAggregatorCounts(t *testing.T) {
	agg := NewAggregator(nil)
	now := time.Now()
	feed(t, agg,
		QueryEvent{Type: EventCacheMiss, TextChars: 40, TopicCount: 3, TopTopic: 7, LatencyMs: 12, Timestamp: now},
		QueryEvent{Type: EventCacheHit, TextChars: 40, TopicCount: 3, TopTopic: 7, LatencyMs: 1, CacheHit: true, Timestamp: now},
		QueryEvent{Type: EventCacheHit, TextChars: 12, TopicCount: 1, TopTopic: 2, LatencyMs: 1, CacheHit: true, Timestamp: now},
		QueryEvent{Type: EventEmptyQuery, TopicCount: 0, TopTopic: -1, LatencyMs: 0, Timestamp: now},
	)

	stats := agg.Stats()
	if stats.TotalQueries != 4 {
		t.Errorf("TotalQueries = %d, want 4", stats.TotalQueries)
	}
	if stats.EmptyQueries != 1 {
		t.Errorf("EmptyQueries = %d, want 1", stats.EmptyQueries)
	}
	if stats.CacheHits != 2 {
		t.Errorf("CacheHits = %d, want 2", stats.CacheHits)
	}
	if stats.CacheMisses != 1 {
		t.Errorf("CacheMisses = %d, want 1", stats.CacheMisses)
	}
	if want := 7.0 / 4.0; math.Abs(stats.AvgTopicCount-want) > 1e-9 {
		t.Errorf("AvgTopicCount = %g, want %g", stats.AvgTopicCount, want)
	}
	if stats.QueriesPerMinute <= 0 {
		t.Errorf("QueriesPerMinute = %g, want > 0", stats.QueriesPerMinute)
	}
}

func TestAggregatorTopTopics(t *testing.T) {
	agg := NewAggregator(nil)
	var events []QueryEvent
	for i := 0; i < 3; i++ {
		events = append(events, QueryEvent{Type: EventCacheMiss, TopicCount: 1, TopTopic: 5, LatencyMs: 10})
	}
	for i := 0; i < 3; i++ {
		events = append(events, QueryEvent{Type: EventCacheMiss, TopicCount: 1, TopTopic: 2, LatencyMs: 10})
	}
	events = append(events,
		QueryEvent{Type: EventCacheMiss, TopicCount: 1, TopTopic: 9, LatencyMs: 10},
		// No topic cleared the cutoff; must not appear in the ranking.
		QueryEvent{Type: EventCacheMiss, TopicCount: 0, TopTopic: -1, LatencyMs: 10},
	)
	feed(t, agg, events...)

	stats := agg.Stats()
	want := []TopicCount{{Topic: 2, Count: 3}, {Topic: 5, Count: 3}, {Topic: 9, Count: 1}}
	if len(stats.TopTopics) != len(want) {
		t.Fatalf("TopTopics = %v, want %v", stats.TopTopics, want)
	}
	for i := range want {
		if stats.TopTopics[i] != want[i] {
			t.Errorf("TopTopics[%d] = %v, want %v", i, stats.TopTopics[i], want[i])
		}
	}
}

func TestAggregatorLatencyPercentiles(t *testing.T) {
	agg := NewAggregator(nil)
	var events []QueryEvent
	// Latencies 1..100 ms in shuffled-enough order.
	for i := 100; i >= 1; i-- {
		events = append(events, QueryEvent{Type: EventCacheMiss, TopicCount: 1, TopTopic: 0, LatencyMs: int64(i)})
	}
	feed(t, agg, events...)

	stats := agg.Stats()
	if stats.P50LatencyMs != 51 {
		t.Errorf("P50LatencyMs = %d, want 51", stats.P50LatencyMs)
	}
	if stats.P95LatencyMs != 96 {
		t.Errorf("P95LatencyMs = %d, want 96", stats.P95LatencyMs)
	}
	if stats.P99LatencyMs != 100 {
		t.Errorf("P99LatencyMs = %d, want 100", stats.P99LatencyMs)
	}
	if math.Abs(stats.AvgLatencyMs-50.5) > 1e-9 {
		t.Errorf("AvgLatencyMs = %g, want 50.5", stats.AvgLatencyMs)
	}
}

func TestAggregatorSkipsUndecodableEvents(t *testing.T) {
	agg := NewAggregator(nil)
	handler := HandleEvent(agg)
	if err := handler(context.Background(), nil, []byte("not json at all")); err != nil {
		t.Fatalf("handler must swallow decode errors, got %v", err)
	}
	if got := agg.Stats().TotalQueries; got != 0 {
		t.Errorf("TotalQueries = %d after undecodable event, want 0", got)
	}
}

func TestAggregatorEmptyStats(t *testing.T) {
	stats := NewAggregator(nil).Stats()
	if stats.TotalQueries != 0 || stats.AvgLatencyMs != 0 || stats.P99LatencyMs != 0 {
		t.Errorf("fresh aggregator reported non-zero stats: %+v", stats)
	}
	if len(stats.TopTopics) != 0 {
		t.Errorf("fresh aggregator TopTopics = %v, want empty", stats.TopTopics)
	}
}
