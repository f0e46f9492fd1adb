package analytics

import "time"

type EventType string

const (
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventEmptyQuery EventType = "empty_query"
)

// QueryEvent describes one topic inference request. The document text is
// deliberately not carried, only its length; query bodies can be large and
// may contain material we do not want in the event stream.
type QueryEvent struct {
	Type       EventType `json:"type"`
	TextChars  int       `json:"text_chars"`
	TopicCount int       `json:"topic_count"`
	// TopTopic is the highest-weighted topic id, -1 when no topic cleared
	// the weight cutoff.
	TopTopic  int       `json:"top_topic"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
