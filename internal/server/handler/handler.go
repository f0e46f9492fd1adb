// Package handler exposes the topic inference service over HTTP.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/wikitopics/topic-platform/internal/analytics"
	"github.com/wikitopics/topic-platform/internal/bow"
	"github.com/wikitopics/topic-platform/internal/server"
	"github.com/wikitopics/topic-platform/internal/server/cache"
	"github.com/wikitopics/topic-platform/pkg/logger"
	"github.com/wikitopics/topic-platform/pkg/metrics"
	"github.com/wikitopics/topic-platform/pkg/middleware"
)

// maxBodyBytes caps request bodies. A single article is far below this.
const maxBodyBytes = 4 << 20

type topicRequest struct {
	Text string `json:"text"`
}

type similarRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

type Handler struct {
	artifacts *server.Artifacts
	cache     *cache.ResponseCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds a handler over a loaded artifact set. cache and collector may
// be nil; the handler then computes every request and tracks nothing.
func New(art *server.Artifacts, responseCache *cache.ResponseCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		artifacts: art,
		cache:     responseCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "topic-handler"),
	}
}

// Index answers the liveness probe with the bare service name.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "topic")
}

// Topic infers the topic distribution of the posted text. A body that is
// not valid JSON is a 400; a valid JSON object without a "text" field is
// treated as an empty document and yields an empty data list.
func (h *Handler) Topic(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req topicRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.observeInference("rejected", false, start)
		h.writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	var resp *server.TopicResponse
	var err error
	cacheHit := false
	if h.cache != nil && req.Text != "" {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, req.Text, func() (*server.TopicResponse, error) {
			return h.infer(req.Text)
		})
	} else {
		resp, err = h.infer(req.Text)
	}
	if err != nil {
		log.Error("inference failed", "error", err)
		h.observeInference("error", cacheHit, start)
		h.writeError(w, http.StatusInternalServerError, "inference failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	h.observeInference("ok", cacheHit, start)
	if h.metrics != nil {
		h.metrics.InferenceTopicCount.Observe(float64(len(resp.Data)))
	}
	log.Info("topic inference completed",
		"text_chars", len(req.Text),
		"topics", len(resp.Data),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		if req.Text == "" {
			eventType = analytics.EventEmptyQuery
		}
		topTopic := -1
		if len(resp.Data) > 0 {
			topTopic = resp.Data[0].ID
		}
		h.collector.Track(analytics.QueryEvent{
			Type:       eventType,
			TextChars:  len(req.Text),
			TopicCount: len(resp.Data),
			TopTopic:   topTopic,
			LatencyMs:  latencyMs,
			CacheHit:   cacheHit,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// infer runs the full chain: tokenize, encode against the frozen
// vocabulary, fold into topic space, sort by weight, attach top words.
func (h *Handler) infer(text string) (*server.TopicResponse, error) {
	art := h.artifacts
	tokens := art.Tokenizer.Tokenize(text)
	vec := bow.Encode(tokens, art.Vocabulary)
	topics := art.Model.Infer(vec, art.PruneEpsilon)

	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Weight != topics[j].Weight {
			return topics[i].Weight > topics[j].Weight
		}
		return topics[i].Topic < topics[j].Topic
	})

	entries := make([]server.TopicEntry, 0, len(topics))
	for _, tw := range topics {
		terms, err := art.Model.TopTerms(tw.Topic, art.TopWords)
		if err != nil {
			return nil, err
		}
		words := make([]server.WordWeight, 0, len(terms))
		for _, t := range terms {
			word, ok := art.Vocabulary.Word(int(t.ID))
			if !ok {
				continue
			}
			words = append(words, server.WordWeight{Word: word, Weight: t.Weight})
		}
		entries = append(entries, server.TopicEntry{
			ID:     tw.Topic,
			Weight: tw.Weight,
			Words:  words,
		})
	}
	return &server.TopicResponse{Data: entries}, nil
}

// Similar returns the documents closest to the posted text in topic space.
// Only served when the artifact set includes a similarity corpus.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.artifacts.Similarity == nil {
		h.writeError(w, http.StatusNotFound, "similarity index is not configured")
		return
	}

	var req similarRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	art := h.artifacts
	tokens := art.Tokenizer.Tokenize(req.Text)
	vec := bow.Encode(tokens, art.Vocabulary)
	topics := art.Model.Infer(vec, art.PruneEpsilon)

	matches, err := art.Similarity.Query(ctx, topics, req.Limit)
	if err != nil {
		log.Error("similarity query failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "similarity query failed")
		return
	}
	entries := make([]server.SimilarEntry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, server.SimilarEntry{
			DocID: m.DocID,
			Title: m.Title,
			Score: m.Score,
		})
	}
	h.writeJSON(w, http.StatusOK, &server.SimilarResponse{Data: entries})
}

// CacheStats reports hit/miss counters for the response cache.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate drops all cached responses.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observeInference(outcome string, cacheHit bool, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.InferencesTotal.WithLabelValues(outcome).Inc()
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.InferenceLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if h.cache != nil {
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
