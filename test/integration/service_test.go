package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/wikitopics/topic-platform/internal/pipeline"
	"github.com/wikitopics/topic-platform/internal/server"
	"github.com/wikitopics/topic-platform/internal/server/handler"
	"github.com/wikitopics/topic-platform/pkg/config"
)

// buildArtifacts runs the full offline pipeline over a small dump and
// returns a config pointing at the produced files.
func buildArtifacts(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	dump := filepath.Join(dir, "dump.txt")
	data := "" +
		"Cats\tthe cat sleeps and the cat purrs near the window\n" +
		"Dogs\tthe dog barks and the dog runs in the garden\n" +
		"Kittens\tthe small cat purrs and sleeps beside the window\n" +
		"Puppies\tthe young dog runs and barks in the garden\n" +
		"Felines\tcat and cat again purrs sleeps window\n" +
		"Canines\tdog and dog again barks runs garden\n"
	if err := os.WriteFile(dump, []byte(data), 0o644); err != nil {
		t.Fatalf("writing dump: %v", err)
	}

	src, err := pipeline.OpenFile(dump)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer src.Close()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Builder.NoBelow = 1
	cfg.Builder.NoAbove = 1.0
	cfg.Builder.KeepN = 0
	cfg.Builder.NumTopics = 2
	cfg.Builder.Passes = 3
	cfg.Builder.BuildSimilarity = true

	paths := pipeline.Paths{Prefix: filepath.Join(dir, "wiki")}
	if err := pipeline.New(cfg.Builder, nil).Run(context.Background(), src, paths); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cfg.Model.VocabularyFile = paths.Vocabulary()
	cfg.Model.CorpusFile = paths.BowCorpus()
	cfg.Model.TopicModelFile = paths.TopicModel()
	cfg.Model.SimilarityFile = paths.SimCorpus()
	cfg.Model.DocmapFile = paths.Docmap()
	return cfg
}

func newService(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	art, err := server.LoadArtifacts(cfg)
	if err != nil {
		t.Fatalf("LoadArtifacts: %v", err)
	}
	t.Cleanup(func() { art.Close() })

	h := handler.New(art, nil, nil, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /topic", h.Topic)
	mux.HandleFunc("POST /similar", h.Similar)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestServiceEndToEnd(t *testing.T) {
	srv := newService(t, buildArtifacts(t))

	// Liveness page.
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "topic" {
		t.Fatalf("GET / = %d %q, want 200 topic", resp.StatusCode, body)
	}

	// A document about cats must yield at least one topic, sorted by weight,
	// with word lists attached.
	var result struct {
		Data [][3]json.RawMessage `json:"data"`
	}
	postJSON(t, srv, "/topic", `{"text": "the cat purrs and sleeps near the window"}`, http.StatusOK, &result)
	if len(result.Data) == 0 {
		t.Fatal("expected at least one inferred topic")
	}
	var prev float64 = 2
	for i, entry := range result.Data {
		var weight float64
		if err := json.Unmarshal(entry[1], &weight); err != nil {
			t.Fatalf("entry %d weight: %v", i, err)
		}
		if weight > prev {
			t.Errorf("topics not sorted by descending weight at %d", i)
		}
		prev = weight
		var words [][2]json.RawMessage
		if err := json.Unmarshal(entry[2], &words); err != nil {
			t.Fatalf("entry %d words: %v", i, err)
		}
		if len(words) == 0 {
			t.Errorf("entry %d has no characteristic words", i)
		}
	}

	// Valid JSON without a text field yields an empty topic list.
	postJSON(t, srv, "/topic", `{"other": 1}`, http.StatusOK, &result)
	if len(result.Data) != 0 {
		t.Errorf("expected empty data without text, got %v", result.Data)
	}

	// Malformed JSON is a client error.
	resp, err = http.Post(srv.URL+"/topic", "application/json", bytes.NewBufferString("{broken"))
	if err != nil {
		t.Fatalf("POST /topic: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d, want 400", resp.StatusCode)
	}
}

func TestServiceSimilar(t *testing.T) {
	srv := newService(t, buildArtifacts(t))

	var result struct {
		Data []struct {
			DocID int     `json:"doc_id"`
			Title string  `json:"title"`
			Score float64 `json:"score"`
		} `json:"data"`
	}
	postJSON(t, srv, "/similar", `{"text": "cat purrs sleeps window", "limit": 3}`, http.StatusOK, &result)
	if len(result.Data) == 0 {
		t.Fatal("expected similar documents")
	}
	if len(result.Data) > 3 {
		t.Errorf("got %d results, want at most 3", len(result.Data))
	}
	for i := 1; i < len(result.Data); i++ {
		if result.Data[i].Score > result.Data[i-1].Score {
			t.Errorf("results not sorted by descending score at %d", i)
		}
	}
	for _, d := range result.Data {
		if d.Title == "" {
			t.Errorf("document %d has no title", d.DocID)
		}
	}
}

func TestServiceRejectsMismatchedArtifacts(t *testing.T) {
	cfg := buildArtifacts(t)
	other := buildArtifacts(t)
	// Similarity corpus dimensionality comes from a different model; the
	// service must refuse the pair only when dimensions disagree, so swap in
	// a bag-of-words corpus where the topic-space corpus belongs.
	cfg.Model.SimilarityFile = other.Model.CorpusFile
	if _, err := server.LoadArtifacts(cfg); err == nil {
		t.Fatal("expected dimensionality mismatch error")
	}
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST %s = %d (%s), want %d", path, resp.StatusCode, raw, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}
