package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wikitopics/topic-platform/internal/server"
	"github.com/wikitopics/topic-platform/internal/tokenizer"
	"github.com/wikitopics/topic-platform/internal/topicmodel"
	"github.com/wikitopics/topic-platform/internal/vocab"
)

// testArtifacts builds a small in-memory artifact set: vocabulary
// {"the": 0, "cat": 1, "runs": 2} and a two-topic model where topic 0
// favors "the"/"cat" and topic 1 favors "runs".
func testArtifacts(t *testing.T) *server.Artifacts {
	t.Helper()

	b := vocab.NewBuilder()
	b.AddDocument([]string{"the", "cat", "runs"})
	b.AddDocument([]string{"the", "cat"})
	b.AddDocument([]string{"the"})
	v, err := b.FilterExtremes(1, 1.0, 0)
	if err != nil {
		t.Fatalf("building vocabulary: %v", err)
	}

	m, err := topicmodel.New(2, 3, 0.1, []float64{
		0.5, 0.4, 0.1,
		0.1, 0.1, 0.8,
	})
	if err != nil {
		t.Fatalf("building model: %v", err)
	}

	return &server.Artifacts{
		Vocabulary:   v,
		Model:        m,
		Tokenizer:    tokenizer.New(tokenizer.Options{}),
		TopWords:     2,
		PruneEpsilon: 0.01,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := New(testArtifacts(t), nil, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /topic", h.Topic)
	mux.HandleFunc("POST /similar", h.Similar)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postTopic(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/topic", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /topic: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "topic" {
		t.Errorf("body = %q, want %q", body, "topic")
	}
}

func TestTopicResponseShape(t *testing.T) {
	srv := newTestServer(t)

	resp := postTopic(t, srv, `{"text": "the cat runs and the cat sleeps"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// The wire format is positional: data is a list of
	// [topic_id, weight, [[word, weight], ...]] triples.
	var body struct {
		Data [][3]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Data) == 0 {
		t.Fatal("expected at least one topic")
	}

	var prevWeight float64
	for i, entry := range body.Data {
		var id int
		var weight float64
		var words [][2]json.RawMessage
		if err := json.Unmarshal(entry[0], &id); err != nil {
			t.Fatalf("entry %d id: %v", i, err)
		}
		if err := json.Unmarshal(entry[1], &weight); err != nil {
			t.Fatalf("entry %d weight: %v", i, err)
		}
		if err := json.Unmarshal(entry[2], &words); err != nil {
			t.Fatalf("entry %d words: %v", i, err)
		}

		if id < 0 || id > 1 {
			t.Errorf("entry %d: topic id %d outside model range", i, id)
		}
		if weight <= 0.01 {
			t.Errorf("entry %d: weight %g at or below the pruning threshold", i, weight)
		}
		if i > 0 && weight > prevWeight {
			t.Errorf("entry %d: weight %g exceeds previous %g, not sorted descending", i, weight, prevWeight)
		}
		prevWeight = weight

		if len(words) == 0 || len(words) > 2 {
			t.Errorf("entry %d: %d words, want 1..2 (top words limit)", i, len(words))
		}
		for j, pair := range words {
			var word string
			var wordWeight float64
			if err := json.Unmarshal(pair[0], &word); err != nil {
				t.Fatalf("entry %d word %d: %v", i, j, err)
			}
			if err := json.Unmarshal(pair[1], &wordWeight); err != nil {
				t.Fatalf("entry %d word weight %d: %v", i, j, err)
			}
			if word == "" || wordWeight <= 0 {
				t.Errorf("entry %d word %d: (%q, %g)", i, j, word, wordWeight)
			}
		}
	}
}

func TestTopicEmptyText(t *testing.T) {
	srv := newTestServer(t)
	for _, body := range []string{`{"text": ""}`, `{}`, `{"other": "field"}`} {
		resp := postTopic(t, srv, body)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("body %s: status = %d, want 200", body, resp.StatusCode)
			continue
		}
		raw, _ := io.ReadAll(resp.Body)
		var parsed struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Errorf("body %s: decoding %s: %v", body, raw, err)
			continue
		}
		if len(parsed.Data) != 0 {
			t.Errorf("body %s: data = %s, want empty list", body, raw)
		}
		if !strings.Contains(string(raw), `"data":[]`) {
			t.Errorf("body %s: response %s should carry an explicit empty data list", body, raw)
		}
	}
}

func TestTopicMalformedJSON(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{``, `not json`, `{"text": `, `[1,2,3`} {
		resp := postTopic(t, srv, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestTopicUnknownWordsOnly(t *testing.T) {
	srv := newTestServer(t)

	resp := postTopic(t, srv, `{"text": "zebra quantum flux"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var parsed struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(parsed.Data) != 0 {
		t.Errorf("out-of-vocabulary text should infer no topics, got %d entries", len(parsed.Data))
	}
}

func TestTopicDeterministic(t *testing.T) {
	srv := newTestServer(t)
	body := `{"text": "the cat runs"}`

	first, _ := io.ReadAll(postTopic(t, srv, body).Body)
	for i := 0; i < 3; i++ {
		got, _ := io.ReadAll(postTopic(t, srv, body).Body)
		if string(got) != string(first) {
			t.Fatalf("response %d = %s, first = %s", i, got, first)
		}
	}
}

func TestSimilarWithoutIndex(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/similar", "application/json", strings.NewReader(`{"text": "the cat"}`))
	if err != nil {
		t.Fatalf("POST /similar: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no similarity index is configured", resp.StatusCode)
	}
}
