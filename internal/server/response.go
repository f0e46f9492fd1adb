package server

import "encoding/json"

// WordWeight is one (word, weight) pair in a topic description. It
// marshals as a two-element JSON array, not an object.
type WordWeight struct {
	Word   string
	Weight float64
}

func (w WordWeight) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{w.Word, w.Weight})
}

func (w *WordWeight) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &w.Word); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &w.Weight)
}

// TopicEntry is one inferred topic for a document: its id, its weight in
// the document, and the top words describing it. It marshals as the
// three-element array [id, weight, [[word, weight], ...]].
type TopicEntry struct {
	ID     int
	Weight float64
	Words  []WordWeight
}

func (t TopicEntry) MarshalJSON() ([]byte, error) {
	words := t.Words
	if words == nil {
		words = []WordWeight{}
	}
	return json.Marshal([3]any{t.ID, t.Weight, words})
}

func (t *TopicEntry) UnmarshalJSON(data []byte) error {
	var triple [3]json.RawMessage
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	if err := json.Unmarshal(triple[0], &t.ID); err != nil {
		return err
	}
	if err := json.Unmarshal(triple[1], &t.Weight); err != nil {
		return err
	}
	return json.Unmarshal(triple[2], &t.Words)
}

// TopicResponse is the body of a successful POST /topic reply. Data is
// always present, an empty list when no topic clears the weight cutoff.
type TopicResponse struct {
	Data []TopicEntry `json:"data"`
}

// SimilarEntry is one match in a POST /similar reply.
type SimilarEntry struct {
	DocID int     `json:"doc_id"`
	Title string  `json:"title,omitempty"`
	Score float64 `json:"score"`
}

// SimilarResponse is the body of a successful POST /similar reply.
type SimilarResponse struct {
	Data []SimilarEntry `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}
