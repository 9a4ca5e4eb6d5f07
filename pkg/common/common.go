package common

// Recommendation is a single ranked candidate produced by a recommender for
// one click. Score is nil when the recommender emitted no usable prediction.
type Recommendation struct {
	ItemID string   `json:"item_id"`
	Score  *float64 `json:"score"`
}

// NewRecommendation returns a Recommendation carrying the given score.
func NewRecommendation(itemID string, score float64) Recommendation {
	return Recommendation{ItemID: itemID, Score: &score}
}

// Event represents one recommendation-triggering click together with the
// ranked predictions it produced.
//
// Recommendations are expected to be sorted by descending score. Consumers
// truncate by prefix and never re-sort.
type Event struct {
	UserID          string           `json:"user_id"`
	ItemID          string           `json:"item_id"`
	Timestamp       int64            `json:"timestamp"`
	Recommendations []Recommendation `json:"recommendations"`
}

// TopN returns the first n recommendations of the event. A negative n or an n
// beyond the list length returns the full list.
func (e Event) TopN(n int) []Recommendation {
	if n < 0 || n >= len(e.Recommendations) {
		return e.Recommendations
	}
	return e.Recommendations[:n]
}

// Graph is the serializable snapshot of a finished recommendation graph. It
// is what persistence and visualization layers consume.
//
// A graph contains:
//   - Vertices: clicked and recommended items (or users in bipartite graphs)
//   - Edges: directed source -> target relationships with their aggregates
//   - Stats: diagnostics derived from the final edge weights
type Graph struct {
	ID       string      `json:"id"`
	Name     string      `json:"name,omitempty"`
	Mode     string      `json:"mode"`
	Weighted bool        `json:"weighted"`
	TopN     int         `json:"top_n"`
	Stats    WeightStats `json:"stats"`
	Vertices []Vertex    `json:"vertices"`
	Edges    []Edge      `json:"edges"`
}

// Vertex is a graph node identified by its label. Namespace is "user" or
// "item" in bipartite graphs and empty otherwise.
type Vertex struct {
	Label     string `json:"label"`
	Namespace string `json:"namespace,omitempty"`
}

// Edge is a directed relationship between two vertex labels.
type Edge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	ScoreSum   float64 `json:"score_sum"`
	ScoreCount int     `json:"score_count"`
	Weight     float64 `json:"weight"`
	Parallel   bool    `json:"parallel,omitempty"`
}

// WeightStats summarizes the final weights of a normalized graph.
type WeightStats struct {
	Edges             int     `json:"edges"`
	AvgPredictedScore float64 `json:"avg_predicted_score"`
	Mean              float64 `json:"mean"`
	StdDev            float64 `json:"std_dev"`
}

// SourceLabels returns the set of labels that appear as the source of at
// least one edge, i.e. the clicked items or users.
func (g Graph) SourceLabels() map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range g.Edges {
		out[e.Source] = struct{}{}
	}
	return out
}
