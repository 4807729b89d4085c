package eval

import "math"

// MetricNames lists the reported metrics in column order.
var MetricNames = []string{"recall@3", "recall@5", "precision@3", "precision@5", "mrr", "ndcg@3", "ndcg@5"}

// Scores holds the metric set for one question or the mean over many.
type Scores struct {
	Recall3    float64 `json:"recall@3"`
	Recall5    float64 `json:"recall@5"`
	Precision3 float64 `json:"precision@3"`
	Precision5 float64 `json:"precision@5"`
	MRR        float64 `json:"mrr"`
	NDCG3      float64 `json:"ndcg@3"`
	NDCG5      float64 `json:"ndcg@5"`
}

// Values returns the scores in MetricNames order.
func (s Scores) Values() []float64 {
	return []float64{s.Recall3, s.Recall5, s.Precision3, s.Precision5, s.MRR, s.NDCG3, s.NDCG5}
}

// Score computes every metric for one ranked retrieval.
func Score(trueIDs, retrieved []string) Scores {
	return Scores{
		Recall3:    RecallAtK(trueIDs, retrieved, 3),
		Recall5:    RecallAtK(trueIDs, retrieved, 5),
		Precision3: PrecisionAtK(trueIDs, retrieved, 3),
		Precision5: PrecisionAtK(trueIDs, retrieved, 5),
		MRR:        MRR(trueIDs, retrieved),
		NDCG3:      NDCGAtK(trueIDs, retrieved, 3),
		NDCG5:      NDCGAtK(trueIDs, retrieved, 5),
	}
}

// Mean averages scores. An empty slice yields zeros.
func Mean(all []Scores) Scores {
	if len(all) == 0 {
		return Scores{}
	}
	var sum Scores
	for _, s := range all {
		sum.Recall3 += s.Recall3
		sum.Recall5 += s.Recall5
		sum.Precision3 += s.Precision3
		sum.Precision5 += s.Precision5
		sum.MRR += s.MRR
		sum.NDCG3 += s.NDCG3
		sum.NDCG5 += s.NDCG5
	}
	n := float64(len(all))
	return Scores{
		Recall3:    sum.Recall3 / n,
		Recall5:    sum.Recall5 / n,
		Precision3: sum.Precision3 / n,
		Precision5: sum.Precision5 / n,
		MRR:        sum.MRR / n,
		NDCG3:      sum.NDCG3 / n,
		NDCG5:      sum.NDCG5 / n,
	}
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func prefix(ids []string, k int) []string {
	if k < 0 {
		k = 0
	}
	if k > len(ids) {
		k = len(ids)
	}
	return ids[:k]
}

func hits(truth map[string]struct{}, retrieved []string) int {
	seen := make(map[string]struct{}, len(retrieved))
	n := 0
	for _, id := range retrieved {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := truth[id]; ok {
			n++
		}
	}
	return n
}

// RecallAtK is |T ∩ R[:k]| / |T|, or 0 when T is empty.
func RecallAtK(trueIDs, retrieved []string, k int) float64 {
	truth := idSet(trueIDs)
	if len(truth) == 0 {
		return 0
	}
	return float64(hits(truth, prefix(retrieved, k))) / float64(len(truth))
}

// PrecisionAtK is |T ∩ R[:k]| / k, or 0 when k <= 0.
func PrecisionAtK(trueIDs, retrieved []string, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(hits(idSet(trueIDs), prefix(retrieved, k))) / float64(k)
}

// MRR is the reciprocal rank of the first relevant id, or 0 when none is retrieved.
func MRR(trueIDs, retrieved []string) float64 {
	truth := idSet(trueIDs)
	for i, id := range retrieved {
		if _, ok := truth[id]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK is binary-relevance DCG over R[:k] divided by the ideal DCG over
// min(|T|, k) positions, or 0 when the ideal is 0. A relevant id repeated in
// R gains only at its first position.
func NDCGAtK(trueIDs, retrieved []string, k int) float64 {
	truth := idSet(trueIDs)
	seen := make(map[string]struct{}, len(truth))
	var dcg float64
	for i, id := range prefix(retrieved, k) {
		if _, ok := truth[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		dcg += 1 / math.Log2(float64(i+2))
	}
	var idcg float64
	for i := 0; i < min(len(truth), k); i++ {
		idcg += 1 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}
