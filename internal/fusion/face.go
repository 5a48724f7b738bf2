// SPDX-License-Identifier: AGPL-3.0-or-later

package fusion

import (
	"math"

	"github.com/campustrace/resolve/internal/extractor"
	"github.com/campustrace/resolve/internal/models"
)

// faceReferences holds one resolved entity's face embedding evidence:
// every known embedding keyed by face_id, and the entity's reference
// vector (the mean of every embedding belonging to a face_id the
// resolver attached to this entity).
//
// The source's face similarity check was a placeholder that always
// returned 0.9 once an embedding was found. This is the resolved
// contract per Design Notes section 9: cosine similarity of a cluster's
// own face embedding against the entity's mean reference embedding,
// thresholded by face_similarity_threshold.
type faceReferences struct {
	embeddings map[string][]float64
	mean       []float64
}

// buildFaceReferences computes one entity's faceReferences from the raw
// face_embeddings table, restricted to the face_ids the resolver
// attached to that entity.
func buildFaceReferences(entity models.ResolvedEntity, rows []extractor.FaceEmbeddingRow) faceReferences {
	faceIDs := toSet(entity.IdentifierValues("face_ids"))

	refs := faceReferences{embeddings: make(map[string][]float64)}
	var vectors [][]float64
	for _, row := range rows {
		if !faceIDs[row.FaceID] {
			continue
		}
		refs.embeddings[row.FaceID] = row.Embedding
		vectors = append(vectors, row.Embedding)
	}
	if len(vectors) > 0 {
		refs.mean = meanVector(vectors)
	}
	return refs
}

func meanVector(vectors [][]float64) []float64 {
	dim := len(vectors[0])
	mean := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			mean[i] += v[i]
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vectors))
	}
	return mean
}

// faceClusterSimilarity returns the highest cosine similarity between
// any CCTV event's own embedding in the cluster and the entity's
// reference vector, and whether any comparable evidence existed at all.
func faceClusterSimilarity(events []models.ActivityEvent, refs faceReferences) (float64, bool) {
	if len(refs.mean) == 0 {
		return 0, false
	}

	found := false
	var best float64
	for _, e := range events {
		if e.EventType != "cctv_detection" {
			continue
		}
		faceID, _ := e.RawData["face_id"].(string)
		embedding, ok := refs.embeddings[faceID]
		if !ok {
			continue
		}
		sim := cosineSimilarity(embedding, refs.mean)
		if !found || sim > best {
			best = sim
			found = true
		}
	}
	return best, found
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
