package breakout

import (
	"math"
	"sort"
	"strings"
)

// sparseVector holds non-zero weights ordered by term index.
type sparseVector struct {
	indices []int
	values  []float64
}

// isZero reports whether the vector has no weight.
func (v sparseVector) isZero() bool {
	return len(v.indices) == 0
}

// dot computes the inner product of two index-ordered sparse vectors.
func dot(a, b sparseVector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a.indices) && j < len(b.indices) {
		switch {
		case a.indices[i] == b.indices[j]:
			sum += a.values[i] * b.values[j]
			i++
			j++
		case a.indices[i] < b.indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// tfidfVectorizer weights word-bounded character n-grams by smoothed TF-IDF
// and L2-normalises each row.
type tfidfVectorizer struct {
	minN        int
	maxN        int
	maxFeatures int
}

// fitTransform learns the vocabulary from texts and returns one vector per text.
func (v tfidfVectorizer) fitTransform(texts []string) []sparseVector {
	docs := make([]map[string]int, len(texts))
	corpusTF := make(map[string]int)
	docFreq := make(map[string]int)

	for i, text := range texts {
		counts := make(map[string]int)
		for _, g := range charWBNgrams(text, v.minN, v.maxN) {
			counts[g]++
		}
		for g, c := range counts {
			corpusTF[g] += c
			docFreq[g]++
		}
		docs[i] = counts
	}

	vocab := v.vocabulary(corpusTF)
	n := float64(len(texts))

	vectors := make([]sparseVector, len(texts))
	for i, counts := range docs {
		var vec sparseVector
		for g, c := range counts {
			idx, ok := vocab[g]
			if !ok {
				continue
			}
			idf := math.Log((1+n)/(1+float64(docFreq[g]))) + 1
			vec.indices = append(vec.indices, idx)
			vec.values = append(vec.values, float64(c)*idf)
		}
		sortVector(&vec)
		normalize(&vec)
		vectors[i] = vec
	}
	return vectors
}

// vocabulary keeps the maxFeatures most frequent terms, ties by term, and
// indexes them in lexical order.
func (v tfidfVectorizer) vocabulary(corpusTF map[string]int) map[string]int {
	terms := make([]string, 0, len(corpusTF))
	for g := range corpusTF {
		terms = append(terms, g)
	}
	sort.Slice(terms, func(i, j int) bool {
		if corpusTF[terms[i]] != corpusTF[terms[j]] {
			return corpusTF[terms[i]] > corpusTF[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if v.maxFeatures > 0 && len(terms) > v.maxFeatures {
		terms = terms[:v.maxFeatures]
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	for i, g := range terms {
		vocab[g] = i
	}
	return vocab
}

func sortVector(vec *sparseVector) {
	idx := make([]int, len(vec.indices))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return vec.indices[idx[a]] < vec.indices[idx[b]]
	})

	indices := make([]int, len(idx))
	values := make([]float64, len(idx))
	for i, k := range idx {
		indices[i] = vec.indices[k]
		values[i] = vec.values[k]
	}
	vec.indices, vec.values = indices, values
}

func normalize(vec *sparseVector) {
	sumSq := 0.0
	for _, x := range vec.values {
		sumSq += x * x
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range vec.values {
		vec.values[i] /= norm
	}
}

// charWBNgrams extracts character n-grams from each whitespace-separated
// word padded with one space on both sides. A padded word shorter than n
// contributes itself once.
func charWBNgrams(text string, minN, maxN int) []string {
	var grams []string
	for _, word := range strings.Fields(text) {
		padded := []rune(" " + word + " ")
		for n := minN; n <= maxN; n++ {
			if len(padded) <= n {
				grams = append(grams, string(padded))
				break
			}
			for off := 0; off+n <= len(padded); off++ {
				grams = append(grams, string(padded[off:off+n]))
			}
		}
	}
	return grams
}
