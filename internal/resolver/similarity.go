// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import (
	"sort"
	"strings"
)

// ratio computes a normalized string similarity in [0,1] from the
// length of the two strings' longest common subsequence, the same
// 2*M/T shape the Python prototype gets from fuzzywuzzy's
// difflib-backed ratio() — no ecosystem Go package in the retrieval
// pack implements Ratcliff/Obershelp or an equivalent fuzzy-ratio, so
// this is a from-scratch reimplementation of the scoring contract
// rather than a port of any library's internals.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	m := lcsLength(a, b)
	total := len(a) + len(b)
	return 2.0 * float64(m) / float64(total)
}

// lcsLength returns the length of the longest common subsequence of a
// and b using the standard O(len(a)*len(b)) dynamic program.
func lcsLength(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[m]
}

// tokenSortRatio sorts each string's whitespace-separated tokens
// alphabetically before comparing, so word-order differences ("Mehta
// Neha" vs "Neha Mehta") don't depress the score.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// tokenSetRatio compares the shared-token core of both strings against
// each string's full token set, taking the best of three pairings —
// the fuzzywuzzy token_set_ratio algorithm, which tolerates one string
// being a superset of the other's words ("Neha Mehta" vs "Neha Mehta
// Kumar").
func tokenSetRatio(a, b string) float64 {
	tokensA := uniqueSortedTokens(a)
	tokensB := uniqueSortedTokens(b)

	setA := toSet(tokensA)
	setB := toSet(tokensB)

	var intersection, onlyA, onlyB []string
	for _, t := range tokensA {
		if setB[t] {
			intersection = append(intersection, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tokensB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(intersection)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(intersection, " ")
	combined1 := joinNonEmpty(base, strings.Join(onlyA, " "))
	combined2 := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := ratio(base, combined1)
	if r := ratio(base, combined2); r > best {
		best = r
	}
	if r := ratio(combined1, combined2); r > best {
		best = r
	}
	return best
}

func uniqueSortedTokens(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range strings.Fields(s) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func joinNonEmpty(base, extra string) string {
	if base == "" {
		return extra
	}
	if extra == "" {
		return base
	}
	return base + " " + extra
}

// nameSimilarity is the max of three fuzzy matching strategies over
// lowercased names, mirroring entity_resolver.py's
// _calculate_name_similarity.
func nameSimilarity(name1, name2 string) float64 {
	a := strings.ToLower(strings.TrimSpace(name1))
	b := strings.ToLower(strings.TrimSpace(name2))
	if a == "" || b == "" {
		return 0
	}
	best := ratio(a, b)
	if r := tokenSortRatio(a, b); r > best {
		best = r
	}
	if r := tokenSetRatio(a, b); r > best {
		best = r
	}
	return best
}

// emailSimilarity is a plain edit ratio over lowercased emails.
func emailSimilarity(email1, email2 string) float64 {
	a := strings.ToLower(strings.TrimSpace(email1))
	b := strings.ToLower(strings.TrimSpace(email2))
	if a == "" || b == "" {
		return 0
	}
	return ratio(a, b)
}
