package engine

import (
	"strings"
	"unicode"
)

// WER breaks down the word error rate of a hypothesis against a reference.
type WER struct {
	Rate          float64 // (S + I + D) / reference words
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

type editOp uint8

const (
	opMatch editOp = iota
	opSub
	opIns
	opDel
)

type cell struct {
	cost int
	op   editOp
}

// ScoreWER aligns hypothesis against reference after lowercasing and
// stripping punctuation. An empty reference scores zero.
func ScoreWER(reference, hypothesis string) WER {
	ref := words(reference)
	hyp := words(hypothesis)
	if len(ref) == 0 {
		return WER{}
	}

	grid := make([][]cell, len(ref)+1)
	for i := range grid {
		grid[i] = make([]cell, len(hyp)+1)
		grid[i][0] = cell{cost: i, op: opDel}
	}
	for j := 1; j <= len(hyp); j++ {
		grid[0][j] = cell{cost: j, op: opIns}
	}

	for i := 1; i <= len(ref); i++ {
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				grid[i][j] = cell{cost: grid[i-1][j-1].cost, op: opMatch}
				continue
			}
			best := cell{cost: grid[i-1][j-1].cost + 1, op: opSub}
			if c := grid[i-1][j].cost + 1; c < best.cost {
				best = cell{cost: c, op: opDel}
			}
			if c := grid[i][j-1].cost + 1; c < best.cost {
				best = cell{cost: c, op: opIns}
			}
			grid[i][j] = best
		}
	}

	var w WER
	for i, j := len(ref), len(hyp); i > 0 || j > 0; {
		switch grid[i][j].op {
		case opMatch:
			i, j = i-1, j-1
		case opSub:
			w.Substitutions++
			i, j = i-1, j-1
		case opDel:
			w.Deletions++
			i--
		case opIns:
			w.Insertions++
			j--
		}
	}
	w.RefWords = len(ref)
	w.Rate = float64(w.Substitutions+w.Insertions+w.Deletions) / float64(len(ref))
	return w
}

func words(s string) []string {
	return strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s))
}
