package asl

import "fmt"

// AlphabetSize is the number of letter classes the model predicts.
const AlphabetSize = 26

type LetterInfo struct {
	Letter      string `json:"letter"`
	Index       int    `json:"index"`
	Description string `json:"description"`
}

var letters = buildLetters()

func buildLetters() []LetterInfo {
	out := make([]LetterInfo, AlphabetSize)
	for i := range out {
		l := LetterFor(i)
		out[i] = LetterInfo{
			Letter:      l,
			Index:       i,
			Description: fmt.Sprintf("ASL sign for letter %s", l),
		}
	}
	return out
}

// LetterFor maps a class index in [0, AlphabetSize) to its uppercase letter.
// Callers must range-check the index first.
func LetterFor(index int) string {
	return string(rune('A' + index))
}

// Letters returns the reference list of supported letters ordered by index.
// The returned slice is a copy.
func Letters() []LetterInfo {
	out := make([]LetterInfo, len(letters))
	copy(out, letters)
	return out
}
