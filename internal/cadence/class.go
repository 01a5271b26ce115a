package cadence

import (
	"strings"
	"unicode"
)

// Class groups characters that share a delay profile.
type Class int

// Character classes.
const (
	ClassOther Class = iota
	ClassSentenceEnd
	ClassClausePunct
	ClassSpaceAfterSentence
	ClassSpaceAfterClause
	ClassSpace
	ClassUpper
	ClassDigit
	ClassBracket
	ClassQuote
	ClassSymbol
	ClassNewline
	ClassTab
)

const (
	sentenceEndChars = ".!?"
	clauseChars      = ",;:"
	bracketChars     = "()[]{}"
	quoteChars       = "\"'`"
	symbolChars      = "!@#$%^&*+=<>?"
)

type multiplierRange struct {
	lo float64
	hi float64
}

var classRanges = map[Class]multiplierRange{
	ClassSentenceEnd:        {2.5, 4.0},
	ClassClausePunct:        {1.4, 2.5},
	ClassSpaceAfterSentence: {0.3, 0.6},
	ClassSpaceAfterClause:   {0.5, 0.8},
	ClassSpace:              {0.7, 1.1},
	ClassUpper:              {1.1, 1.4},
	ClassDigit:              {1.2, 1.6},
	ClassBracket:            {1.3, 1.8},
	ClassQuote:              {1.0, 1.3},
	ClassSymbol:             {1.4, 2.0},
	ClassNewline:            {1.5, 2.5},
	ClassTab:                {1.0, 1.5},
	ClassOther:              {1.0, 1.0},
}

var classNames = map[Class]string{
	ClassOther:              "other",
	ClassSentenceEnd:        "sentence-end",
	ClassClausePunct:        "clause",
	ClassSpaceAfterSentence: "space-after-sentence",
	ClassSpaceAfterClause:   "space-after-clause",
	ClassSpace:              "space",
	ClassUpper:              "upper",
	ClassDigit:              "digit",
	ClassBracket:            "bracket",
	ClassQuote:              "quote",
	ClassSymbol:             "symbol",
	ClassNewline:            "newline",
	ClassTab:                "tab",
}

// String returns the class name.
func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// Range returns the multiplier bounds for the class.
func (c Class) Range() (lo, hi float64) {
	r, ok := classRanges[c]
	if !ok {
		return 1, 1
	}
	return r.lo, r.hi
}

// Classify returns the class of ch. prev only matters for spaces.
func Classify(ch, prev rune) Class {
	switch {
	case strings.ContainsRune(sentenceEndChars, ch):
		return ClassSentenceEnd
	case strings.ContainsRune(clauseChars, ch):
		return ClassClausePunct
	case ch == ' ':
		switch {
		case strings.ContainsRune(sentenceEndChars, prev):
			return ClassSpaceAfterSentence
		case strings.ContainsRune(clauseChars, prev):
			return ClassSpaceAfterClause
		default:
			return ClassSpace
		}
	case ch == '\n':
		return ClassNewline
	case ch == '\t':
		return ClassTab
	case unicode.IsUpper(ch):
		return ClassUpper
	case unicode.IsDigit(ch):
		return ClassDigit
	case strings.ContainsRune(bracketChars, ch):
		return ClassBracket
	case strings.ContainsRune(quoteChars, ch):
		return ClassQuote
	case strings.ContainsRune(symbolChars, ch):
		return ClassSymbol
	default:
		return ClassOther
	}
}

func classMultiplier(rnd Rand, c Class) float64 {
	lo, hi := c.Range()
	if lo == hi {
		return lo
	}
	return Uniform(rnd, lo, hi)
}
