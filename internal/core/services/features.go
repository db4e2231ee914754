package services

import (
	"bytes"
	"hash/fnv"
	"math"
	"unicode"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// Fixed structural feature slots. Hashed n-gram features fill the
// remaining dimensions.
const (
	featModalityText = iota
	featModalityCode
	featModalityStructured
	featSize
	featLines
	featAvgLine
	featMaxLine
	featBlankLines
	featIndent
	featWhitespace
	featAlpha
	featDigit
	featPunct
	featUpper
	featNonASCII
	featEntropy
	featTokens
	featAvgToken
	featUniqueTokens
	featNesting
	featBrackets
	featComments
	featDeclarations
	featImports
	featKeyValue
	featDelimiters
	featQuotes
	featSentences
	numFixedFeatures
)

var (
	declarationWords = map[string]bool{
		"func": true, "def": true, "fn": true, "function": true, "class": true,
		"struct": true, "interface": true, "impl": true, "trait": true, "type": true,
	}
	importWords = map[string]bool{
		"import": true, "include": true, "use": true, "require": true, "from": true, "package": true,
	}
	commentPrefixes = [][]byte{[]byte("//"), []byte("#"), []byte("--"), []byte("/*"), []byte("*"), []byte(";")}
)

// structuralVector computes a deterministic, L2-normalised feature vector of
// length dim from the bytes alone. The leading slots hold hand-built
// modality features; hashed token unigrams and character trigrams fill
// the rest. If dim is smaller than the fixed block, the block is truncated.
func structuralVector(in domain.EmbeddingInput, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	fixed := fixedFeatures(in)
	vec := make([]float32, dim)
	copy(vec, fixed)
	if dim > len(fixed) {
		hashed := hashedFeatures(in.Data, dim-len(fixed))
		normalize(hashed)
		copy(vec[len(fixed):], hashed)
	}
	normalize(vec)
	return vec
}

//nolint:gocyclo // Straight-line feature extraction over a single pass.
func fixedFeatures(in domain.EmbeddingInput) []float32 {
	f := make([]float32, numFixedFeatures)
	switch in.Modality {
	case domain.ModalityCode:
		f[featModalityCode] = 1
	case domain.ModalityStructured:
		f[featModalityStructured] = 1
	default:
		f[featModalityText] = 1
	}

	data := in.Data
	n := len(data)
	if n == 0 {
		return f
	}
	total := float64(n)

	var (
		counts                                   [256]int
		whitespace, alpha, digit, punct          int
		upper, nonASCII, quotes, delimiters      int
		depth, maxDepth, brackets, sentenceMarks int
	)
	for _, b := range data {
		counts[b]++
		switch {
		case b >= 0x80:
			nonASCII++
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			whitespace++
		case unicode.IsLetter(rune(b)):
			alpha++
			if unicode.IsUpper(rune(b)) {
				upper++
			}
		case unicode.IsDigit(rune(b)):
			digit++
		default:
			punct++
		}
		switch b {
		case '{', '(', '[':
			depth++
			brackets++
			maxDepth = max(maxDepth, depth)
		case '}', ')', ']':
			if depth > 0 {
				depth--
			}
			brackets++
		case '"', '\'', '`':
			quotes++
		case ',', ';', '\t', '|':
			delimiters++
		case '.', '!', '?':
			sentenceMarks++
		}
	}

	lines := bytes.Split(data, []byte("\n"))
	var (
		maxLine, blank, indent, comments, keyValue int
		declarations, imports                      int
	)
	for _, line := range lines {
		maxLine = max(maxLine, len(line))
		trimmed := bytes.TrimLeft(line, " \t")
		indent += len(line) - len(trimmed)
		if len(bytes.TrimSpace(trimmed)) == 0 {
			blank++
			continue
		}
		for _, p := range commentPrefixes {
			if bytes.HasPrefix(trimmed, p) {
				comments++
				break
			}
		}
		if bytes.IndexByte(trimmed, ':') > 0 || bytes.IndexByte(trimmed, '=') > 0 {
			keyValue++
		}
		first := firstWord(trimmed)
		if declarationWords[first] {
			declarations++
		}
		if importWords[first] {
			imports++
		}
	}
	lineCount := float64(len(lines))

	tokens := tokenize(data)
	unique := make(map[string]struct{}, len(tokens))
	tokenBytes := 0
	for _, tok := range tokens {
		unique[tok] = struct{}{}
		tokenBytes += len(tok)
	}

	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}

	f[featSize] = float32(math.Log1p(total) / 20)
	f[featLines] = float32(math.Log1p(lineCount) / 15)
	f[featAvgLine] = clamp01(total / lineCount / 120)
	f[featMaxLine] = clamp01(float64(maxLine) / 400)
	f[featBlankLines] = float32(float64(blank) / lineCount)
	f[featIndent] = clamp01(float64(indent) / lineCount / 16)
	f[featWhitespace] = float32(float64(whitespace) / total)
	f[featAlpha] = float32(float64(alpha) / total)
	f[featDigit] = float32(float64(digit) / total)
	f[featPunct] = float32(float64(punct) / total)
	f[featUpper] = float32(float64(upper) / math.Max(1, float64(alpha)))
	f[featNonASCII] = float32(float64(nonASCII) / total)
	f[featEntropy] = float32(entropy / 8)
	f[featTokens] = float32(math.Log1p(float64(len(tokens))) / 15)
	if len(tokens) > 0 {
		f[featAvgToken] = clamp01(float64(tokenBytes) / float64(len(tokens)) / 12)
		f[featUniqueTokens] = float32(float64(len(unique)) / float64(len(tokens)))
	}
	f[featNesting] = clamp01(float64(maxDepth) / 16)
	f[featBrackets] = clamp01(float64(brackets) / total * 10)
	f[featComments] = float32(float64(comments) / lineCount)
	f[featDeclarations] = float32(float64(declarations) / lineCount)
	f[featImports] = float32(float64(imports) / lineCount)
	f[featKeyValue] = float32(float64(keyValue) / lineCount)
	f[featDelimiters] = clamp01(float64(delimiters) / total * 10)
	f[featQuotes] = clamp01(float64(quotes) / total * 10)
	f[featSentences] = clamp01(float64(sentenceMarks) / lineCount)
	return f
}

// hashedFeatures folds token unigrams and character trigrams into size
// buckets with a signed hash, weighting counts by log1p.
func hashedFeatures(data []byte, size int) []float32 {
	counts := make([]float64, size)
	add := func(b []byte) {
		h := fnv.New64a()
		h.Write(b) //nolint:errcheck // hash writes never fail
		sum := h.Sum64()
		bucket := int(sum % uint64(size))
		if sum>>63 == 1 {
			counts[bucket]--
		} else {
			counts[bucket]++
		}
	}
	for _, tok := range tokenize(data) {
		add([]byte(tok))
	}
	lower := bytes.ToLower(data)
	for i := 0; i+3 <= len(lower); i++ {
		add(lower[i : i+3])
	}

	out := make([]float32, size)
	for i, c := range counts {
		if c >= 0 {
			out[i] = float32(math.Log1p(c))
		} else {
			out[i] = -float32(math.Log1p(-c))
		}
	}
	return out
}

// tokenize splits on anything that is not a letter, digit or underscore,
// lowercasing ASCII letters.
func tokenize(data []byte) []string {
	var tokens []string
	start := -1
	for i := 0; i <= len(data); i++ {
		word := i < len(data) && isWordByte(data[i])
		if word && start < 0 {
			start = i
		}
		if !word && start >= 0 {
			tokens = append(tokens, string(bytes.ToLower(data[start:i])))
			start = -1
		}
	}
	return tokens
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 0x80 || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func firstWord(line []byte) string {
	end := 0
	for end < len(line) && isWordByte(line[end]) {
		end++
	}
	return string(line[:end])
}

func clamp01(v float64) float32 {
	return float32(math.Min(1, math.Max(0, v)))
}
