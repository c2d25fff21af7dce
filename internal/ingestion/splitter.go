package ingestion

import "strings"

// SplitBlocks windows extracted text blocks into overlapping chunks.
// Sizes are in runes so multibyte text never splits mid-character.
// Empty windows are dropped.
func SplitBlocks(blocks []string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	for _, block := range blocks {
		runes := []rune(block)
		length := len(runes)
		start := 0
		for start < length {
			end := start + chunkSize
			if end > length {
				end = length
			}
			chunk := strings.TrimSpace(string(runes[start:end]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			if end >= length {
				break
			}
			start = end - overlap
		}
	}
	return chunks
}
