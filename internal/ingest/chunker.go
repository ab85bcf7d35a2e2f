package ingest

// SplitText slices text into overlapping windows of at most size runes.
// Consecutive chunks share exactly overlap runes, so a phrase cut by one
// chunk boundary survives intact in the next chunk. Windows are rune-based
// to never split a UTF-8 sequence. overlap must be smaller than size.
func SplitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}

	stride := size - overlap
	if stride <= 0 {
		stride = size
	}

	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
