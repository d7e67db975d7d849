package capture

// ExtractJPEG extracts one complete JPEG image from buf by scanning for
// the SOI (FFD8) and EOI (FFD9) markers. Consumed bytes are removed
// from buf. Returns nil when no complete image is buffered yet.
func ExtractJPEG(buf *[]byte) []byte {
	b := *buf
	if len(b) < 4 {
		return nil
	}

	startIdx := -1
	for i := 0; i < len(b)-1; i++ {
		if b[i] == 0xFF && b[i+1] == 0xD8 {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		// No start marker anywhere; drop the garbage.
		*buf = b[:0]
		return nil
	}

	endIdx := -1
	for i := startIdx + 2; i < len(b)-1; i++ {
		if b[i] == 0xFF && b[i+1] == 0xD9 {
			endIdx = i + 2
			break
		}
	}
	if endIdx == -1 {
		return nil
	}

	img := make([]byte, endIdx-startIdx)
	copy(img, b[startIdx:endIdx])
	*buf = b[endIdx:]
	return img
}
