package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// AnalysisKey derives the memo key for a content-analysis call. Identical
// transcripts under different jobs recur more often than identical raw audio,
// so this cache is keyed independently of the content fingerprint.
func AnalysisKey(transcript, contextDescription string) string {
	return hashFields("analysis", transcript, contextDescription)
}

// ImageKey derives the memo key for one image-synthesis request.
func ImageKey(prompt, style string) string {
	return hashFields("image", prompt, style)
}

// hashFields hashes a label plus its fields with explicit length prefixes so
// that field boundaries cannot collide ("ab","c" vs "a","bc").
func hashFields(label string, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(label))
	for _, f := range fields {
		var lenBuf [8]byte
		n := len(f)
		for i := 0; i < 8; i++ {
			lenBuf[i] = byte(n >> (8 * i))
		}
		h.Write(lenBuf[:])
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
