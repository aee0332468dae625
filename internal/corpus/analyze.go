package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/seoulmedi/hosqa/internal/model"
)

// Analyze recomputes the quality report from already normalized records,
// for when the corpus comes back from the processed store instead of a
// fresh CSV scan. Row-level counters stay zero because the raw file is
// not available anymore.
func Analyze(records []model.SourceRecord) model.QualityReport {
	report := model.QualityReport{
		TotalRows:     len(records),
		LoadedRecords: len(records),
	}
	seen := map[string]struct{}{}
	var questionRunes, answerRunes int
	for _, rec := range records {
		if _, dup := seen[rec.Question]; dup {
			report.DuplicateQuestions++
		} else {
			seen[rec.Question] = struct{}{}
		}
		questionRunes += utf8.RuneCountInString(rec.Question)
		answerRunes += utf8.RuneCountInString(rec.Answer)
	}
	report.UniqueQuestions = len(seen)
	if n := len(records); n > 0 {
		report.AvgQuestionLen = float64(questionRunes) / float64(n)
		report.AvgAnswerLen = float64(answerRunes) / float64(n)
	}
	return report
}

// Fingerprint hashes the normalized record stream so a persisted index
// can be checked against the corpus it was built from.
func Fingerprint(records []model.SourceRecord) string {
	h := sha256.New()
	for _, rec := range records {
		io.WriteString(h, strconv.FormatInt(rec.ID, 10))
		h.Write([]byte{0x1f})
		io.WriteString(h, rec.Question)
		h.Write([]byte{0x1f})
		io.WriteString(h, rec.Answer)
		h.Write([]byte{0x1f})
		io.WriteString(h, rec.Category)
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
