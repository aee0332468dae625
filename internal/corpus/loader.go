package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/model"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

const sourceName = "hospital_qa"

// LoadResult bundles the usable records with the quality report over
// the raw file.
type LoadResult struct {
	Records []model.SourceRecord
	Report  model.QualityReport
}

// LoadCSV parses a question/answer CSV. The header must contain a
// question column (질문 or question) and an answer column (답변 or
// answer). Rows missing either side are skipped with a warning, a
// malformed file fails the load outright.
func LoadCSV(ctx context.Context, r io.Reader, category string) (*LoadResult, error) {
	logger := logutil.GetLogger(ctx)
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", apperr.ErrCorpusFormat, err)
	}
	qIdx, aIdx := -1, -1
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF")))
		switch name {
		case "질문", "question":
			qIdx = i
		case "답변", "answer":
			aIdx = i
		}
	}
	if qIdx < 0 || aIdx < 0 {
		return nil, fmt.Errorf("%w: header must contain question and answer columns, got %v", apperr.ErrCorpusFormat, header)
	}

	result := &LoadResult{}
	seen := map[string]struct{}{}
	var questionRunes, answerRunes int
	rowNum := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", apperr.ErrCorpusFormat, rowNum, err)
		}
		result.Report.TotalRows++
		question := strings.TrimSpace(field(row, qIdx))
		answer := strings.TrimSpace(field(row, aIdx))
		if question == "" {
			result.Report.MissingQuestions++
		}
		if answer == "" {
			result.Report.MissingAnswers++
		}
		question = Normalize(question)
		answer = Normalize(answer)
		if question == "" || answer == "" {
			result.Report.SkippedRows++
			logger.Warn("skipping corpus row with missing text",
				zap.Int("row", rowNum),
				zap.Bool("has_question", question != ""),
				zap.Bool("has_answer", answer != ""))
			continue
		}
		id := int64(len(result.Records))
		result.Records = append(result.Records, model.SourceRecord{
			ID:       id,
			Question: question,
			Answer:   answer,
			Category: category,
			Metadata: map[string]string{
				"source": sourceName,
				"index":  strconv.FormatInt(id, 10),
			},
		})
		if _, dup := seen[question]; dup {
			result.Report.DuplicateQuestions++
		} else {
			seen[question] = struct{}{}
		}
		questionRunes += utf8.RuneCountInString(question)
		answerRunes += utf8.RuneCountInString(answer)
	}

	result.Report.LoadedRecords = len(result.Records)
	result.Report.UniqueQuestions = len(seen)
	if n := len(result.Records); n > 0 {
		result.Report.AvgQuestionLen = float64(questionRunes) / float64(n)
		result.Report.AvgAnswerLen = float64(answerRunes) / float64(n)
	}
	if len(result.Records) == 0 {
		return nil, fmt.Errorf("%w: no usable records in corpus", apperr.ErrCorpusFormat)
	}
	logger.Info("corpus loaded",
		zap.Int("rows", result.Report.TotalRows),
		zap.Int("records", result.Report.LoadedRecords),
		zap.Int("skipped", result.Report.SkippedRows),
		zap.Int("duplicates", result.Report.DuplicateQuestions))
	return result, nil
}

func field(row []string, i int) string {
	if i >= 0 && i < len(row) {
		return row[i]
	}
	return ""
}
