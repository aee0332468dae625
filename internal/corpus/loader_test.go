package corpus

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

func TestLoadCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"질문,답변",
		"진료 시간이 어떻게 되나요?,평일 오전 9시부터 오후 6시까지입니다.",
		"주차장이 있나요?,지하 1층에 주차장이 있습니다.",
		",답변만 있는 행입니다.",
		"질문만 있는 행입니다,",
		"진료 시간이 어떻게 되나요?,중복 질문에 대한 다른 답변입니다.",
	}, "\n")

	result, err := LoadCSV(context.Background(), strings.NewReader(csvData), "hospital")
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	first := result.Records[0]
	require.Equal(t, int64(0), first.ID)
	require.Equal(t, "진료 시간이 어떻게 되나요?", first.Question)
	require.Equal(t, "평일 오전 9시부터 오후 6시까지입니다.", first.Answer)
	require.Equal(t, "hospital", first.Category)
	require.Equal(t, "hospital_qa", first.Metadata["source"])
	require.Equal(t, "0", first.Metadata["index"])
	require.Equal(t, int64(2), result.Records[2].ID)

	report := result.Report
	require.Equal(t, 5, report.TotalRows)
	require.Equal(t, 3, report.LoadedRecords)
	require.Equal(t, 2, report.SkippedRows)
	require.Equal(t, 1, report.MissingQuestions)
	require.Equal(t, 1, report.MissingAnswers)
	require.Equal(t, 2, report.UniqueQuestions)
	require.Equal(t, 1, report.DuplicateQuestions)
	require.Greater(t, report.AvgQuestionLen, 0.0)
	require.Greater(t, report.AvgAnswerLen, 0.0)
}

func TestLoadCSVEnglishHeader(t *testing.T) {
	csvData := "question,answer\nWhat are your hours?,We are open 9 to 6.\n"
	result, err := LoadCSV(context.Background(), strings.NewReader(csvData), "hospital")
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Equal(t, "What are your hours?", result.Records[0].Question)
}

func TestLoadCSVBOMHeader(t *testing.T) {
	csvData := "\uFEFF질문,답변\n어디에 있나요?,서울시 중구에 있습니다.\n"
	result, err := LoadCSV(context.Background(), strings.NewReader(csvData), "hospital")
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
}

func TestLoadCSVMissingColumns(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader("id,text\n1,hello\n"), "hospital")
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrCorpusFormat))
}

func TestLoadCSVEmptyFile(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader(""), "hospital")
	require.True(t, errors.Is(err, apperr.ErrCorpusFormat))
}

func TestLoadCSVNoUsableRows(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader("질문,답변\n,\n"), "hospital")
	require.True(t, errors.Is(err, apperr.ErrCorpusFormat))
}

func TestLoadCSVMalformed(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader("질문,답변\n\"병원\"위치,어디\n"), "hospital")
	require.True(t, errors.Is(err, apperr.ErrCorpusFormat))
}
