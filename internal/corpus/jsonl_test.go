package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seoulmedi/hosqa/internal/model"
)

func TestProcessedRoundTrip(t *testing.T) {
	records := []model.SourceRecord{
		{
			ID:       0,
			Question: "진료 시간이 어떻게 되나요?",
			Answer:   "평일 오전 9시부터 오후 6시까지입니다.",
			Category: "hospital",
			Metadata: map[string]string{"source": "hospital_qa", "index": "0"},
		},
		{
			ID:       1,
			Question: "주차가 가능한가요?",
			Answer:   "지하 주차장을 이용하실 수 있습니다.",
			Category: "hospital",
			Metadata: map[string]string{"source": "hospital_qa", "index": "1"},
		},
	}

	path := filepath.Join(t.TempDir(), "processed", "corpus.jsonl")
	require.NoError(t, SaveProcessed(path, records))

	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	loaded, err := LoadProcessed(path)
	require.NoError(t, err)
	require.Equal(t, records, loaded)
}

func TestLoadProcessedMissingFile(t *testing.T) {
	_, err := LoadProcessed(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
}

func TestLoadProcessedBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":0}\nnot-json\n"), 0o644))
	_, err := LoadProcessed(path)
	require.Error(t, err)
}
