package ai

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func newSimpleEmbedderForTest(t *testing.T, dim int) IEmbedder {
	t.Helper()
	emb, err := NewEmbedder("simple", "simple-ngram", map[string]interface{}{"dim": dim})
	require.NoError(t, err)
	return emb
}

func TestSimpleEmbedderDeterministic(t *testing.T) {
	emb := newSimpleEmbedderForTest(t, 256)
	ctx := context.Background()

	first, err := emb.Embed(ctx, []string{"예약을 취소하고 싶어요"}, TaskQuery)
	require.NoError(t, err)
	second, err := emb.Embed(ctx, []string{"예약을 취소하고 싶어요"}, TaskQuery)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 1)
	require.Len(t, first[0], 256)
}

func TestSimpleEmbedderBatchOrder(t *testing.T) {
	emb := newSimpleEmbedderForTest(t, 128)
	texts := []string{"첫번째 질문", "두번째 질문", "세번째 질문"}
	vectors, err := emb.Embed(context.Background(), texts, TaskDocument)
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	single, err := emb.Embed(context.Background(), []string{texts[1]}, TaskDocument)
	require.NoError(t, err)
	require.Equal(t, single[0], vectors[1])
}

func TestSimpleEmbedderNormalized(t *testing.T) {
	emb := newSimpleEmbedderForTest(t, 256)
	vectors, err := emb.Embed(context.Background(), []string{"진료 시간이 어떻게 되나요?"}, TaskQuery)
	require.NoError(t, err)
	var sum float64
	for _, v := range vectors[0] {
		sum += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}

func TestSimpleEmbedderSimilarityOrdering(t *testing.T) {
	emb := newSimpleEmbedderForTest(t, 256)
	query := "예약을 취소하고 싶어요"
	related := "질문: 예약을 취소하려면 어떻게 해야 하나요?\n답변: 예약 취소는 전화 또는 홈페이지에서 가능합니다."
	unrelated := "질문: 주차장이 있나요?\n답변: 지하 1층에 주차장이 있습니다."

	vectors, err := emb.Embed(context.Background(), []string{query, related, unrelated}, TaskDocument)
	require.NoError(t, err)

	simRelated := cosine(vectors[0], vectors[1])
	simUnrelated := cosine(vectors[0], vectors[2])
	require.Greater(t, simRelated, simUnrelated)
	require.Greater(t, simRelated, 0.3)
	require.Less(t, simUnrelated, 0.25)
}

func TestSimpleGeneratorExtractsFirstSource(t *testing.T) {
	gen, err := NewGenerator("simple", "", nil)
	require.NoError(t, err)

	prompt := BuildAnswerPrompt("예약을 취소하고 싶어요", []string{
		"질문: 예약을 취소하려면 어떻게 해야 하나요?\n답변: 예약 취소는 전화로 가능합니다.",
		"질문: 진료 시간이 어떻게 되나요?\n답변: 평일 9시부터 6시까지입니다.",
	})
	answer, err := gen.Generate(context.Background(), prompt)
	require.NoError(t, err)
	require.Contains(t, answer, "예약 취소는 전화로 가능합니다.")
	require.NotContains(t, answer, "평일 9시부터")
}

func TestSimpleGeneratorWithoutContext(t *testing.T) {
	gen, err := NewGenerator("simple", "", nil)
	require.NoError(t, err)
	answer, err := gen.Generate(context.Background(), "참고 자료 없는 질문")
	require.NoError(t, err)
	require.NotEmpty(t, answer)
}

func TestRegistryUnknownProviders(t *testing.T) {
	_, err := NewGenerator("nope", "m", nil)
	require.Error(t, err)
	_, err = NewEmbedder("nope", "m", nil)
	require.Error(t, err)
	_, err = NewGenerator("", "m", nil)
	require.Error(t, err)
}
