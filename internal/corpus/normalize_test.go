package corpus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeKeepsKoreanAndPunctuation(t *testing.T) {
	require.Equal(t, "예약을 취소하고 싶어요.", Normalize("예약을 취소하고 싶어요."))
	require.Equal(t, "진료 시간이 어떻게 되나요?", Normalize("진료 시간이 어떻게 되나요?"))
}

func TestNormalizeStripsSpecialCharacters(t *testing.T) {
	require.Equal(t, "전화 0212345678 대표", Normalize("전화: 02-1234-5678 (대표)"))
	require.Equal(t, "비용은 50,000원입니다!", Normalize("비용은 ₩50,000원입니다!"))
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	require.Equal(t, "안녕 하세요 반갑습니다", Normalize("안녕  하세요\n\t반갑습니다"))
	require.Equal(t, "공백", Normalize("  공백  "))
}

func TestNormalizeFlattensMarkdown(t *testing.T) {
	got := Normalize("**진료시간**은 [홈페이지](https://example.com)를 참고하세요")
	require.Equal(t, "진료시간은 홈페이지를 참고하세요", got)

	got = Normalize("# 안내\n예약 방법은 다음과 같습니다")
	require.Equal(t, "안내 예약 방법은 다음과 같습니다", got)
}

func TestNormalizeEmpty(t *testing.T) {
	require.Equal(t, "", Normalize(""))
	require.Equal(t, "", Normalize("   \n  "))
}
