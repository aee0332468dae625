package ai

import (
	"fmt"
	"strings"
)

// FallbackAnswer is returned when retrieval finds nothing relevant
// enough to ground an answer on.
const FallbackAnswer = "죄송합니다. 문의하신 내용과 관련된 정보를 찾지 못했습니다. 병원 대표번호로 문의해 주시면 자세히 안내해 드리겠습니다."

// DegradedAnswer is returned when the embedding or generation service
// stayed unavailable after all retries.
const DegradedAnswer = "죄송합니다. 일시적인 시스템 문제로 답변을 드리지 못했습니다. 잠시 후 다시 질문해 주세요."

const answerInstructions = `당신은 병원 고객 상담 도우미입니다.
- 아래 참고 자료에 있는 내용만 사용해 답변하세요.
- 참고 자료에 없는 내용은 지어내지 말고 모른다고 답하세요.
- 질문과 같은 언어로 간결하고 정중하게 답변하세요.`

// BuildAnswerPrompt assembles the grounding prompt. Contexts arrive
// ranked by similarity, each labeled [출처 N] so answers can cite
// them.
func BuildAnswerPrompt(question string, contexts []string) string {
	var sb strings.Builder
	sb.WriteString(answerInstructions)
	sb.WriteString("\n\n참고 자료:\n")
	for i, c := range contexts {
		sb.WriteString(fmt.Sprintf("[출처 %d] %s\n", i+1, c))
	}
	sb.WriteString("\n질문: ")
	sb.WriteString(question)
	sb.WriteString("\n답변:")
	return sb.String()
}
