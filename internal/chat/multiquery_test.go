package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qms-rag/internal/llm"
)

func newExpander(stub *stubLLM) *Expander {
	return NewExpander(llm.NewRegistry(zap.NewNop(), stub), llm.ModelGPT4oMini)
}

func TestExpandParsesNumberedLines(t *testing.T) {
	stub := &stubLLM{
		models: []string{llm.ModelGPT4oMini},
		answer: "1. Welche Sicherheitswarnungen gelten für Loctite?\n" +
			"2) Gefahrenhinweise Loctite 401\n" +
			"Hinweis ohne Nummer wird ignoriert\n" +
			"3. Welche Sicherheitswarnungen gelten für Loctite?\n" +
			"4. Sicherheitsdatenblatt Loctite Warnungen",
	}

	variants, err := newExpander(stub).Expand(context.Background(), "Welche Warnungen gelten?")
	require.NoError(t, err)

	// Original first, duplicates dropped, unnumbered lines ignored.
	require.Len(t, variants, 4)
	assert.Equal(t, "Welche Warnungen gelten?", variants[0])
	assert.Equal(t, "Welche Sicherheitswarnungen gelten für Loctite?", variants[1])
	assert.Equal(t, "Gefahrenhinweise Loctite 401", variants[2])
	assert.Equal(t, "Sicherheitsdatenblatt Loctite Warnungen", variants[3])
}

func TestExpandCapsVariants(t *testing.T) {
	stub := &stubLLM{
		models: []string{llm.ModelGPT4oMini},
		answer: "1. eins\n2. zwei\n3. drei\n4. vier\n5. fünf\n6. sechs",
	}

	variants, err := newExpander(stub).Expand(context.Background(), "original")
	require.NoError(t, err)
	assert.Len(t, variants, maxQueryVariants)
	assert.Equal(t, "original", variants[0])
}

func TestExpandRaisesOnLLMFailure(t *testing.T) {
	stub := &stubLLM{models: []string{llm.ModelGPT4oMini}, err: errors.New("boom")}

	_, err := newExpander(stub).Expand(context.Background(), "original")
	assert.Error(t, err)
}

func TestAskQuestionSkipsInvalidQueryVariants(t *testing.T) {
	answerStub := &stubLLM{models: []string{llm.ModelGPT4oMini}, answer: "Antwort."}
	env, ctx := newChatEnv(t, answerStub)

	// Expander emits a variant below the minimum query length; retrieval
	// for the original query still answers the question.
	short := &stubLLM{models: []string{llm.ModelGeminiFlash}, answer: "1. Ja"}
	env.orch.expander = NewExpander(llm.NewRegistry(zap.NewNop(), short), llm.ModelGeminiFlash)

	resp, err := askStep(env, ctx, AskRequest{UserID: "user-1", MultiQuery: true})
	require.NoError(t, err)
	assert.Equal(t, "Antwort.", resp.Message.Content)
	assert.NotEmpty(t, resp.Sources)
}

func TestAskQuestionDegradesWhenExpansionFails(t *testing.T) {
	answerStub := &stubLLM{models: []string{llm.ModelGPT4oMini}, answer: "Antwort."}
	env, ctx := newChatEnv(t, answerStub)

	// Expander whose provider always fails: the orchestrator proceeds with
	// the original query.
	failing := &stubLLM{models: []string{llm.ModelGeminiFlash}, err: errors.New("expander down")}
	env.orch.expander = NewExpander(llm.NewRegistry(zap.NewNop(), failing), llm.ModelGeminiFlash)

	resp, err := askStep(env, ctx, AskRequest{UserID: "user-1", MultiQuery: true})
	require.NoError(t, err)
	assert.Equal(t, "Antwort.", resp.Message.Content)
	assert.NotEmpty(t, resp.Sources)
}
