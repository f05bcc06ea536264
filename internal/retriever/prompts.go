package retriever

import (
	"strings"

	"github.com/mohammad-safakhou/findly/models"
)

const singleTurnTemplate = "Answer the question based only on the following context:\n{context}\nQuestion: {question}\n"

const qaSystemTemplate = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, just say that you don't know. " +
	"Use three sentences maximum and keep the answer concise.\n\n{context}"

const chunkSeparator = "\n\n"

func joinContext(chunks []models.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, chunkSeparator)
}

// buildMessages lays out the prompt. A single question is one user message.
// In chat mode the context goes into a system message followed by the prior
// turns and the question.
func buildMessages(question string, chunks []models.ScoredChunk, chat bool, history []models.Turn) []models.ChatMessage {
	context := joinContext(chunks)
	if !chat {
		prompt := strings.NewReplacer("{context}", context, "{question}", question).Replace(singleTurnTemplate)
		return []models.ChatMessage{{Role: "user", Content: prompt}}
	}
	msgs := make([]models.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, models.ChatMessage{Role: "system", Content: strings.Replace(qaSystemTemplate, "{context}", context, 1)})
	msgs = append(msgs, HistoryMessages(history)...)
	msgs = append(msgs, models.ChatMessage{Role: "user", Content: question})
	return msgs
}

// HistoryMessages converts stored turns into chat messages, oldest first.
func HistoryMessages(history []models.Turn) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(history))
	for _, t := range history {
		out = append(out, models.ChatMessage{Role: string(t.Role), Content: t.Text})
	}
	return out
}
