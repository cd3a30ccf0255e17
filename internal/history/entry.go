package history

import (
	"time"

	"github.com/comigor/landing-chat/internal/models"
)

// Entry is an archived chat session. Entries are never edited; they are only
// created by Archive and removed by Delete or eviction.
type Entry struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Messages  []models.Message `json:"messages"`
	Timestamp time.Time        `json:"timestamp"`
}

const ellipsis = "..."

// Title derives an entry title from the first message content: its first n
// characters, with an ellipsis when the content was longer than that.
func Title(content string, n int) string {
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n]) + ellipsis
}

func (e Entry) clone() Entry {
	e.Messages = models.CloneMessages(e.Messages)
	return e
}
