package runtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatsync/domain"
)

func msg(sender, content string, at time.Time) domain.Message {
	return domain.Message{SenderName: sender, Content: content, Timestamp: at}
}

func TestMergeHistory(t *testing.T) {
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	m1 := msg("alice", "one", base)
	m2 := msg("bob", "two", base.Add(time.Second))
	m3 := msg("carol", "three", base.Add(2*time.Second))

	t.Run("should keep history as-is without buffered messages", func(t *testing.T) {
		req := require.New(t)
		merged := mergeHistory([]domain.Message{m1, m2}, nil)
		req.Equal([]domain.Message{m1, m2}, merged)
	})

	t.Run("should append buffered messages missing from history", func(t *testing.T) {
		req := require.New(t)
		merged := mergeHistory([]domain.Message{m1, m2}, []domain.Message{m3})
		req.Equal([]domain.Message{m1, m2, m3}, merged)
	})

	t.Run("should drop buffered messages already present in history", func(t *testing.T) {
		req := require.New(t)
		merged := mergeHistory([]domain.Message{m1, m2}, []domain.Message{m2, m3})
		req.Equal([]domain.Message{m1, m2, m3}, merged)
	})

	t.Run("should dedup by server id when available", func(t *testing.T) {
		req := require.New(t)
		inHistory := domain.Message{ID: "42", SenderName: "alice", Content: "one", Timestamp: base}
		echoed := domain.Message{ID: "42", SenderName: "alice", Content: "one", Timestamp: base.Add(time.Millisecond)}
		merged := mergeHistory([]domain.Message{inHistory}, []domain.Message{echoed})
		req.Len(merged, 1)
	})

	t.Run("should count a duplicate within the buffer once", func(t *testing.T) {
		req := require.New(t)
		merged := mergeHistory([]domain.Message{m1}, []domain.Message{m3, m3})
		req.Equal([]domain.Message{m1, m3}, merged)
	})

	t.Run("should lose no message for any number of live arrivals", func(t *testing.T) {
		req := require.New(t)
		history := []domain.Message{m1, m2}
		var buffered []domain.Message
		for k := 0; k < 10; k++ {
			buffered = append(buffered, msg("dave", fmt.Sprintf("live-%d", k), base.Add(time.Duration(k)*time.Second)))
		}
		// Half of the live window also made it into history.
		history = append(history, buffered[:5]...)

		merged := mergeHistory(history, buffered)
		req.Len(merged, 2+10)
		seen := map[string]int{}
		for _, m := range merged {
			seen[m.Identity()]++
		}
		for id, n := range seen {
			req.Equal(1, n, "message %s duplicated", id)
		}
	})
}
