package runtime

import (
	"github.com/samber/lo"

	"chatsync/domain"
)

// mergeHistory reconciles a fetched history with live messages that arrived
// during the fetch window: history first, then every buffered message not
// already present in it, in arrival order. Identity is the server id when
// both sides carry one, otherwise sender plus timestamp plus content.
func mergeHistory(history, buffered []domain.Message) []domain.Message {
	if len(buffered) == 0 {
		return history
	}

	seen := lo.SliceToMap(history, func(m domain.Message) (string, struct{}) {
		return m.Identity(), struct{}{}
	})

	missing := lo.Filter(buffered, func(m domain.Message, _ int) bool {
		if _, ok := seen[m.Identity()]; ok {
			return false
		}
		// A duplicate inside the buffer itself counts once.
		seen[m.Identity()] = struct{}{}
		return true
	})

	return append(append([]domain.Message(nil), history...), missing...)
}
