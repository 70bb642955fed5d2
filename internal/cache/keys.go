package cache

import (
	"fmt"

	"bookswap/internal/domain"
)

// Key layout: chat:<projection>:<scope>. Patterns below exist for bulk
// invalidation of a user's or thread's derived entries.

func MessagesKey(threadID string) string {
	return fmt.Sprintf("chat:messages:%s", threadID)
}

func ThreadsKey(role domain.Role, userID string) string {
	return fmt.Sprintf("chat:threads:%s:%s", role, userID)
}

func ActiveThreadsKey(sellerID string) string {
	return fmt.Sprintf("chat:threads_active:%s:%s", domain.RoleSeller, sellerID)
}

func UnreadKey(role domain.Role, userID string) string {
	return fmt.Sprintf("chat:unread:%s:%s", role, userID)
}

// UserPattern matches every projection scoped to the user in the given role
func UserPattern(role domain.Role, userID string) string {
	return fmt.Sprintf("chat:*:%s:%s", role, userID)
}
