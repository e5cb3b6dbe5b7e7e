package utils

/**
 * Formats the keys and channels used in Redis, so every caller builds them
 * the same way.
 */

import "fmt"

const ChangesChannel = "preparty:changes"

func FormatRoundAnswersKey(gameID string, round int) string {
	return fmt.Sprintf("game:%s:round:%d:answers", gameID, round)
}
