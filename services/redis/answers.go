package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis_models "github.com/Maxapelquist/preparty-social-hub/models/redis"
	redis_utils "github.com/Maxapelquist/preparty-social-hub/services/redis/utils"

	"github.com/redis/go-redis/v9"
)

// Answers of a round stay around for a day, long past any game.
const roundAnswersTTL = 24 * time.Hour

// RecordAnswer stores the first answer a player gives in a round.
// Key format: "game:{id}:round:{n}:answers", one hash field per user.
// Returns false when the player had already answered.
func (rc *RedisClient) RecordAnswer(ctx context.Context, gameID string, round int, answer redis_models.RoundAnswer) (bool, error) {
	key := redis_utils.FormatRoundAnswersKey(gameID, round)
	data, err := json.Marshal(answer)
	if err != nil {
		return false, fmt.Errorf("error marshaling answer: %w", err)
	}

	pipe := rc.client.TxPipeline()
	set := pipe.HSetNX(ctx, key, answer.UserID, data)
	pipe.Expire(ctx, key, roundAnswersTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("error recording answer: %w", err)
	}
	return set.Val(), nil
}

// RoundAnswer returns the player's answer for the round, or nil if there is
// none yet.
func (rc *RedisClient) RoundAnswer(ctx context.Context, gameID string, round int, userID string) (*redis_models.RoundAnswer, error) {
	key := redis_utils.FormatRoundAnswersKey(gameID, round)
	data, err := rc.client.HGet(ctx, key, userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting answer: %w", err)
	}

	var answer redis_models.RoundAnswer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil, fmt.Errorf("error unmarshaling answer: %w", err)
	}
	return &answer, nil
}

// ForgetAnswer drops a recorded answer so the player can answer again.
func (rc *RedisClient) ForgetAnswer(ctx context.Context, gameID string, round int, userID string) error {
	key := redis_utils.FormatRoundAnswersKey(gameID, round)
	if err := rc.client.HDel(ctx, key, userID).Err(); err != nil {
		return fmt.Errorf("error forgetting answer: %w", err)
	}
	return nil
}
