// Package faststore is the authoritative in-flight state store for a
// live session: current session/question pointers, the leaderboard
// sorted set, rate-limit keys and reconnect hot records. Redis backs it
// in production; internal/faststore/faststore_test.go exercises the same
// interface against miniredis.
package faststore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/model"
)

// Store wraps a redis.Client with the key layout used by the session
// actor, submission pipeline, scoring and recovery subsystems.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func sessionStateKey(sessionID string) string     { return fmt.Sprintf("session:%s:state", sessionID) }
func leaderboardKey(sessionID string) string      { return fmt.Sprintf("session:%s:leaderboard", sessionID) }
func timerKey(sessionID string) string            { return fmt.Sprintf("session:%s:timer", sessionID) }
func bannedIPsKey(sessionID string) string        { return fmt.Sprintf("session:%s:banned_ips", sessionID) }
func answerBufferKey(sessionID string) string     { return fmt.Sprintf("session:%s:answers:buffer", sessionID) }
func participantSessionKey(pid string) string     { return fmt.Sprintf("participant:%s:session", pid) }
func participantFocusKey(pid string) string       { return fmt.Sprintf("participant:%s:focus", pid) }
func rateLimitKey(pid, questionID string) string  { return fmt.Sprintf("ratelimit:answer:%s:%s", pid, questionID) }
func joinCodeKey(code string) string              { return fmt.Sprintf("joincode:%s", code) }
func scoringQueueKey(sessionID string) string     { return fmt.Sprintf("session:%s:scoring", sessionID) }
func participantHotKey(sessionID, pid string) string {
	return fmt.Sprintf("session:%s:participant:%s", sessionID, pid)
}
func pendingAnswersKey(sessionID string) string { return fmt.Sprintf("session:%s:answers:pending", sessionID) }
func answeredCountKey(sessionID, questionID string) string {
	return fmt.Sprintf("session:%s:question:%s:answered_count", sessionID, questionID)
}

// SaveSession writes the full session struct as the authoritative copy.
func (s *Store) SaveSession(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionStateKey(sess.ID), data, 0).Err()
}

// GetSession reads the authoritative in-flight session, or redis.Nil if
// none exists (caller should collapse that to apperr.SessionNotFound).
func (s *Store) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	data, err := s.rdb.Get(ctx, sessionStateKey(sessionID)).Bytes()
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes the in-flight session record.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionStateKey(sessionID)).Err()
}

// MapJoinCode associates a join code with a session ID.
func (s *Store) MapJoinCode(ctx context.Context, code, sessionID string) error {
	return s.rdb.Set(ctx, joinCodeKey(code), sessionID, 0).Err()
}

// ResolveJoinCode returns the session ID for a join code.
func (s *Store) ResolveJoinCode(ctx context.Context, code string) (string, error) {
	return s.rdb.Get(ctx, joinCodeKey(code)).Result()
}

// SaveParticipant writes a participant's hot record, TTLed to the
// reconnect grace window so a participant who never comes back is
// cleaned up automatically (spec.md §4.H).
func (s *Store) SaveParticipant(ctx context.Context, sessionID string, p *model.Participant, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, participantHotKey(sessionID, p.ID), data, ttl)
	pipe.Set(ctx, participantSessionKey(p.ID), sessionID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// GetParticipant reads a participant's hot record.
func (s *Store) GetParticipant(ctx context.Context, sessionID, participantID string) (*model.Participant, error) {
	data, err := s.rdb.Get(ctx, participantHotKey(sessionID, participantID)).Bytes()
	if err != nil {
		return nil, err
	}
	var p model.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RefreshParticipantTTL extends a disconnected participant's grace window.
func (s *Store) RefreshParticipantTTL(ctx context.Context, sessionID, participantID string, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.Expire(ctx, participantHotKey(sessionID, participantID), ttl)
	pipe.Expire(ctx, participantSessionKey(participantID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// SessionIDForParticipant finds which session a participant belongs to,
// from the participant-to-session key that SaveParticipant writes.
func (s *Store) SessionIDForParticipant(ctx context.Context, participantID string) (string, error) {
	return s.rdb.Get(ctx, participantSessionKey(participantID)).Result()
}

// UpdateLeaderboard sets a participant's composite score in the sorted set.
func (s *Store) UpdateLeaderboard(ctx context.Context, sessionID, participantID string, score float64) error {
	return s.rdb.ZAdd(ctx, leaderboardKey(sessionID), &redis.Z{Score: score, Member: participantID}).Err()
}

// RemoveFromLeaderboard drops a participant from the sorted set, used
// when a participant is kicked or banned mid-session.
func (s *Store) RemoveFromLeaderboard(ctx context.Context, sessionID, participantID string) error {
	return s.rdb.ZRem(ctx, leaderboardKey(sessionID), participantID).Err()
}

// IncrAnsweredCount atomically bumps the accepted-answer counter for a
// question, used by the submission pipeline to report answer_count_updated
// without waiting on scoring to complete.
func (s *Store) IncrAnsweredCount(ctx context.Context, sessionID, questionID string) (int64, error) {
	return s.rdb.Incr(ctx, answeredCountKey(sessionID, questionID)).Result()
}

// TopLeaderboard returns the top N participant IDs with scores,
// descending, ties broken implicitly by ZREVRANGE's stable member order
// (model.Participant.LeaderboardScore already subtracts time so ties are
// rare enough not to matter here).
func (s *Store) TopLeaderboard(ctx context.Context, sessionID string, n int64) ([]redis.Z, error) {
	return s.rdb.ZRevRangeWithScores(ctx, leaderboardKey(sessionID), 0, n-1).Result()
}

// Rank returns a participant's 0-based rank (descending score).
func (s *Store) Rank(ctx context.Context, sessionID, participantID string) (int64, error) {
	return s.rdb.ZRevRank(ctx, leaderboardKey(sessionID), participantID).Result()
}

// TryClaimAnswerSlot atomically reserves the dedup/rate-limit key for one
// participant answering one question, returning false if it already
// exists (spec.md §4.F step 6 / I2 at most one answer per participant
// per question).
func (s *Store) TryClaimAnswerSlot(ctx context.Context, participantID, questionID string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, rateLimitKey(participantID, questionID), 1, ttl).Result()
}

// ReleaseAnswerSlot undoes a claim, used when validation fails after the
// slot was claimed but before the answer is durably recorded.
func (s *Store) ReleaseAnswerSlot(ctx context.Context, participantID, questionID string) error {
	return s.rdb.Del(ctx, rateLimitKey(participantID, questionID)).Err()
}

// BanIP marks an IP as banned for a session.
func (s *Store) BanIP(ctx context.Context, sessionID, ip string) error {
	return s.rdb.SAdd(ctx, bannedIPsKey(sessionID), ip).Err()
}

// IsIPBanned reports whether an IP has been banned in a session.
func (s *Store) IsIPBanned(ctx context.Context, sessionID, ip string) (bool, error) {
	return s.rdb.SIsMember(ctx, bannedIPsKey(sessionID), ip).Result()
}

// BufferAnswer appends a scored answer to the session's answer buffer
// list (spec.md §4.F backpressure design). No background loop in this
// module drains the list; DrainAnswerBuffer empties it on demand.
func (s *Store) BufferAnswer(ctx context.Context, sessionID string, answer *model.Answer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, answerBufferKey(sessionID), data).Err()
}

// DrainAnswerBuffer pops and returns every buffered answer.
func (s *Store) DrainAnswerBuffer(ctx context.Context, sessionID string) ([]*model.Answer, error) {
	key := answerBufferKey(sessionID)
	items, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := s.rdb.LTrim(ctx, key, int64(len(items)), -1).Err(); err != nil {
		return nil, err
	}

	answers := make([]*model.Answer, 0, len(items))
	for _, raw := range items {
		var a model.Answer
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, err
		}
		answers = append(answers, &a)
	}
	return answers, nil
}

// PutPendingAnswer stores the preliminary (unscored) answer accepted by
// the submission pipeline, keyed by answer ID, until the scoring worker
// consumes and replaces it with a finalized copy in the flush buffer.
func (s *Store) PutPendingAnswer(ctx context.Context, sessionID string, answer *model.Answer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, pendingAnswersKey(sessionID), answer.ID, data).Err()
}

// GetPendingAnswer reads a preliminary answer by ID, or redis.Nil if the
// scoring worker already consumed it (should not happen under I2).
func (s *Store) GetPendingAnswer(ctx context.Context, sessionID, answerID string) (*model.Answer, error) {
	data, err := s.rdb.HGet(ctx, pendingAnswersKey(sessionID), answerID).Bytes()
	if err != nil {
		return nil, err
	}
	var a model.Answer
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeletePendingAnswer removes a preliminary answer once scoring commits
// the finalized record to the flush buffer.
func (s *Store) DeletePendingAnswer(ctx context.Context, sessionID, answerID string) error {
	return s.rdb.HDel(ctx, pendingAnswersKey(sessionID), answerID).Err()
}

// PushScoringWork enqueues an answer ID onto the session's scoring work
// queue (spec.md §4.F: "publish a scoring work item on
// session:<s>:scoring"). A list (not pub/sub) backs this so a scoring
// consumer that is briefly busy never loses a work item.
func (s *Store) PushScoringWork(ctx context.Context, sessionID, answerID string) error {
	return s.rdb.RPush(ctx, scoringQueueKey(sessionID), answerID).Err()
}

// PopScoringWork blocks up to timeout for the next answer ID to score,
// returning ("", redis.Nil) on timeout with nothing queued.
func (s *Store) PopScoringWork(ctx context.Context, sessionID string, timeout time.Duration) (string, error) {
	res, err := s.rdb.BLPop(ctx, timeout, scoringQueueKey(sessionID)).Result()
	if err != nil {
		return "", err
	}
	// BLPop returns [key, value].
	if len(res) < 2 {
		return "", redis.Nil
	}
	return res[1], nil
}

// SetFocusLost records a participant's focus-monitoring state for exam
// mode (spec.md ExamSettings.FocusMonitoringEnabled).
func (s *Store) SetFocusLost(ctx context.Context, participantID string, lost bool, ttl time.Duration) error {
	if !lost {
		return s.rdb.Del(ctx, participantFocusKey(participantID)).Err()
	}
	return s.rdb.Set(ctx, participantFocusKey(participantID), time.Now().Unix(), ttl).Err()
}
