package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuestionMetaKey returns the cache key for a single question's metadata
func (r *CacheKeyStruct) QuestionMetaKey(questionID string) string {
	return fmt.Sprintf("question:%s:meta", questionID)
}

// SessionEventsChannel returns the Redis PubSub channel that mirrors a session's events
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}

// ExamTypeMonitorChannel returns the Redis PubSub channel for completions of an exam type
func (r *CacheKeyStruct) ExamTypeMonitorChannel(examTypeID string) string {
	return fmt.Sprintf("exam_type:%s:monitor", examTypeID)
}

var CacheKey = NewCacheKeyStruct()
