package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key holding a student's active login JTI.
func (r *CacheKeyStruct) StudentLoginKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// SessionStartKey returns the cache key for an exam session's start timestamp.
func (r *CacheKeyStruct) SessionStartKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:session_start", studentID, examID)
}

// SessionAnswersKey returns the cache key for a session's autosaved answers.
func (r *CacheKeyStruct) SessionAnswersKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:answers", studentID, examID)
}

// SessionFlagsKey returns the cache key for a session's flagged questions.
func (r *CacheKeyStruct) SessionFlagsKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:flags", studentID, examID)
}

// SessionProgressKey returns the cache key for a session's progress snapshot
// (current index, remaining time, anti-cheat counters).
func (r *CacheKeyStruct) SessionProgressKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:progress", studentID, examID)
}

// SessionSubmittedKey returns the cache key marking that a session's
// terminal submission was accepted. Used as an idempotency latch.
func (r *CacheKeyStruct) SessionSubmittedKey(sessionID string) string {
	return fmt.Sprintf("session:%s:submitted", sessionID)
}

// ExamPaperKey returns the cache key for an exam's student-facing paper.
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// ExamDurationKey returns the cache key for an exam's duration.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

// ExamAnswerKey returns the cache key for an exam's answer key.
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam's
// live integrity event feed.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
