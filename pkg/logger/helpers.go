package logger

import (
	"time"
)

// LogRequest logs a finished HTTP request at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":   method,
		"url":      url,
		"status":   statusCode,
		"duration": duration,
	}

	switch {
	case statusCode >= 500:
		l.WarnWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.DebugWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the outcome of a single post download
func LogDownload(l Logger, poolID, postID, page int, err error) {
	entry := l.WithFields(map[string]interface{}{
		"pool_id": poolID,
		"post_id": postID,
		"page":    page,
	})

	if err != nil {
		entry.WithError(err).Warn("Download failed")
		return
	}
	entry.Info("Downloaded post")
}

// LogRateLimit logs rate limiting events
func LogRateLimit(l Logger, endpoint string, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"wait":     wait,
	}).Debug("Waiting for rate limiter")
}
