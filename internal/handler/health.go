package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BreakerState is the slice of a circuit breaker the health check reports.
type BreakerState interface {
	Name() string
	State() string
}

// Health returns a JSON health check response.
// Checks DB and Redis connectivity and lists breaker states. An open breaker
// degrades the report but does not fail it: the API still serves records.
func Health(db *gorm.DB, rdb *redis.Client, breakers ...BreakerState) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		states := make(map[string]string, len(breakers))
		degraded := false
		for _, b := range breakers {
			states[b.Name()] = b.State()
			if b.State() != "closed" {
				degraded = true
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":       status == http.StatusOK,
			"degraded": degraded,
			"db":       dbStatus,
			"redis":    redisStatus,
			"breakers": states,
		})
	}
}
