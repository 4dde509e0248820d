package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/config"
	"classroll/internal/httpmiddleware"
	"classroll/internal/lesson"
	"classroll/internal/metrics"
	"classroll/internal/qr"
	"classroll/internal/queue"
	"classroll/internal/store"
	"classroll/internal/token"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.EnsureSchema(context.Background(), db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classroll:scans")
	}

	lessons := lesson.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)
	issuer := token.NewIssuer(lessons)
	marker := attendance.NewMarker(lessons, records)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Identity lives elsewhere; this endpoint only exchanges a user id and
	// role for signed tokens so the rest of the API can enforce roles.
	r.POST("/v1/users/register", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Role   string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != auth.RoleTeacher && req.Role != auth.RoleStudent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be teacher or student"})
			return
		}

		tokens, err := auth.Issue(req.UserID, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	teacherGroup := authGroup.Group("", auth.RequireRole(auth.RoleTeacher))

	teacherGroup.POST("/lessons", func(c *gin.Context) {
		var req struct {
			Title       string    `json:"title" binding:"required"`
			Description string    `json:"description"`
			ScheduledAt time.Time `json:"scheduled_at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		created, err := lessons.Create(c.Request.Context(), lesson.Lesson{
			Title:       req.Title,
			Description: req.Description,
			ScheduledAt: req.ScheduledAt,
			TeacherID:   auth.ClaimsFrom(c).Subject,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	authGroup.GET("/lessons", func(c *gin.Context) {
		limit, offset := intQuery(c, "limit", 50), intQuery(c, "offset", 0)
		list, err := lessons.List(c.Request.Context(), c.Query("teacher_id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lessons": list})
	})

	// Issue (or re-issue) the attendance token. The overwrite is
	// unconditional: every previously rendered QR code for this lesson stops
	// working the moment this returns.
	teacherGroup.POST("/lessons/:id/token", func(c *gin.Context) {
		les, ok := ownedLesson(c, lessons)
		if !ok {
			return
		}

		payload, err := issuer.Issue(c.Request.Context(), les.ID, les.Title)
		if err != nil {
			if errors.Is(err, lesson.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "lesson_not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "retryable": true})
			return
		}
		metrics.TokensIssuedTotal.Inc()
		c.JSON(http.StatusCreated, gin.H{"lesson_id": les.ID, "payload": payload})
	})

	// The renderer's whole contract is "render exactly this string".
	authGroup.GET("/lessons/:id/qr.png", func(c *gin.Context) {
		les, err := lessons.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, lesson.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "lesson_not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "retryable": true})
			return
		}
		if les.ActiveToken == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active token issued"})
			return
		}
		png, err := qr.PNG(*les.ActiveToken, cfg.QRSizePixels)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	authGroup.POST("/scans", auth.RequireRole(auth.RoleStudent), func(c *gin.Context) {
		var req struct {
			RawText string `json:"raw_text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		studentID := auth.ClaimsFrom(c).Subject
		result, err := marker.Mark(c.Request.Context(), studentID, req.RawText)
		if err != nil {
			reason, status := scanRejection(err)
			metrics.ScansTotal.WithLabelValues(reason).Inc()
			c.JSON(status, gin.H{"error": reason, "retryable": status >= 500})
			return
		}

		metrics.ScansTotal.WithLabelValues(string(result.Status)).Inc()
		if result.Status == attendance.StatusRecorded {
			if msg, err := queue.NewAttendanceMessage(queue.AttendanceRecorded{
				RecordID:  result.RecordID,
				LessonID:  result.LessonID,
				StudentID: studentID,
			}); err == nil {
				if err := q.Publish(c.Request.Context(), msg); err != nil {
					log.Printf("queue publish failed: %v", err)
				}
			}
			c.JSON(http.StatusCreated, result)
			return
		}
		// already_marked: informational, same shape as success.
		c.JSON(http.StatusOK, result)
	})

	teacherGroup.GET("/lessons/:id/records", func(c *gin.Context) {
		les, ok := ownedLesson(c, lessons)
		if !ok {
			return
		}
		limit, offset := intQuery(c, "limit", 50), intQuery(c, "offset", 0)
		list, err := records.ListByLesson(c.Request.Context(), les.ID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		live, _ := redisClient.LiveAttendance(c.Request.Context(), les.ID)
		c.JSON(http.StatusOK, gin.H{"records": list, "live_count": live})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// scanRejection maps marker errors to a reason code and HTTP status. The
// three validation rejections are terminal; everything else is a transient
// storage problem the student may retry by re-scanning.
func scanRejection(err error) (string, int) {
	switch {
	case errors.Is(err, attendance.ErrInvalidCode):
		return "invalid_qr_code", http.StatusUnprocessableEntity
	case errors.Is(err, lesson.ErrNotFound):
		return "lesson_not_found", http.StatusNotFound
	case errors.Is(err, attendance.ErrStaleToken):
		return "stale_or_invalid_token", http.StatusConflict
	default:
		return "storage_error", http.StatusInternalServerError
	}
}

// ownedLesson loads the :id lesson and enforces that the caller teaches it.
func ownedLesson(c *gin.Context, lessons *lesson.Repository) (*lesson.Lesson, bool) {
	les, err := lessons.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, lesson.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lesson_not_found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "retryable": true})
		}
		return nil, false
	}
	if claims := auth.ClaimsFrom(c); les.TeacherID != "" && les.TeacherID != claims.Subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "not lesson teacher"})
		return nil, false
	}
	return les, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
