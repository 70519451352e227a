package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timetrack/internal/attendance"
	"timetrack/internal/auth"
	"timetrack/internal/batch"
	"timetrack/internal/config"
	"timetrack/internal/httpmiddleware"
	"timetrack/internal/metrics"
	"timetrack/internal/model"
	"timetrack/internal/queue"
	"timetrack/internal/report"
	"timetrack/internal/roster"
	"timetrack/internal/store"
)

// Server wires the domain services into gin handlers.
type Server struct {
	cfg        config.App
	db         *store.DB
	redis      *store.Redis
	rosterRepo *roster.Repository
	rosterSvc  *roster.Service
	records    *attendance.Repository
	resolver   *attendance.Resolver
	aggregator *report.Aggregator
	mutator    *batch.Mutator
	admins     *auth.Repository
	queue      queue.Queue
}

// NewServer builds a server over an opened store. redisClient and q may be
// nil; the recent-scan feed degrades to unavailable.
func NewServer(cfg config.App, db *store.DB, redisClient *store.Redis, q queue.Queue) *Server {
	rosterRepo := roster.NewRepository(db)
	records := attendance.NewRepository(db)
	return &Server{
		cfg:        cfg,
		db:         db,
		redis:      redisClient,
		rosterRepo: rosterRepo,
		rosterSvc:  roster.NewService(rosterRepo),
		records:    records,
		resolver:   attendance.NewResolver(rosterRepo, records),
		aggregator: report.NewAggregator(rosterRepo, records),
		mutator:    batch.NewMutator(db),
		admins:     auth.NewRepository(db),
		queue:      q,
	}
}

// SeedAdmin ensures the initial admin account exists.
func (s *Server) SeedAdmin(ctx context.Context) error {
	return s.admins.EnsureDefault(ctx, s.cfg.AdminUser, s.cfg.AdminPassword)
}

// Router assembles middleware and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(s.cfg.RateLimitPerMin, s.cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.handleHealth)
	r.POST("/v1/auth/login", s.handleLogin)

	authed := r.Group("/v1", auth.RequireAuth(s.cfg.JWTSigningKey, s.cfg.JWTIssuer))
	authed.POST("/scans", s.handleScan)
	authed.GET("/scans/recent", s.handleRecentScans)
	authed.GET("/students", s.handleListStudents)
	authed.GET("/students/:id", s.handleGetStudent)
	authed.GET("/reports/daily", s.handleDailyReport)
	authed.GET("/reports/stats", s.handleStats)
	authed.GET("/counts", s.handleCounts)

	admin := authed.Group("", auth.RequireRole("admin"))
	admin.POST("/students", s.handleCreateStudent)
	admin.POST("/students/import", s.handleImportStudents)
	admin.PUT("/students/:id", s.handleUpdateStudent)
	admin.DELETE("/students/:id", s.handleDeleteStudent)
	admin.PUT("/records/:id", s.handleEditRecord)
	admin.POST("/batch/semester-rollover", s.handleRollover)
	admin.DELETE("/batch/records", s.handlePurgeAll)
	admin.DELETE("/batch/records/range", s.handlePurgeRange)
	admin.POST("/batch/backfill-school", s.handleBackfill)

	return r
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrUnknownStudent):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrInactiveStudent):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		msg = "store failure"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	dbHealthy := s.db.Healthy(c.Request.Context())
	redisHealthy := s.redis.Healthy(c.Request.Context())
	status := http.StatusOK
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	admin, err := s.admins.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		abortWith(c, err)
		return
	}
	tokens, err := auth.Issue(admin.Username, "admin", s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (s *Server) handleScan(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.resolver.ResolveScan(c.Request.Context(), req.StudentID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrUnknownStudent):
			metrics.ScansTotal.WithLabelValues("none", "unknown_student").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown student"})
		case errors.Is(err, attendance.ErrInactiveStudent):
			metrics.ScansTotal.WithLabelValues("none", "inactive_student").Inc()
			c.JSON(http.StatusForbidden, gin.H{"error": "inactive student", "student": result.Student})
		default:
			metrics.ScansTotal.WithLabelValues("none", "store_failure").Inc()
			abortWith(c, err)
		}
		return
	}

	metrics.ScansTotal.WithLabelValues(string(result.Record.Type), "ok").Inc()
	if s.queue != nil {
		evt := queue.ScanEvent{
			RecordID:  result.Record.ID,
			StudentID: result.Student.StudentID,
			Name:      result.Student.FirstName + " " + result.Student.LastName,
			Type:      string(result.Record.Type),
			School:    string(result.Student.School),
			Timestamp: result.Record.Timestamp,
		}
		if err := s.queue.Publish(c.Request.Context(), evt); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) handleRecentScans(c *gin.Context) {
	if s.redis == nil || s.redis.Client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recent scan feed not configured"})
		return
	}
	events, err := queue.RecentScans(c.Request.Context(), s.redis.Client, s.cfg.RecentScansMax)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": events})
}

func (s *Server) handleCreateStudent(c *gin.Context) {
	var st model.Student
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.rosterSvc.Create(c.Request.Context(), st)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleImportStudents(c *gin.Context) {
	var students []model.Student
	if err := c.ShouldBindJSON(&students); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added, err := s.rosterSvc.BulkImport(c.Request.Context(), students)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "added": added})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": added})
}

func (s *Server) handleListStudents(c *gin.Context) {
	filter := roster.ListFilter{
		School:   model.School(c.Query("school")),
		Status:   model.Status(c.Query("status")),
		Program:  c.Query("program"),
		Semester: c.Query("semester"),
		Limit:    intQuery(c, "limit", 100),
		Offset:   intQuery(c, "offset", 0),
	}
	students, err := s.rosterRepo.List(c.Request.Context(), filter)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (s *Server) handleGetStudent(c *gin.Context) {
	st, err := s.rosterRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleUpdateStudent(c *gin.Context) {
	var st model.Student
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st.ID = c.Param("id")
	if err := s.rosterSvc.Update(c.Request.Context(), st); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleDeleteStudent(c *gin.Context) {
	if err := s.rosterRepo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handleEditRecord(c *gin.Context) {
	var req struct {
		Timestamp time.Time `json:"timestamp" binding:"required"`
		Type      string    `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	typ := model.RecordType(req.Type)
	if typ != model.RecordIn && typ != model.RecordOut {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be in or out"})
		return
	}
	rec, err := s.records.Edit(c.Request.Context(), c.Param("id"), req.Timestamp, typ)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDailyReport(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = model.LocalDate(time.Now())
	}
	school := model.School(c.DefaultQuery("school", string(model.SchoolHigherEducation)))
	var typeFilter model.RecordType
	switch c.Query("type") {
	case "":
	case "in":
		typeFilter = model.RecordIn
	case "out":
		typeFilter = model.RecordOut
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be in or out"})
		return
	}
	entries, err := s.aggregator.DailyAttendance(c.Request.Context(), date, school, typeFilter)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "school": school, "entries": entries})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.aggregator.Statistics(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCounts(c *gin.Context) {
	ctx := c.Request.Context()
	students, err := s.rosterRepo.Count(ctx)
	if err != nil {
		abortWith(c, err)
		return
	}
	higher, err := s.rosterRepo.CountBySchool(ctx, model.SchoolHigherEducation)
	if err != nil {
		abortWith(c, err)
		return
	}
	basic, err := s.rosterRepo.CountBySchool(ctx, model.SchoolBasicEducation)
	if err != nil {
		abortWith(c, err)
		return
	}
	records, err := s.records.Count(ctx)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"students":         students,
		"higher_education": higher,
		"basic_education":  basic,
		"time_records":     records,
	})
}

func (s *Server) handleRollover(c *gin.Context) {
	var req struct {
		FromSemester string `json:"from_semester" binding:"required"`
		ToSemester   string `json:"to_semester" binding:"required"`
		School       string `json:"school" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := s.mutator.RolloverSemester(c.Request.Context(), req.FromSemester, req.ToSemester, model.School(req.School))
	if err != nil {
		abortWith(c, err)
		return
	}
	metrics.BatchRows.WithLabelValues("semester_rollover").Add(float64(n))
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

func (s *Server) handlePurgeAll(c *gin.Context) {
	n, err := s.mutator.PurgeAllRecords(c.Request.Context(), model.School(c.Query("school")))
	if err != nil {
		abortWith(c, err)
		return
	}
	metrics.BatchRows.WithLabelValues("purge_all").Add(float64(n))
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

func (s *Server) handlePurgeRange(c *gin.Context) {
	n, err := s.mutator.PurgeRecordsInRange(c.Request.Context(),
		c.Query("start"), c.Query("end"), model.School(c.Query("school")))
	if err != nil {
		abortWith(c, err)
		return
	}
	metrics.BatchRows.WithLabelValues("purge_range").Add(float64(n))
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

func (s *Server) handleBackfill(c *gin.Context) {
	n, err := s.mutator.BackfillSchoolField(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	metrics.BatchRows.WithLabelValues("backfill_school").Add(float64(n))
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// corsMiddleware allows browser scanner frontends on other origins.
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
