package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/EbinDavis252/Aqua-risk/internal/events"
	"github.com/EbinDavis252/Aqua-risk/internal/features"
	"github.com/EbinDavis252/Aqua-risk/internal/model"
	"github.com/EbinDavis252/Aqua-risk/internal/risk"
	"github.com/EbinDavis252/Aqua-risk/internal/store"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	SilentDB       bool
	AllowedOrigins []string
	Sequential     bool
	Models         *model.Models
	Publisher      events.Publisher
	// Now overrides the record timestamp clock.
	Now func() time.Time
}

// Server wires HTTP handlers with persistence and scoring.
type Server struct {
	db             *store.Database
	models         *model.Models
	assessor       *risk.Assessor
	allowedOrigins []string
	notifier       *AssessmentNotifier
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	if cfg.Models == nil {
		return nil, errors.New("models required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	assessor, err := risk.NewAssessor(cfg.Models, db, risk.Options{
		Sequential: cfg.Sequential,
		Publisher:  cfg.Publisher,
		Now:        cfg.Now,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("assessor: %w", err)
	}

	if count, err := db.CountOutputs(); err == nil {
		logrus.WithFields(logrus.Fields{
			"db_path": cfg.DBPath,
			"records": count,
		}).Info("assessment log opened")
	}

	return &Server{
		db:             db,
		models:         cfg.Models,
		assessor:       assessor,
		allowedOrigins: cfg.AllowedOrigins,
		notifier:       NewAssessmentNotifier(),
	}, nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	s.assessor.Wait()
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	tmpl, err := pageTemplate()
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.handleIndex)
	r.POST("/assess", s.handleAssessForm)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/assessments", s.handleAssess)
		api.GET("/assessments", s.handleListAssessments)
		api.GET("/assessments/export.csv", s.handleExportCSV)
		api.GET("/assessments/export.json", s.handleExportJSON)
		api.GET("/assessments/stream", s.handleStream)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.db.Ping(); err != nil {
		s.renderError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stream_clients": s.notifier.Clients()})
}

func (s *Server) handleConfig(c *gin.Context) {
	count, err := s.db.CountOutputs()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ConfigResponse{
		Regions:         regionNames(),
		FarmTypes:       farmTypeNames(),
		PreviousDefault: []string{"No", "Yes"},
		FarmerBounds:    features.FarmerBounds(),
		WaterBounds:     features.WaterBounds(),
		Features: map[string][]string{
			"financial": features.FinancialFeatureNames,
			"technical": features.TechnicalFeatureNames,
		},
		Models:  s.models.Describe(),
		Records: count,
	})
}

func (s *Server) handleAssess(c *gin.Context) {
	var payload AssessmentRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	req, err := payload.ToFeatures()
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.assessor.Assess(c.Request.Context(), req)
	if err != nil {
		var perr *risk.PersistError
		if errors.As(err, &perr) {
			resp := FromResult(perr.Result, false)
			resp.Error = err.Error()
			c.JSON(http.StatusInternalServerError, resp)
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	resp := FromResult(result, true)
	s.notifier.Broadcast(StreamEvent{Type: "assessment", Assessment: &resp})
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleListAssessments(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}
	offset := page * pageSize

	rows, total, err := s.db.ListOutputs(store.OutputQuery{
		FarmerID: firstNonEmpty(c.Query("farmer_id"), c.Query("farmerId")),
		Offset:   offset,
		Limit:    pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: toDTOs(rows), Total: total})
}

func (s *Server) handleExportCSV(c *gin.Context) {
	rows, _, err := s.db.ListOutputs(store.OutputQuery{
		FarmerID: firstNonEmpty(c.Query("farmer_id"), c.Query("farmerId")),
		Limit:    -1,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=model_outputs.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	headers := []string{"farmer_id", "financial_risk", "technical_risk", "result_time"}
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, row := range rows {
		line := []string{
			row.FarmerID,
			strconv.FormatFloat(row.FinancialRisk, 'f', -1, 64),
			strconv.FormatFloat(row.TechnicalRisk, 'f', -1, 64),
			row.ResultTime,
		}
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	rows, _, err := s.db.ListOutputs(store.OutputQuery{
		FarmerID: firstNonEmpty(c.Query("farmer_id"), c.Query("farmerId")),
		Limit:    -1,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=model_outputs.json")
	c.JSON(http.StatusOK, toDTOs(rows))
}

func (s *Server) handleStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("assessment websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("assessment websocket closed")
			} else {
				logrus.WithError(err).Warn("assessment websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func toDTOs(rows []store.ModelOutput) []AssessmentDTO {
	dtos := make([]AssessmentDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromRecord(row))
	}
	return dtos
}

func regionNames() []string {
	out := make([]string, 0, len(features.Regions()))
	for _, r := range features.Regions() {
		out = append(out, r.String())
	}
	return out
}

func farmTypeNames() []string {
	out := make([]string, 0, len(features.FarmTypes()))
	for _, f := range features.FarmTypes() {
		out = append(out, f.String())
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
