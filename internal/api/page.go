package api

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/EbinDavis252/Aqua-risk/internal/features"
	"github.com/EbinDavis252/Aqua-risk/internal/risk"
)

//go:embed templates/*.html
var templatesFS embed.FS

const pageName = "index.html"

func pageTemplate() (*template.Template, error) {
	return template.New(pageName).Funcs(template.FuncMap{
		"percent": risk.Percent,
		"band":    risk.BandFor,
		"inr":     formatINR,
		"num": func(v float64) string {
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
	}).ParseFS(templatesFS, "templates/*.html")
}

// fieldView is one numeric input with its bound and current value.
type fieldView struct {
	features.Bound
	Value float64
}

type resultView struct {
	Response   AssessmentResponse
	LoanAmount int
	LoanTerm   int
}

type logRow struct {
	FarmerID      string
	FinancialRisk float64
	TechnicalRisk float64
	ResultTime    string
}

type pageView struct {
	Form            AssessmentRequest
	FarmerFields    []fieldView
	WaterFields     []fieldView
	Regions         []string
	FarmTypes       []string
	PreviousDefault []string
	Result          *resultView
	Error           string
	Logs            []logRow
	LogError        string
}

func (s *Server) handleIndex(c *gin.Context) {
	form := requestFromFeatures(features.DefaultRequest())
	s.renderPage(c, http.StatusOK, form, nil, "")
}

func (s *Server) handleAssessForm(c *gin.Context) {
	var form AssessmentRequest
	if blank := blankNumbers(c); len(blank) > 0 {
		s.renderPage(c, http.StatusBadRequest, requestFromFeatures(features.DefaultRequest()), nil,
			"missing fields: "+strings.Join(blank, ", "))
		return
	}
	if err := c.ShouldBind(&form); err != nil {
		s.renderPage(c, http.StatusBadRequest, mergeDefaults(form), nil, err.Error())
		return
	}
	req, err := form.ToFeatures()
	if err != nil {
		s.renderPage(c, http.StatusBadRequest, form, nil, err.Error())
		return
	}

	result, err := s.assessor.Assess(c.Request.Context(), req)
	if err != nil {
		var perr *risk.PersistError
		if errors.As(err, &perr) {
			view := &resultView{Response: FromResult(perr.Result, false), LoanAmount: req.LoanAmount, LoanTerm: req.LoanTerm}
			s.renderPage(c, http.StatusInternalServerError, form, view, "Assessment could not be recorded: "+perr.Err.Error())
			return
		}
		s.renderPage(c, http.StatusInternalServerError, form, nil, err.Error())
		return
	}

	resp := FromResult(result, true)
	s.notifier.Broadcast(StreamEvent{Type: "assessment", Assessment: &resp})
	s.renderPage(c, http.StatusOK, form, &resultView{Response: resp, LoanAmount: req.LoanAmount, LoanTerm: req.LoanTerm}, "")
}

func (s *Server) renderPage(c *gin.Context, status int, form AssessmentRequest, result *resultView, errMsg string) {
	view := pageView{
		Form:            form,
		FarmerFields:    fields(features.FarmerBounds(), form),
		WaterFields:     fields(features.WaterBounds(), form),
		Regions:         regionNames(),
		FarmTypes:       farmTypeNames(),
		PreviousDefault: []string{"No", "Yes"},
		Result:          result,
		Error:           errMsg,
	}
	rows, err := s.db.ListAll()
	if err != nil {
		view.LogError = err.Error()
	}
	for _, row := range rows {
		view.Logs = append(view.Logs, logRow(row))
	}
	c.HTML(status, pageName, view)
}

func fields(bounds []features.Bound, form AssessmentRequest) []fieldView {
	values := form.numbers()
	out := make([]fieldView, 0, len(bounds))
	for _, b := range bounds {
		v := b.Default
		if p := values[b.Field]; p != nil {
			v = *p
		}
		out = append(out, fieldView{Bound: b, Value: v})
	}
	return out
}

// blankNumbers lists numeric form inputs that were submitted empty. Form
// binding reads an empty number as zero.
func blankNumbers(c *gin.Context) []string {
	var blank []string
	for _, b := range append(features.FarmerBounds(), features.WaterBounds()...) {
		if v, ok := c.GetPostForm(b.Field); ok && strings.TrimSpace(v) == "" {
			blank = append(blank, b.Field)
		}
	}
	return blank
}

// mergeDefaults fills blank categorical choices so the form re-renders
// with a valid selection.
func mergeDefaults(form AssessmentRequest) AssessmentRequest {
	def := requestFromFeatures(features.DefaultRequest())
	if form.Region == "" {
		form.Region = def.Region
	}
	if form.FarmType == "" {
		form.FarmType = def.FarmType
	}
	if form.PreviousDefault == "" {
		form.PreviousDefault = def.PreviousDefault
	}
	return form
}

// formatINR renders whole rupees with Indian digit grouping, e.g. 8000000 -> "₹80,00,000".
func formatINR(amount int) string {
	digits := decimal.NewFromInt(int64(amount)).Abs().StringFixed(0)
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	if len(digits) <= 3 {
		return sign + "₹" + digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return sign + "₹" + strings.Join(groups, ",") + "," + tail
}
