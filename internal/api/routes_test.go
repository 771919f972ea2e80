package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/EbinDavis252/Aqua-risk/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2025, 4, 2, 8, 15, 30, 0, time.Local)

func stub(p float64) model.Classifier {
	return model.ClassifierFunc(func([]float64) (float64, error) { return p, nil })
}

func newTestServer(t *testing.T, financial, technical model.Classifier) (*Server, *gin.Engine) {
	t.Helper()
	server, err := NewServer(Config{
		DBPath:   filepath.Join(t.TempDir(), "aqua_risk.db"),
		SilentDB: true,
		Models:   &model.Models{Financial: financial, Technical: technical},
		Now:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })
	router, err := server.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return server, router
}

func f001Payload() map[string]any {
	return map[string]any{
		"farmer_id":        "F001",
		"age":              35,
		"income":           50000,
		"loan_amount":      80000,
		"region":           "Andhra",
		"loan_term":        12,
		"previous_default": "No",
		"farm_type":        "Freshwater",
		"temp":             28,
		"ph":               7.5,
		"ammonia":          0.5,
		"do":               5.0,
		"turbidity":        3,
	}
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAssessRecordsAndLists(t *testing.T) {
	_, router := newTestServer(t, stub(0.2), stub(0.4))

	rec := postJSON(t, router, "/api/assessments", f001Payload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp AssessmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FinancialRisk != 0.2 || resp.TechnicalRisk != 0.4 {
		t.Fatalf("unexpected scores %+v", resp)
	}
	if resp.FinancialPercent != "20.0%" || resp.TechnicalPercent != "40.0%" {
		t.Fatalf("unexpected percentages %+v", resp)
	}
	if !resp.Recorded || resp.ResultTime != "2025-04-02 08:15:30" {
		t.Fatalf("unexpected record state %+v", resp)
	}

	list := get(router, "/api/assessments")
	if list.Code != http.StatusOK {
		t.Fatalf("list status %d", list.Code)
	}
	var page ListResponse
	if err := json.Unmarshal(list.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one record got %+v", page)
	}
	if page.Items[0] != (AssessmentDTO{FarmerID: "F001", FinancialRisk: 0.2, TechnicalRisk: 0.4, ResultTime: "2025-04-02 08:15:30"}) {
		t.Fatalf("unexpected record %+v", page.Items[0])
	}
}

func TestAssessRejectsBadInput(t *testing.T) {
	cases := map[string]func(map[string]any){
		"unknown region":    func(p map[string]any) { p["region"] = "Goa" },
		"unknown farm type": func(p map[string]any) { p["farm_type"] = "Marine" },
		"bad default flag":  func(p map[string]any) { p["previous_default"] = "Maybe" },
		"age too high":      func(p map[string]any) { p["age"] = 90 },
		"ph too low":        func(p map[string]any) { p["ph"] = 4.2 },
		"missing farmer":    func(p map[string]any) { delete(p, "farmer_id") },
		"blank farmer":      func(p map[string]any) { p["farmer_id"] = "   " },
		"wrong type":        func(p map[string]any) { p["age"] = "old" },
		"missing ammonia":   func(p map[string]any) { delete(p, "ammonia") },
		"missing turbidity": func(p map[string]any) { delete(p, "turbidity") },
		"null loan term":    func(p map[string]any) { p["loan_term"] = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			server, router := newTestServer(t, stub(0.2), stub(0.4))
			payload := f001Payload()
			mutate(payload)
			rec := postJSON(t, router, "/api/assessments", payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
			count, err := server.db.CountOutputs()
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if count != 0 {
				t.Fatalf("expected nothing persisted, got %d", count)
			}
		})
	}
}

func TestAssessScoringFailure(t *testing.T) {
	failing := model.ClassifierFunc(func([]float64) (float64, error) {
		return 0, model.ErrFeatureCount
	})
	server, router := newTestServer(t, failing, stub(0.4))
	rec := postJSON(t, router, "/api/assessments", f001Payload())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	count, _ := server.db.CountOutputs()
	if count != 0 {
		t.Fatalf("expected no record after scoring failure, got %d", count)
	}
}

func TestAssessPersistFailureReportsScores(t *testing.T) {
	server, router := newTestServer(t, stub(0.2), stub(0.4))
	if err := server.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	rec := postJSON(t, router, "/api/assessments", f001Payload())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	var resp AssessmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Recorded || resp.FinancialRisk != 0.2 || resp.TechnicalRisk != 0.4 || resp.Error == "" {
		t.Fatalf("expected unrecorded scores with error, got %+v", resp)
	}
}

func TestListAssessmentsFilterAndPaging(t *testing.T) {
	_, router := newTestServer(t, stub(0.2), stub(0.4))
	for _, id := range []string{"F001", "F002", "F001", "F003"} {
		payload := f001Payload()
		payload["farmer_id"] = id
		if rec := postJSON(t, router, "/api/assessments", payload); rec.Code != http.StatusCreated {
			t.Fatalf("seed %s: %d", id, rec.Code)
		}
	}

	var page ListResponse
	rec := get(router, "/api/assessments?farmer_id=F001")
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 F001 records got %+v", page)
	}

	rec = get(router, "/api/assessments?page=1&pageSize=3")
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 1 {
		t.Fatalf("expected last page of 1 got %+v", page)
	}
	if page.Items[0].FarmerID != "F001" {
		t.Fatalf("expected oldest record on last page, got %+v", page.Items[0])
	}
}

func TestExportCSV(t *testing.T) {
	_, router := newTestServer(t, stub(0.123), stub(0.4))
	postJSON(t, router, "/api/assessments", f001Payload())

	rec := get(router, "/api/assessments/export.csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status %d", rec.Code)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %v", records)
	}
	want := []string{"F001", "0.123", "0.4", "2025-04-02 08:15:30"}
	for i, v := range want {
		if records[1][i] != v {
			t.Fatalf("column %d: expected %q got %q", i, v, records[1][i])
		}
	}
}

func TestConfigAndHealth(t *testing.T) {
	_, router := newTestServer(t, stub(0.2), stub(0.4))

	if rec := get(router, "/api/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}

	rec := get(router, "/api/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("config status %d", rec.Code)
	}
	var cfg ConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Join(cfg.Regions, ",") != "Andhra,TamilNadu,Kerala,Karnataka" {
		t.Fatalf("unexpected regions %v", cfg.Regions)
	}
	if len(cfg.Features["financial"]) != 7 || len(cfg.Features["technical"]) != 5 {
		t.Fatalf("unexpected feature names %v", cfg.Features)
	}
	if len(cfg.FarmerBounds) != 4 || len(cfg.WaterBounds) != 5 {
		t.Fatalf("unexpected bounds %+v %+v", cfg.FarmerBounds, cfg.WaterBounds)
	}
}

func TestIndexPage(t *testing.T) {
	_, router := newTestServer(t, stub(0.2), stub(0.4))
	rec := get(router, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("index status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Risk Assessment Form", "Risk Prediction", "Risk Assessment Logs", "TamilNadu", "Brackish", `value="35"`, `value="7.5"`, "No assessments recorded yet."} {
		if !strings.Contains(body, want) {
			t.Fatalf("index page missing %q", want)
		}
	}
}

func TestAssessFormRendersResultsAndLog(t *testing.T) {
	_, router := newTestServer(t, stub(0.2), stub(0.4))

	form := url.Values{}
	for k, v := range map[string]string{
		"farmer_id": "F001", "age": "35", "income": "50000", "loan_amount": "80000",
		"region": "Kerala", "loan_term": "12", "previous_default": "No", "farm_type": "Brackish",
		"temp": "28", "ph": "7.5", "ammonia": "0.5", "do": "5", "turbidity": "3",
	} {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/assess", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"20.0%", "40.0%", "<td>F001</td>", "2025-04-02 08:15:30", "₹80,000", `<option value="Kerala" selected>`} {
		if !strings.Contains(body, want) {
			t.Fatalf("result page missing %q", want)
		}
	}
}

func TestAssessFormRejectsUnknownRegion(t *testing.T) {
	server, router := newTestServer(t, stub(0.2), stub(0.4))
	form := url.Values{
		"farmer_id": {"F001"}, "age": {"35"}, "income": {"50000"}, "loan_amount": {"80000"},
		"region": {"Goa"}, "loan_term": {"12"}, "previous_default": {"No"}, "farm_type": {"Freshwater"},
		"temp": {"28"}, "ph": {"7.5"}, "ammonia": {"0.5"}, "do": {"5"}, "turbidity": {"3"},
	}
	req := httptest.NewRequest(http.MethodPost, "/assess", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unknown region") {
		t.Fatalf("expected error banner, got %s", rec.Body.String())
	}
	if count, _ := server.db.CountOutputs(); count != 0 {
		t.Fatalf("expected nothing persisted, got %d", count)
	}
}

func TestAssessAcceptsExplicitZero(t *testing.T) {
	_, router := newTestServer(t, stub(0.2), stub(0.4))
	payload := f001Payload()
	payload["ammonia"] = 0
	payload["turbidity"] = 0
	rec := postJSON(t, router, "/api/assessments", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAssessFormRejectsMissingNumbers(t *testing.T) {
	cases := map[string]func(url.Values){
		"missing ammonia": func(v url.Values) { v.Del("ammonia") },
		"blank turbidity": func(v url.Values) { v.Set("turbidity", " ") },
		"missing age":     func(v url.Values) { v.Del("age") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			server, router := newTestServer(t, stub(0.2), stub(0.4))
			form := url.Values{
				"farmer_id": {"F001"}, "age": {"35"}, "income": {"50000"}, "loan_amount": {"80000"},
				"region": {"Andhra"}, "loan_term": {"12"}, "previous_default": {"No"}, "farm_type": {"Freshwater"},
				"temp": {"28"}, "ph": {"7.5"}, "ammonia": {"0.5"}, "do": {"5"}, "turbidity": {"3"},
			}
			mutate(form)
			req := httptest.NewRequest(http.MethodPost, "/assess", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if count, _ := server.db.CountOutputs(); count != 0 {
				t.Fatalf("expected nothing persisted, got %d", count)
			}
		})
	}
}

func TestStreamBroadcastsAssessments(t *testing.T) {
	_, router := newTestServer(t, stub(0.2), stub(0.4))
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/assessments/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	body, _ := json.Marshal(f001Payload())
	resp, err := http.Post(srv.URL+"/api/assessments", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event StreamEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != "assessment" || event.Assessment == nil || event.Assessment.FarmerID != "F001" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestStreamReplaysLastEventAndCountsClients(t *testing.T) {
	server, router := newTestServer(t, stub(0.2), stub(0.4))
	srv := httptest.NewServer(router)
	defer srv.Close()

	body, _ := json.Marshal(f001Payload())
	resp, err := http.Post(srv.URL+"/api/assessments", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/assessments/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event StreamEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read replayed event: %v", err)
	}
	if event.Assessment == nil || event.Assessment.FarmerID != "F001" {
		t.Fatalf("unexpected replay %+v", event)
	}

	if n := server.notifier.Clients(); n != 1 {
		t.Fatalf("expected 1 stream client, got %d", n)
	}
	rec := get(router, "/api/healthz")
	if !strings.Contains(rec.Body.String(), `"stream_clients":1`) {
		t.Fatalf("health does not report clients: %s", rec.Body.String())
	}
}

func TestNewServerRequiresModels(t *testing.T) {
	_, err := NewServer(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	if err == nil {
		t.Fatalf("expected error without models")
	}
	_, err = NewServer(Config{Models: &model.Models{Financial: stub(0), Technical: stub(0)}})
	if err == nil {
		t.Fatalf("expected error without db path")
	}
}

func TestFormatINR(t *testing.T) {
	cases := map[int]string{
		0:        "₹0",
		999:      "₹999",
		1000:     "₹1,000",
		80000:    "₹80,000",
		500000:   "₹5,00,000",
		12345678: "₹1,23,45,678",
		-1500:    "-₹1,500",
	}
	for in, want := range cases {
		if got := formatINR(in); got != want {
			t.Fatalf("formatINR(%d) = %q want %q", in, got, want)
		}
	}
}
