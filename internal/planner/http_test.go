package planner_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"SmartGrocer/internal/catalog"
	"SmartGrocer/internal/planner"
	"SmartGrocer/internal/session"
	"SmartGrocer/internal/share"
)

const testCSV = "Item,Category,StoreA,StoreB\n" +
	"Milk,Dairy,3.50,4.00\n" +
	"Eggs,Dairy,2.50,2.00\n" +
	"Bread,Bakery,,1.50\n"

func newPlannerTS(t *testing.T) *httptest.Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	s := &planner.Server{
		Catalog:    catalog.NewProvider(&catalog.CSVSource{Path: path, Log: zap.NewNop()}),
		Sessions:   session.NewManager(time.Hour),
		Tokens:     session.NewTokenMaker("test-secret"),
		Share:      &share.Builder{BaseURL: "https://grocer.example/plan"},
		Log:        zap.NewNop(),
		SessionTTL: time.Hour,
	}

	h := planner.NewHandler(s, planner.HTTPDeps{
		Log:     zap.NewNop(),
		Service: "planner",
	})

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any, out any, want int) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("%s %s: status=%d want=%d", method, url, resp.StatusCode, want)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func startSession(t *testing.T, base string) string {
	t.Helper()

	resp := doJSON(t, http.MethodGet, base+"/selection", "", nil, nil, 200)
	token := resp.Header.Get("X-Session-Token")
	if token == "" {
		t.Fatalf("no session token issued")
	}
	return token
}

func TestPlanner_ToggleToPlanFlow(t *testing.T) {
	ts := newPlannerTS(t)
	token := startSession(t, ts.URL)

	var toggled map[string]any
	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", token,
		map[string]any{"item_id": 0}, &toggled, 200)
	if toggled["selected"] != true {
		t.Fatalf("toggle response: %#v", toggled)
	}
	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", token,
		map[string]any{"item_id": 1}, nil, 200)

	var p struct {
		Groups []struct {
			Store         string `json:"store"`
			SubtotalCents int64  `json:"subtotal_cents"`
			Items         []struct {
				Name string `json:"name"`
			} `json:"items"`
		} `json:"groups"`
		GrandTotalCents int64 `json:"grand_total_cents"`
		StoresToVisit   int   `json:"stores_to_visit"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/plan", token, nil, &p, 200)

	if p.GrandTotalCents != 550 || p.StoresToVisit != 2 || len(p.Groups) != 2 {
		t.Fatalf("plan = %#v", p)
	}
	if p.Groups[0].Store != "StoreA" || p.Groups[0].SubtotalCents != 350 || p.Groups[0].Items[0].Name != "Milk" {
		t.Fatalf("group[0] = %#v", p.Groups[0])
	}
	if p.Groups[1].Store != "StoreB" || p.Groups[1].SubtotalCents != 200 || p.Groups[1].Items[0].Name != "Eggs" {
		t.Fatalf("group[1] = %#v", p.Groups[1])
	}
}

func TestPlanner_OneStop(t *testing.T) {
	ts := newPlannerTS(t)
	token := startSession(t, ts.URL)

	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", token, map[string]any{"item_id": 0}, nil, 200)
	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", token, map[string]any{"item_id": 1}, nil, 200)

	var resp struct {
		Options []struct {
			Store          string `json:"store"`
			TotalCents     int64  `json:"total_cents"`
			MissingCount   int    `json:"missing_count"`
			ExtraCostCents int64  `json:"extra_cost_cents"`
		} `json:"options"`
		BestTotalCents int64 `json:"best_total_cents"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/plan/onestop", token, nil, &resp, 200)

	if resp.BestTotalCents != 550 || len(resp.Options) != 2 {
		t.Fatalf("onestop = %#v", resp)
	}
	for _, o := range resp.Options {
		if o.TotalCents != 600 || o.MissingCount != 0 || o.ExtraCostCents != 50 {
			t.Fatalf("option = %#v, want total 600 / missing 0 / extra 50", o)
		}
	}
}

func TestPlanner_ToggleUnknownItem(t *testing.T) {
	ts := newPlannerTS(t)
	token := startSession(t, ts.URL)

	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", token, map[string]any{"item_id": 99}, nil, 404)
}

func TestPlanner_ApplyShareCode(t *testing.T) {
	ts := newPlannerTS(t)
	token := startSession(t, ts.URL)

	var resp struct {
		IDs  []int  `json:"ids"`
		Code string `json:"code"`
	}
	doJSON(t, http.MethodPut, ts.URL+"/selection", token,
		map[string]any{"items": "abc,,1,x,99"}, &resp, 200)

	// 1 is the only token that is both parseable and in the catalog.
	if len(resp.IDs) != 1 || resp.IDs[0] != 1 || resp.Code != "1" {
		t.Fatalf("apply = %#v", resp)
	}
}

func TestPlanner_SavedLists(t *testing.T) {
	ts := newPlannerTS(t)
	token := startSession(t, ts.URL)

	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", token, map[string]any{"item_id": 0}, nil, 200)
	doJSON(t, http.MethodPost, ts.URL+"/lists", token, map[string]any{"name": "Weekly"}, nil, 201)

	doJSON(t, http.MethodPost, ts.URL+"/selection/clear", token, nil, nil, 200)
	doJSON(t, http.MethodPost, ts.URL+"/lists/Weekly/activate", token, nil, nil, 200)

	var sel struct {
		IDs []int `json:"ids"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/selection", token, nil, &sel, 200)
	if len(sel.IDs) != 1 || sel.IDs[0] != 0 {
		t.Fatalf("selection after activate = %#v", sel)
	}

	doJSON(t, http.MethodPost, ts.URL+"/lists/Nonexistent/activate", token, nil, nil, 404)

	doJSON(t, http.MethodPost, ts.URL+"/lists/Weekly/copy", token, nil, nil, 201)
	doJSON(t, http.MethodPost, ts.URL+"/lists/Weekly/copy", token, nil, nil, 409)
	doJSON(t, http.MethodPost, ts.URL+"/lists/Weekly/copy?force=1", token, nil, nil, 201)

	doJSON(t, http.MethodDelete, ts.URL+"/lists/Weekly", token, nil, nil, 204)
	doJSON(t, http.MethodDelete, ts.URL+"/lists/Weekly", token, nil, nil, 404)
}

func TestPlanner_Share(t *testing.T) {
	ts := newPlannerTS(t)
	token := startSession(t, ts.URL)

	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", token, map[string]any{"item_id": 0}, nil, 200)
	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", token, map[string]any{"item_id": 1}, nil, 200)

	var resp struct {
		Name   string `json:"name"`
		URL    string `json:"url"`
		SMS    string `json:"sms"`
		Mailto string `json:"mailto"`
		Text   string `json:"text"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/share", token, nil, &resp, 200)

	if resp.URL != "https://grocer.example/plan?items=0,1" {
		t.Fatalf("share url = %q", resp.URL)
	}
	if resp.SMS == "" || resp.Mailto == "" {
		t.Fatalf("share payloads missing: %#v", resp)
	}
}

func TestPlanner_SessionsIsolated(t *testing.T) {
	ts := newPlannerTS(t)

	a := startSession(t, ts.URL)
	doJSON(t, http.MethodPost, ts.URL+"/selection/toggle", a, map[string]any{"item_id": 0}, nil, 200)

	b := startSession(t, ts.URL)
	var sel struct {
		IDs []int `json:"ids"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/selection", b, nil, &sel, 200)
	if len(sel.IDs) != 0 {
		t.Fatalf("fresh session sees another session's selection: %#v", sel)
	}
}

func TestPlanner_CatalogEndpoints(t *testing.T) {
	ts := newPlannerTS(t)

	var list struct {
		Items []struct {
			ID             int    `json:"id"`
			Name           string `json:"name"`
			BestPriceCents int64  `json:"best_price_cents"`
			BestStore      string `json:"best_store"`
		} `json:"items"`
		Stores     []string `json:"stores"`
		Categories []string `json:"categories"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/catalog", "", nil, &list, 200)

	if len(list.Items) != 3 || len(list.Stores) != 2 {
		t.Fatalf("catalog = %#v", list)
	}
	if list.Items[1].BestStore != "StoreB" || list.Items[1].BestPriceCents != 200 {
		t.Fatalf("eggs view = %#v (best fields not derived)", list.Items[1])
	}

	var item struct {
		Name         string `json:"name"`
		Alternatives []struct {
			Store      string `json:"store"`
			DeltaCents int64  `json:"delta_cents"`
		} `json:"alternatives"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/catalog/0", "", nil, &item, 200)
	if item.Name != "Milk" || len(item.Alternatives) != 1 || item.Alternatives[0].DeltaCents != 50 {
		t.Fatalf("item view = %#v", item)
	}

	doJSON(t, http.MethodGet, ts.URL+"/catalog/99", "", nil, nil, 404)
	doJSON(t, http.MethodGet, ts.URL+"/catalog?category=Bakery", "", nil, &list, 200)
	if len(list.Items) != 1 || list.Items[0].Name != "Bread" {
		t.Fatalf("filtered catalog = %#v", list.Items)
	}
}
