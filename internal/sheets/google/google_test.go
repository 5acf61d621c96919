package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	"kharcha/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor int64
		scale int32
		want  string
	}{
		{12345, 2, "123.45"},
		{5, 2, "0.05"},
		{0, 2, "0.00"},
		{-250, 2, "-2.50"},
		{390, 0, "390"},
		{1234, 3, "1.234"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.minor, tt.scale); got != tt.want {
			t.Errorf("formatAmount(%d, %d) = %q, want %q", tt.minor, tt.scale, got, tt.want)
		}
	}
}

func TestToValues(t *testing.T) {
	got := toValues([]core.DailyExpense{
		{Date: "2025-07-02", Purpose: "fuel", Total: 200},
		{Date: "2025-07-01", Purpose: "kirana, tea", Total: 1050},
	}, 2)
	want := [][]interface{}{
		{"Date", "Purpose", "Total"},
		{"2025-07-02", "fuel", "2.00"},
		{"2025-07-01", "kirana, tea", "10.50"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("toValues() = %v, want %v", got, want)
	}
}

func TestToValues_PurposeIsNeverAFormula(t *testing.T) {
	tests := []struct {
		purpose string
		want    string
	}{
		{`=HYPERLINK("http://x","y")`, `'=HYPERLINK("http://x","y")`},
		{"+91 recharge", "'+91 recharge"},
		{"-refund", "'-refund"},
		{"@home", "'@home"},
		{"kirana = tea", "kirana = tea"},
		{"", ""},
	}
	for _, tt := range tests {
		got := toValues([]core.DailyExpense{{Date: "2025-07-01", Purpose: tt.purpose, Total: -250}}, 2)
		if got[1][1] != tt.want {
			t.Errorf("purpose %q written as %q, want %q", tt.purpose, got[1][1], tt.want)
		}
		if got[1][2] != "-2.50" {
			t.Errorf("negative total written as %q, want -2.50", got[1][2])
		}
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Export", 2)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sheet-id", "Export", 2)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+string(os.PathSeparator)+"missing.json")

	_, err := New(context.Background(), "sheet-id", "Export", 2)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteExport_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if err := c.WriteExport(context.Background(), nil); err == nil {
		t.Fatal("expected error with uninitialised service")
	}
}

// fakeSheetsAPI records the calls the client makes against the Sheets REST API.
type fakeSheetsAPI struct {
	mu      sync.Mutex
	calls   []string
	written [][]interface{}
	titles  []string
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && path == "/v4/spreadsheets/sheet-id":
		f.calls = append(f.calls, "get")
		var sheets []map[string]any
		for _, title := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case r.Method == http.MethodPost && path == "/v4/spreadsheets/sheet-id:batchUpdate":
		f.calls = append(f.calls, "add")
		f.titles = append(f.titles, "Export")
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/values/Export!A:C:clear"):
		f.calls = append(f.calls, "clear")
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.HasSuffix(path, "/values/Export!A1"):
		f.calls = append(f.calls, "update")
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.written = vr.Values
		w.Write([]byte(`{}`))
	default:
		f.calls = append(f.calls, "unexpected "+r.Method+" "+path)
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func TestWriteExport_AgainstFakeAPI(t *testing.T) {
	api := &fakeSheetsAPI{titles: []string{"Sheet1"}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	c := newClient(svc, "sheet-id", "", 2)

	rows := []core.DailyExpense{{Date: "2025-07-01", Purpose: "kirana", Total: 390}}
	if err := c.WriteExport(context.Background(), rows); err != nil {
		t.Fatalf("WriteExport() error = %v", err)
	}
	if err := c.WriteExport(context.Background(), rows); err != nil {
		t.Fatalf("second WriteExport() error = %v", err)
	}

	wantCalls := []string{"get", "add", "clear", "update", "clear", "update"}
	if !reflect.DeepEqual(api.calls, wantCalls) {
		t.Errorf("calls = %v, want %v", api.calls, wantCalls)
	}
	wantValues := [][]interface{}{{"Date", "Purpose", "Total"}, {"2025-07-01", "kirana", "3.90"}}
	if !reflect.DeepEqual(api.written, wantValues) {
		t.Errorf("written = %v, want %v", api.written, wantValues)
	}
}
