package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"kakeibo/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the subset of the Sheets values API used by Client.
type fakeSheets struct {
	mu      sync.Mutex
	values  map[string][][]any
	cleared []string
	updates []string
	input   []string
	sent    [][]any
	fail    bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}
	idx := strings.Index(r.URL.Path, "/values/")
	if idx == -1 {
		http.NotFound(w, r)
		return
	}
	rng := r.URL.Path[idx+len("/values/"):]

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		f.cleared = append(f.cleared, strings.TrimSuffix(rng, ":clear"))
		io.WriteString(w, `{}`)
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.updates = append(f.updates, rng)
		input := r.URL.Query().Get("valueInputOption")
		f.input = append(f.input, input)
		f.sent = vr.Values
		f.values[strings.SplitN(rng, "!", 2)[0]+"!A:D"] = entered(vr.Values, input)
		io.WriteString(w, `{}`)
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.values[rng]})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

// entered mimics how Sheets stores user-entered text: a leading apostrophe
// marks the cell as a literal string and is dropped.
func entered(rows [][]any, input string) [][]any {
	if input != "USER_ENTERED" {
		return rows
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = make([]any, len(row))
		for j, v := range row {
			if s, ok := v.(string); ok {
				v = strings.TrimPrefix(s, "'")
			}
			out[i][j] = v
		}
	}
	return out
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "", "")
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Settings{SpreadsheetID: "abc"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	_, err := newSheetsService(context.Background(), "", "")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	_, err := newSheetsService(context.Background(), "", t.TempDir()+"/missing.json")
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestClient_LoadDecodesRows(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{
		"Sheet1!A:D": {
			{"日付", "タイプ", "種類", "金額"},
			{"2024/05/01", "支出", "食費", "1,200"},
			{"2024/05/02", "収入", "給与", "250000"},
			{},
		},
	}}
	c := newTestClient(t, fake)

	records, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Amount != 1200 || records[0].Kind != core.Expense {
		t.Errorf("unexpected first record: %s", records[0])
	}
	if records[1].Kind != core.Income || records[1].Category != "給与" {
		t.Errorf("unexpected second record: %s", records[1])
	}
}

func TestClient_SaveClearsThenWrites(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{}}
	c := newTestClient(t, fake)

	records := []core.Record{
		{Date: core.NewDate(2024, 5, 1), Kind: core.Expense, Category: "交通", Amount: 220},
	}
	if err := c.Save(context.Background(), records); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "Sheet1!A:D" {
		t.Errorf("expected clear of Sheet1!A:D, got %v", fake.cleared)
	}
	if len(fake.updates) != 1 || fake.updates[0] != "Sheet1!A1:D2" {
		t.Errorf("expected update of Sheet1!A1:D2, got %v", fake.updates)
	}
	if fake.input[0] != "USER_ENTERED" {
		t.Errorf("expected USER_ENTERED, got %q", fake.input[0])
	}

	got, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(records[0]) {
		t.Errorf("round trip mismatch: %v", got)
	}
}

func TestClient_SaveKeepsCategoriesLiteral(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{}}
	c := newTestClient(t, fake)

	records := []core.Record{
		{Date: core.NewDate(2024, 5, 1), Kind: core.Expense, Category: "=1+1", Amount: 2},
		{Date: core.NewDate(2024, 5, 2), Kind: core.Expense, Category: "001", Amount: 1},
		{Date: core.NewDate(2024, 5, 3), Kind: core.Expense, Category: "'quoted", Amount: 3},
	}
	if err := c.Save(context.Background(), records); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for i, want := range []string{"'=1+1", "'001", "''quoted"} {
		if got := fake.sent[i+1][2]; got != want {
			t.Errorf("row %d category cell = %v, want %q", i, got, want)
		}
	}

	got, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i := range records {
		if !got[i].Equal(records[i]) {
			t.Errorf("row %d: want %s, got %s", i, records[i], got[i])
		}
	}
}

func TestClient_ErrorsAreStorageUnavailable(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{}, fail: true}
	c := newTestClient(t, fake)

	if _, err := c.Load(context.Background()); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("Load: expected ErrStorageUnavailable, got %v", err)
	}
	if err := c.Save(context.Background(), nil); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("Save: expected ErrStorageUnavailable, got %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.Load(context.Background()); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestClient_Categories(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{
		"Categories!A2:A": {{"食費"}, {"日用品"}, {"食費"}, {""}, {"# 廃止"}},
		"Categories!B2:B": {{"給与"}},
	}}
	c := newTestClient(t, fake)

	exp, err := c.Categories(context.Background(), core.Expense)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if strings.Join(exp, ",") != "食費,日用品" {
		t.Errorf("unexpected expense categories: %v", exp)
	}
	inc, err := c.Categories(context.Background(), core.Income)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(inc) != 1 || inc[0] != "給与" {
		t.Errorf("unexpected income categories: %v", inc)
	}
}

func TestParseColumn(t *testing.T) {
	got := parseColumn([][]interface{}{{"  A "}, {}, {"B"}, {"A"}, {"#x"}})
	if strings.Join(got, "|") != "A|B" {
		t.Errorf("unexpected result: %v", got)
	}
}
