package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"kakeibo/internal/core"
)

var today = core.NewDate(2024, 5, 20)

func parserFor(t *testing.T, body, contentType string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		want       core.Record
		violations int
	}{
		{
			name: "full form",
			body: "date=2024-05-01&kind=income&category=給与&amount=250,000",
			want: core.Record{Date: core.NewDate(2024, 5, 1), Kind: core.Income, Category: "給与", Amount: 250000},
		},
		{
			name: "japanese kind label and slash date",
			body: url.Values{"date": {"2024/05/02"}, "kind": {"支出"}, "category": {"食費"}, "amount": {"¥1,200"}}.Encode(),
			want: core.Record{Date: core.NewDate(2024, 5, 2), Kind: core.Expense, Category: "食費", Amount: 1200},
		},
		{
			name: "defaults to today and expense",
			body: "category=交通&amount=220",
			want: core.Record{Date: today, Kind: core.Expense, Category: "交通", Amount: 220},
		},
		{
			name: "zero amount accepted",
			body: "category=その他&amount=0",
			want: core.Record{Date: today, Kind: core.Expense, Category: "その他", Amount: 0},
		},
		{
			name:       "every problem reported",
			body:       "date=yesterday&kind=gift&category=&amount=-5",
			violations: 4,
		},
		{
			name:       "fractional amount",
			body:       "category=食費&amount=12.5",
			violations: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parserFor(t, tt.body, "application/x-www-form-urlencoded")
			got, err := ParseRecord(p, today)
			if tt.violations > 0 {
				var verr *core.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if len(verr.Violations) != tt.violations {
					t.Errorf("expected %d violations, got %v", tt.violations, verr.Violations)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := parserFor(t, `{"category":" 食費 ","amount":1500,"positions":[1,3],"revision":"4"}`, "application/json")

	if !p.IsJSON() {
		t.Fatal("expected JSON body")
	}
	if got := p.Get("category"); got != "食費" {
		t.Errorf("category = %q", got)
	}
	if got := p.Get("amount"); got != "1500" {
		t.Errorf("amount = %q", got)
	}
	if got := p.GetAll("positions"); len(got) != 2 || got[1] != "3" {
		t.Errorf("positions = %v", got)
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"amount":`))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestRequestBodyParser_SanitizesControlCharacters(t *testing.T) {
	p := parserFor(t, "category=%E9%A3%9F%00%E8%B2%BB", "application/x-www-form-urlencoded")
	if got := p.Get("category"); got != "食費" {
		t.Errorf("category = %q", got)
	}
}

func TestParsePositions(t *testing.T) {
	got, err := ParsePositions([]string{"3", "1, 4", ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 4 {
		t.Errorf("unexpected positions %v", got)
	}
	if _, err := ParsePositions([]string{"x"}); err == nil {
		t.Error("expected error for non-numeric position")
	}
}

func TestParseRevision(t *testing.T) {
	if rev, err := ParseRevision(""); err != nil || rev != 0 {
		t.Errorf("empty revision = %d, %v", rev, err)
	}
	if rev, err := ParseRevision("12"); err != nil || rev != 12 {
		t.Errorf("revision = %d, %v", rev, err)
	}
	if _, err := ParseRevision("-1"); err == nil {
		t.Error("expected error for negative revision")
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 7},
		{"days=10", 10},
		{"days=0", 7},
		{"days=abc", 7},
		{"days=400", 7},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		if got := ParseDays(q, 7); got != tt.want {
			t.Errorf("ParseDays(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
