package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	ledgerSheet     string
	categoriesSheet string
	income          []string
}

// Ensure interface conformance
var (
	_ ports.Table          = (*Client)(nil)
	_ ports.TaxonomyReader = (*Client)(nil)
)

// Settings locates the spreadsheet and the service account credentials.
type Settings struct {
	SpreadsheetID   string
	SheetName       string
	CategoriesSheet string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, s Settings) (*Client, error) {
	spreadsheetID := strings.TrimSpace(s.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, s.CredentialsJSON, s.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, s.SheetName, s.CategoriesSheet), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, ledgerSheet, categoriesSheet string) *Client {
	ledgerSheet = strings.TrimSpace(ledgerSheet)
	if ledgerSheet == "" {
		ledgerSheet = "Sheet1"
	}
	categoriesSheet = strings.TrimSpace(categoriesSheet)
	if categoriesSheet == "" {
		categoriesSheet = "Categories"
	}
	return &Client{
		svc:             svc,
		spreadsheetID:   spreadsheetID,
		ledgerSheet:     ledgerSheet,
		categoriesSheet: categoriesSheet,
	}
}

// SetIncomeCategories configures kind inference for sheets without a タイプ
// column.
func (c *Client) SetIncomeCategories(cats []string) {
	c.income = cats
}

// newSheetsService initializes a Sheets Service from inline service account
// JSON or a credentials file.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Load reads the ledger sheet through the shared row codec.
func (c *Client) Load(ctx context.Context) ([]core.Record, error) {
	if c.svc == nil {
		return nil, fmt.Errorf("%w: sheets service not initialized", core.ErrStorageUnavailable)
	}
	rng := fmt.Sprintf("%s!A:D", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrStorageUnavailable, rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = ports.ToStrings(row)
	}
	return ports.DecodeRows(rows, ports.DecodeOptions{IncomeCategories: c.income})
}

// Save clears the ledger columns and writes the header plus every record.
// The two calls are not atomic: a failure between them leaves the sheet
// empty until the next successful Save.
func (c *Client) Save(ctx context.Context, records []core.Record) error {
	if c.svc == nil {
		return fmt.Errorf("%w: sheets service not initialized", core.ErrStorageUnavailable)
	}
	clearRng := fmt.Sprintf("%s!A:D", c.ledgerSheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: clear %s: %v", core.ErrStorageUnavailable, clearRng, err)
	}

	values := make([][]any, 0, len(records)+1)
	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, r := range records {
		values = append(values, encodeRow(r))
	}

	rng := fmt.Sprintf("%s!A1:D%d", c.ledgerSheet, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: update %s: %v", core.ErrStorageUnavailable, rng, err)
	}
	return nil
}

// encodeRow is the shared row codec with the category forced to plain text:
// under USER_ENTERED, Sheets would otherwise evaluate "=1+1" as a formula or
// turn "001" into a number. The leading apostrophe is not stored.
func encodeRow(r core.Record) []any {
	row := ports.EncodeRow(r)
	row[2] = "'" + r.Category
	return row
}

// Categories reads the category column for kind from the categories sheet:
// column A lists expense categories, column B income categories, both below
// a header row.
func (c *Client) Categories(ctx context.Context, kind core.Kind) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	col := "A2:A"
	if kind == core.Income {
		col = "B2:B"
	}
	return c.readCol(ctx, c.categoriesSheet, col)
}

func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseColumn(resp.Values), nil
}

// parseColumn flattens a single-column range, dropping blanks and comment
// rows and de-duplicating while preserving order.
func parseColumn(values [][]interface{}) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
