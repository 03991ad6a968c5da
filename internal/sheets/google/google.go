// Package google exports yearly reports to a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"carteira/internal/log"
	"carteira/internal/sheets"
)

const defaultSheetBase = "Relatório"

var ErrMissingSpreadsheetID = errors.New("missing GOOGLE_SPREADSHEET_ID")

var _ sheets.ReportExporter = (*Client)(nil)

// Config selects the target spreadsheet and where credentials come from.
// With no credentials set, Application Default Credentials are used.
type Config struct {
	SpreadsheetID   string
	SheetBase       string
	CredentialsJSON string
	CredentialsFile string
}

// ConfigFromEnv reads the service account variables the export understands.
func ConfigFromEnv(spreadsheetID, sheetBase string) Config {
	cfg := Config{
		SpreadsheetID:   strings.TrimSpace(spreadsheetID),
		SheetBase:       strings.TrimSpace(sheetBase),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return cfg
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger
}

// New creates a client. Extra options replace credential loading, which lets
// callers point the client at another endpoint.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, ErrMissingSpreadsheetID
	}
	if cfg.SheetBase == "" {
		cfg.SheetBase = defaultSheetBase
	}
	logger = log.OrDiscard(logger).WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		credOpts, err := credentialOptions(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = credOpts
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetBase:     cfg.SheetBase,
		logger:        logger,
	}, nil
}

func credentialOptions(ctx context.Context, cfg Config, logger *log.Logger) ([]goption.ClientOption, error) {
	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		logger.InfoContext(ctx, "No service account configured, using default credentials")
		return []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}, nil
	}

	logger.DebugContext(ctx, "Using service account credentials", "credentials_size", len(credentialsJSON))
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// SheetName is the tab a report for year is written to.
func (c *Client) SheetName(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

// ExportYear replaces the content of "<year> <base>" with the report,
// creating the tab when it does not exist yet.
func (c *Client) ExportYear(ctx context.Context, r sheets.YearReport) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	name := c.SheetName(r.Year)
	if err := c.ensureSheet(ctx, name); err != nil {
		return "", err
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, name+"!A:Z", &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", name, err)
	}

	values := reportRows(r)
	ref := fmt.Sprintf("%s!A1:D%d", name, len(values))
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write sheet %s: %w", name, err)
	}

	c.logger.InfoContext(ctx, "Exported yearly report",
		log.FieldOperation, log.OpExport, "sheet", name, log.FieldRows, len(values))
	return ref, nil
}

func (c *Client) ensureSheet(ctx context.Context, name string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	c.logger.InfoContext(ctx, "Created report sheet", "sheet", name)
	return nil
}

var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// reportRows lays out the month table, a totals row, a blank separator and
// the category breakdown.
func reportRows(r sheets.YearReport) [][]any {
	rows := make([][]any, 0, 16+len(r.Categories))
	rows = append(rows, []any{"Mês", "Receitas", "Despesas", "Saldo"})
	for i, b := range r.Months {
		rows = append(rows, []any{monthNames[i], cents(b.Income), cents(b.Expense), cents(b.Balance)})
	}
	rows = append(rows, []any{"Total", cents(r.Totals.Income), cents(r.Totals.Expense), cents(r.Totals.Balance)})
	rows = append(rows, []any{})
	rows = append(rows, []any{"Categoria", "Despesas"})
	for _, c := range r.Categories {
		rows = append(rows, []any{c.Name, cents(c.Amount)})
	}
	return rows
}

func cents(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return f
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
