package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finlens/internal/config"
	"finlens/internal/log"
	"finlens/internal/sheets"
)

var reportHeader = []any{"Month", "User", "Category", "Amount"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base sheet name without year (e.g. "Report"); the report year is prefixed.
	sheetBase string
	logger    *log.Logger
}

var _ sheets.ReportWriter = (*Client)(nil)

// Options selects the spreadsheet and the OAuth material used to reach it.
// Inline JSON wins over the matching file.
type Options struct {
	SpreadsheetID string
	Sheet         string
	ClientJSON    string
	ClientFile    string
	TokenJSON     string
	TokenFile     string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		Sheet:         cfg.GoogleReportSheet,
		ClientJSON:    cfg.GoogleOAuthClientJSON,
		ClientFile:    cfg.GoogleOAuthClientFile,
		TokenJSON:     cfg.GoogleOAuthTokenJSON,
		TokenFile:     cfg.GoogleOAuthTokenFile,
	}
}

// New creates a Sheets client authorised with a stored OAuth user token.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.Sheet, logger), nil
}

// NewWithService wraps an existing service. Tests point it at a fake endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *log.Logger) *Client {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = "Report"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		sheetBase:     sheet,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientJSON, err := readSecret(opts.ClientJSON, opts.ClientFile, "oauth client")
	if err != nil {
		return nil, err
	}
	tokenJSON, err := readSecret(opts.TokenJSON, opts.TokenFile, "oauth token")
	if err != nil {
		return nil, err
	}

	cfg, err := google.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	// Token refreshes go through the pooled client as well.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := cfg.Client(ctx, &tok)

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func readSecret(inline, file, what string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", what, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("missing %s credentials", what)
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// WriteMonthlyReport rewrites the year sheet so it holds exactly one block of
// rows for the report's user and month. Rows of other users and months are
// kept, and the sheet is re-sorted by month then user.
func (c *Client) WriteMonthlyReport(ctx context.Context, r sheets.MonthlyReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if r.UserID == "" {
		return errors.New("report without user")
	}
	if r.Month < 1 || r.Month > 12 {
		return fmt.Errorf("invalid month: %d", r.Month)
	}

	sheetName := yearPrefixedName(c.sheetBase, r.Year)
	rng := fmt.Sprintf("%s!A:D", sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	kept := parseReportRows(resp.Values)
	rows := mergeReport(kept, r)

	values := make([][]any, 0, len(rows)+1)
	values = append(values, reportHeader)
	for _, row := range rows {
		values = append(values, row.values())
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	target := fmt.Sprintf("%s!A1:D%d", sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", target, err)
	}

	c.logger.InfoContext(ctx, "Monthly report exported",
		log.FieldUserID, r.UserID,
		log.FieldOperation, log.OpExport,
		"period", r.Period(),
		"sheet", sheetName,
		log.FieldCount, len(r.Categories))
	return nil
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
