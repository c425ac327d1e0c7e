// Package gcs keeps CSV copies of monthly reports in a Cloud Storage bucket,
// one object per user and month.
package gcs

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"cloud.google.com/go/storage"

	"finlens/internal/core"
	"finlens/internal/log"
	"finlens/internal/sheets"
)

const uploadTimeout = 2 * time.Minute

// openWriter returns a writer for the named object. Closing it commits the
// upload.
type openWriter func(ctx context.Context, object string) io.WriteCloser

type Writer struct {
	client *storage.Client
	open   openWriter
	bucket string
	prefix string
	logger *log.Logger
}

var _ sheets.ReportWriter = (*Writer)(nil)

// New uses Application Default Credentials.
func New(ctx context.Context, bucket, prefix string, logger *log.Logger) (*Writer, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing GCS_REPORT_BUCKET")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	bkt := client.Bucket(bucket)
	open := func(ctx context.Context, object string) io.WriteCloser {
		w := bkt.Object(object).NewWriter(ctx)
		w.ContentType = "text/csv"
		return w
	}
	w := newWriter(open, bucket, prefix, logger)
	w.client = client
	return w, nil
}

func newWriter(open openWriter, bucket, prefix string, logger *log.Logger) *Writer {
	return &Writer{
		open:   open,
		bucket: bucket,
		prefix: prefix,
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

// ObjectName is <prefix>/<YYYY-MM>/<escaped user id>.csv.
func ObjectName(prefix string, r sheets.MonthlyReport) string {
	return path.Join(prefix, r.Period(), url.PathEscape(r.UserID)+".csv")
}

func (w *Writer) WriteMonthlyReport(ctx context.Context, r sheets.MonthlyReport) error {
	if r.UserID == "" {
		return fmt.Errorf("report without user")
	}
	if r.Month < 1 || r.Month > 12 {
		return fmt.Errorf("invalid report month %d", r.Month)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	object := ObjectName(w.prefix, r)
	wc := w.open(ctx, object)
	if err := EncodeReport(wc, r); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write gs://%s/%s: %w", w.bucket, object, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", w.bucket, object, err)
	}

	w.logger.InfoContext(ctx, "Monthly report uploaded",
		log.FieldUserID, r.UserID,
		log.FieldOperation, log.OpExport,
		"object", object,
		"categories", len(r.Categories))
	return nil
}

// EncodeReport writes the report as CSV with a trailing Total row.
func EncodeReport(dst io.Writer, r sheets.MonthlyReport) error {
	cw := csv.NewWriter(dst)
	rows := make([][]string, 0, len(r.Categories)+2)
	rows = append(rows, []string{"month", "user", "category", "amount"})
	for _, c := range r.Categories {
		rows = append(rows, []string{r.Period(), r.UserID, c.Category, core.FormatAmount(c.Amount)})
	}
	rows = append(rows, []string{r.Period(), r.UserID, "Total", core.FormatAmount(r.Total())})
	return cw.WriteAll(rows)
}

func (w *Writer) Close() error {
	if w.client == nil {
		return nil
	}
	return w.client.Close()
}
