// Package sheets mirrors saved research results into a Google Sheet so the
// team can browse them without database access.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/iliyamo/stuffworth/internal/model"
)

// DefaultRange is the A1 range rows are appended after.
const DefaultRange = "Sheet1!A1"

// Exporter appends one research result per call.
type Exporter interface {
	Append(ctx context.Context, item model.ResearchHistoryItem, userEmail string) error
}

// Noop discards every row.  Used when the sheet is not configured.
type Noop struct{}

func (Noop) Append(context.Context, model.ResearchHistoryItem, string) error { return nil }

// appender is the slice of the Sheets API the exporter needs.
type appender interface {
	append(ctx context.Context, spreadsheetID, rng string, row []interface{}) error
}

type valuesAppender struct{ svc *gsheets.Service }

func (v valuesAppender) append(ctx context.Context, id, rng string, row []interface{}) error {
	_, err := v.svc.Spreadsheets.Values.
		Append(id, rng, &gsheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// SheetExporter writes rows through the Sheets v4 API with a service account.
type SheetExporter struct {
	id  string
	rng string
	api appender
}

// New authenticates with the service-account email and PEM key.
func New(ctx context.Context, spreadsheetID, clientEmail, privateKey string) (*SheetExporter, error) {
	if spreadsheetID == "" || clientEmail == "" || privateKey == "" {
		return nil, errors.New("sheets: spreadsheet id, client email and private key are required")
	}
	conf := &jwt.Config{
		Email:      clientEmail,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{gsheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}
	svc, err := gsheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	return &SheetExporter{id: spreadsheetID, rng: DefaultRange, api: valuesAppender{svc: svc}}, nil
}

func (e *SheetExporter) Append(ctx context.Context, item model.ResearchHistoryItem, userEmail string) error {
	if err := e.api.append(ctx, e.id, e.rng, Row(item, userEmail)); err != nil {
		return fmt.Errorf("sheets: append: %w", err)
	}
	return nil
}

// Row lays out a research result as a sheet row:
// timestamp, user, item, condition, estimate, low, high, currency,
// confidence, description, sources.
func Row(item model.ResearchHistoryItem, userEmail string) []interface{} {
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []interface{}{
		created.UTC().Format(time.RFC3339),
		userEmail,
		item.ItemName,
		item.Condition,
		item.EstimatedPrice,
		item.PriceLow,
		item.PriceHigh,
		item.Currency,
		item.Confidence,
		item.Description,
		strings.Join(item.Sources, "\n"),
	}
}
