package ingest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/infra-deployer/internal/config"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
	"github.com/olusolaa/infra-deployer/internal/ingest"
	"github.com/olusolaa/infra-deployer/internal/log"
	"github.com/olusolaa/infra-deployer/internal/retry"
)

type mockWriter struct{ mock.Mock }

func (m *mockWriter) WriteObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	return m.Called(ctx, bucket, key, body, contentType).Error(0)
}

type mockSecrets struct{ mock.Mock }

func (m *mockSecrets) FetchField(ctx context.Context, secretName, key string) (string, error) {
	args := m.Called(ctx, secretName, key)
	return args.String(0), args.Error(1)
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	}
}

func testIngestConfig(endpoint string) *config.IngestConfig {
	return &config.IngestConfig{
		Endpoint:         endpoint,
		SecretName:       "app/prod/rapidapi",
		APIKeyField:      "x-rapidapi-key",
		DefaultState:     "CA",
		Plates:           []string{"7ABC123", "8XYZ987"},
		RawPrefix:        "raw/vehicle_market_value",
		CuratedPrefix:    "curated/vehicle_market_value",
		FetchConcurrency: 2,
	}
}

func testStorageConfig() *config.StorageConfig {
	return &config.StorageConfig{RawBucket: "app-prod-raw", CuratedBucket: "app-prod-curated"}
}

func valuationBody() string {
	return `{"year":2021,"make":"Honda","model":"Civic","trim":"EX","mileage":34000,"condition":"good","valuation":{"retail":21500,"wholesale":19000,"trade_in":18250}}`
}

func TestRunLandsRawAndCuratedDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, "CA", r.URL.Query().Get("state_code"))
		fmt.Fprint(w, valuationBody())
	}))
	defer server.Close()

	secrets := new(mockSecrets)
	secrets.On("FetchField", mock.Anything, "app/prod/rapidapi", "x-rapidapi-key").Return("k-123", nil)

	writer := new(mockWriter)
	writer.On("WriteObject", mock.Anything, "app-prod-raw",
		"raw/vehicle_market_value/7ABC123/2026-08-25T12:00:00Z.json", mock.Anything, "application/json").Return(nil)
	writer.On("WriteObject", mock.Anything, "app-prod-raw",
		"raw/vehicle_market_value/8XYZ987/2026-08-25T12:00:00Z.json", mock.Anything, "application/json").Return(nil)
	wantRecord := func(plate string) ingest.Record {
		return ingest.Record{
			Plate:          plate,
			Year:           2021,
			Make:           "Honda",
			Model:          "Civic",
			Trim:           "EX",
			Mileage:        34000,
			Condition:      "good",
			RetailValue:    21500,
			WholesaleValue: 19000,
			TradeInValue:   18250,
			Timestamp:      "2026-08-25T12:00:00Z",
			Source:         "vehicle_market_value_api",
		}
	}
	writer.On("WriteObject", mock.Anything, "app-prod-curated",
		"curated/vehicle_market_value/2026/08/25/vehicles.json",
		mock.MatchedBy(func(body []byte) bool {
			var got []ingest.Record
			if err := json.Unmarshal(body, &got); err != nil {
				return false
			}
			// Aggregate preserves configured plate order.
			want := []ingest.Record{wantRecord("7ABC123"), wantRecord("8XYZ987")}
			return cmp.Diff(want, got) == ""
		}), "application/json").Return(nil)

	p := ingest.NewPipeline(testIngestConfig(server.URL), testStorageConfig(), secrets, writer,
		retry.Policy{MaxAttempts: 1}, log.NewNop(), ingest.WithClock(fixedClock()))

	require.NoError(t, p.Run(context.Background()))
	writer.AssertExpectations(t)
}

func TestRunRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, valuationBody())
	}))
	defer server.Close()

	secrets := new(mockSecrets)
	secrets.On("FetchField", mock.Anything, mock.Anything, mock.Anything).Return("k-123", nil)
	writer := new(mockWriter)
	writer.On("WriteObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	cfg := testIngestConfig(server.URL)
	cfg.Plates = []string{"7ABC123"}

	p := ingest.NewPipeline(cfg, testStorageConfig(), secrets, writer,
		retry.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond}, log.NewNop(), ingest.WithClock(fixedClock()))

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunClientErrorFailsWithoutRetryOrCuratedWrite(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	secrets := new(mockSecrets)
	secrets.On("FetchField", mock.Anything, mock.Anything, mock.Anything).Return("k-123", nil)
	writer := new(mockWriter)

	cfg := testIngestConfig(server.URL)
	cfg.Plates = []string{"7ABC123"}

	p := ingest.NewPipeline(cfg, testStorageConfig(), secrets, writer,
		retry.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond}, log.NewNop(), ingest.WithClock(fixedClock()))

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodePlatformAPIError))
	assert.Equal(t, int32(1), calls.Load())
	writer.AssertNotCalled(t, "WriteObject", mock.Anything, "app-prod-curated", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunMissingAPIKeyAbortsBeforeFetching(t *testing.T) {
	secrets := new(mockSecrets)
	secrets.On("FetchField", mock.Anything, mock.Anything, mock.Anything).
		Return("", apperrors.New(apperrors.CodeSecretMissing, "secret missing"))
	writer := new(mockWriter)

	p := ingest.NewPipeline(testIngestConfig("http://127.0.0.1:1"), testStorageConfig(), secrets, writer,
		retry.Policy{MaxAttempts: 1}, log.NewNop())

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSecretMissing))
	writer.AssertNotCalled(t, "WriteObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
