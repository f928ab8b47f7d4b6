// Package ingest runs the vehicle market value pipeline: fetch a
// valuation per configured plate, land each raw payload in the raw
// bucket, then land one curated aggregate document in the curated
// bucket. Fetches fan out under a bounded group; both landing writes
// preserve the configured plate order.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/olusolaa/infra-deployer/internal/config"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
	"github.com/olusolaa/infra-deployer/internal/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	recordSource   = "vehicle_market_value_api"
	requestTimeout = 10 * time.Second
)

type ObjectWriter interface {
	WriteObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

type SecretFieldReader interface {
	FetchField(ctx context.Context, secretName, key string) (string, error)
}

// Record is one curated row. Field names follow the downstream curated
// schema, so they stay snake_case on the wire.
type Record struct {
	Plate          string  `json:"plate"`
	Year           int     `json:"year"`
	Make           string  `json:"make"`
	Model          string  `json:"model"`
	Trim           string  `json:"trim"`
	Mileage        int     `json:"mileage"`
	Condition      string  `json:"condition"`
	RetailValue    float64 `json:"retail_value"`
	WholesaleValue float64 `json:"wholesale_value"`
	TradeInValue   float64 `json:"trade_in_value"`
	Timestamp      string  `json:"timestamp"`
	Source         string  `json:"source"`
}

type valuationPayload struct {
	Year      int    `json:"year"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Trim      string `json:"trim"`
	Mileage   int    `json:"mileage"`
	Condition string `json:"condition"`
	Valuation struct {
		Retail    float64 `json:"retail"`
		Wholesale float64 `json:"wholesale"`
		TradeIn   float64 `json:"trade_in"`
	} `json:"valuation"`
}

type Pipeline struct {
	cfg     *config.IngestConfig
	storage *config.StorageConfig
	secrets SecretFieldReader
	writer  ObjectWriter
	policy  retry.Policy
	client  *http.Client
	logger  ports.Logger
	now     func() time.Time
}

type Option func(*Pipeline)

// WithHTTPClient replaces the transport, used by tests to point at a
// local server.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) { p.client = client }
}

// WithClock pins object-key timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(cfg *config.IngestConfig, storage *config.StorageConfig, secrets SecretFieldReader, writer ObjectWriter, policy retry.Policy, logger ports.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		storage: storage,
		secrets: secrets,
		writer:  writer,
		policy:  policy,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pipeline pass. A failed plate fails the whole run;
// partial curated documents are never written.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Infof(ctx, "Starting vehicle market value pipeline (%d plates)", len(p.cfg.Plates))

	apiKey, err := p.secrets.FetchField(ctx, p.cfg.SecretName, p.cfg.APIKeyField)
	if err != nil {
		return err
	}

	records := make([]Record, len(p.cfg.Plates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.FetchConcurrency)
	for i, plate := range p.cfg.Plates {
		group.Go(func() error {
			record, err := p.ingestPlate(groupCtx, apiKey, plate)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if err := p.writeCurated(ctx, records); err != nil {
		return err
	}
	p.logger.Infof(ctx, "Pipeline completed with %d records", len(records))
	return nil
}

func (p *Pipeline) ingestPlate(ctx context.Context, apiKey, plate string) (Record, error) {
	raw, err := retry.Do(ctx, p.logger, p.policy, "fetch valuation "+plate, func(ctx context.Context) ([]byte, error) {
		return p.fetchValuation(ctx, apiKey, plate)
	})
	if err != nil {
		return Record{}, err
	}

	key := fmt.Sprintf("%s/%s/%s.json", p.cfg.RawPrefix, plate, p.now().UTC().Format(time.RFC3339))
	if err := p.writer.WriteObject(ctx, p.storage.RawBucket, key, raw, "application/json"); err != nil {
		return Record{}, err
	}
	return p.normalize(plate, raw)
}

func (p *Pipeline) fetchValuation(ctx context.Context, apiKey, plate string) ([]byte, error) {
	endpoint, err := url.Parse(p.cfg.Endpoint)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigValidation, "invalid ingest endpoint")
	}
	query := endpoint.Query()
	query.Set("license_plate", plate)
	query.Set("state_code", p.cfg.DefaultState)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "building valuation request")
	}
	req.Header.Set("x-rapidapi-host", endpoint.Host)
	req.Header.Set("x-rapidapi-key", apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransient, "valuation request failed for "+plate)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransient, "reading valuation response for "+plate)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, apperrors.New(apperrors.CodeTransient,
			fmt.Sprintf("valuation endpoint returned %d for %s", resp.StatusCode, plate))
	default:
		return nil, apperrors.New(apperrors.CodePlatformAPIError,
			fmt.Sprintf("valuation endpoint returned %d for %s", resp.StatusCode, plate))
	}
}

func (p *Pipeline) normalize(plate string, raw []byte) (Record, error) {
	var payload valuationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Record{}, apperrors.Wrap(err, apperrors.CodePlatformAPIError, "malformed valuation payload for "+plate)
	}
	return Record{
		Plate:          plate,
		Year:           payload.Year,
		Make:           payload.Make,
		Model:          payload.Model,
		Trim:           payload.Trim,
		Mileage:        payload.Mileage,
		Condition:      payload.Condition,
		RetailValue:    payload.Valuation.Retail,
		WholesaleValue: payload.Valuation.Wholesale,
		TradeInValue:   payload.Valuation.TradeIn,
		Timestamp:      p.now().UTC().Format(time.RFC3339),
		Source:         recordSource,
	}, nil
}

func (p *Pipeline) writeCurated(ctx context.Context, records []Record) error {
	body, err := json.Marshal(records)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "encoding curated records")
	}
	key := fmt.Sprintf("%s/%s/vehicles.json", p.cfg.CuratedPrefix, p.now().UTC().Format("2006/01/02"))
	return p.writer.WriteObject(ctx, p.storage.CuratedBucket, key, body, "application/json")
}
