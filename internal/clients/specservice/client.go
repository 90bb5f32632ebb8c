// Package specservice talks to the service that owns framework specifications
// and data point type schemas.
package specservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

type Client interface {
	// GetFrameworkSpecification fetches the schema of an assembled framework.
	// Returns apierr.ErrNotFound when the framework is unknown.
	GetFrameworkSpecification(ctx context.Context, framework string) (json.RawMessage, error)
	ListFrameworkSpecifications(ctx context.Context) ([]string, error)
	// ValidateDataPoint asks the spec service to validate one fragment against
	// its data point type schema. Returns apierr.ErrValidation when the
	// content does not conform.
	ValidateDataPoint(ctx context.Context, dataPointType string, content json.RawMessage) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing spec service base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log:  log.With("client", "SpecServiceClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *client) GetFrameworkSpecification(ctx context.Context, framework string) (json.RawMessage, error) {
	framework = strings.TrimSpace(framework)
	if framework == "" {
		return nil, fmt.Errorf("framework required")
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/specifications/frameworks/" + url.PathEscape(framework)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, apierr.NotFound("FRAMEWORK_NOT_FOUND", fmt.Errorf("unknown framework %q", framework))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("spec service get_framework http %d: %s", resp.StatusCode, string(raw))
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("spec service get_framework returned invalid JSON")
	}
	return json.RawMessage(raw), nil
}

func (c *client) ListFrameworkSpecifications(ctx context.Context) ([]string, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/specifications/frameworks"
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("spec service list_frameworks http %d: %s", resp.StatusCode, string(raw))
	}

	var out []struct {
		Framework string `json:"framework"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("spec service list_frameworks decode: %w", err)
	}
	names := make([]string, 0, len(out))
	for _, entry := range out {
		names = append(names, entry.Framework)
	}
	return names, nil
}

func (c *client) ValidateDataPoint(ctx context.Context, dataPointType string, content json.RawMessage) error {
	dataPointType = strings.TrimSpace(dataPointType)
	if dataPointType == "" {
		return fmt.Errorf("dataPointType required")
	}

	body, err := json.Marshal(map[string]json.RawMessage{"content": content})
	if err != nil {
		return err
	}
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/specifications/data-point-types/" + url.PathEscape(dataPointType) + "/validate"
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return apierr.NotFound("DATA_POINT_TYPE_NOT_FOUND", fmt.Errorf("unknown data point type %q", dataPointType))
	}
	if resp.StatusCode == http.StatusBadRequest {
		return apierr.Validation("DATA_POINT_INVALID", fmt.Errorf("data point of type %q rejected: %s", dataPointType, string(raw)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("spec service validate http %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
