package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"luckygas-dispatch/internal/core/config"
	"luckygas-dispatch/internal/core/httpclient"
	"luckygas-dispatch/internal/features/routes/domain"
)

// ERPAdapter implements ports.RouteProvider against the Lucky Gas ERP
// REST API.
type ERPAdapter struct {
	// client is the HTTP client used for API requests.
	client *http.Client
	// config holds the ERP connection details.
	config config.ERPConfig
}

// NewERPAdapter creates a new instance of ERPAdapter.
func NewERPAdapter(cfg config.ERPConfig) *ERPAdapter {
	return &ERPAdapter{
		client: httpclient.NewClient(10 * time.Second),
		config: cfg,
	}
}

// erpRoute mirrors the ERP's route payload.
type erpRoute struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Date  string    `json:"date"`
	Stops []erpStop `json:"stops"`
}

// erpStop mirrors the ERP's stop payload.
type erpStop struct {
	DeliveryID   string  `json:"delivery_id"`
	Sequence     int     `json:"sequence"`
	CustomerName string  `json:"customer_name"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Cylinders    int     `json:"cylinders"`
	Status       string  `json:"status"`
}

// RoutesForDriver fetches the driver's assigned routes for today.
func (a *ERPAdapter) RoutesForDriver(ctx context.Context, driverID string) ([]domain.Route, error) {
	url := fmt.Sprintf("%s/api/v1/drivers/%s/routes", a.config.URL, driverID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			// An unknown driver simply has no routes.
			return []domain.Route{}, nil
		}
		return nil, fmt.Errorf("erp API returned status: %d", resp.StatusCode)
	}

	var payload struct {
		Routes []erpRoute `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	routes := make([]domain.Route, 0, len(payload.Routes))
	for _, r := range payload.Routes {
		routes = append(routes, mapRoute(r))
	}
	return routes, nil
}

// HealthCheck verifies that the ERP API is reachable and credentials are valid.
func (a *ERPAdapter) HealthCheck() error {
	url := fmt.Sprintf("%s/api/v1/health", a.config.URL)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed to create request: %w", err)
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}

	return nil
}

// authorize sets Basic Auth built from the API key pair.
func (a *ERPAdapter) authorize(req *http.Request) {
	credentials := a.config.APIKey + ":" + a.config.APISecret
	encoded := base64.StdEncoding.EncodeToString([]byte(credentials))
	req.Header.Add("Authorization", "Basic "+encoded)
}

// mapRoute converts a raw ERP route into the domain entity.
func mapRoute(r erpRoute) domain.Route {
	stops := make([]domain.Stop, 0, len(r.Stops))
	for _, s := range r.Stops {
		stops = append(stops, domain.Stop{
			DeliveryID:   s.DeliveryID,
			Sequence:     s.Sequence,
			CustomerName: s.CustomerName,
			Address:      s.Address,
			Latitude:     s.Latitude,
			Longitude:    s.Longitude,
			Cylinders:    s.Cylinders,
			Status:       s.Status,
		})
	}
	return domain.Route{
		ID:    r.ID,
		Name:  r.Name,
		Date:  r.Date,
		Stops: stops,
	}
}
