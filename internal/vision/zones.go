package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rewired-gh/zonewatch/internal/models"
)

type zonesResponse struct {
	Zones *[]models.Zone `json:"zones"`
}

type saveZoneRequest struct {
	Name        string         `json:"name"`
	Coordinates []models.Point `json:"coordinates"`
}

// ListZones fetches the saved zones. Every returned zone has an id and
// passes models.Zone.Validate.
func (c *Client) ListZones(ctx context.Context) ([]models.Zone, error) {
	var resp zonesResponse
	if err := c.call(ctx, request{method: http.MethodGet, path: "/get_zones", auth: true}, &resp); err != nil {
		return nil, err
	}
	if resp.Zones == nil {
		return nil, malformed("/get_zones", errors.New("missing zones"))
	}

	zones := *resp.Zones
	for i := range zones {
		if !zones[i].Persisted() {
			return nil, malformed("/get_zones", fmt.Errorf("zone %q has no id", zones[i].Name))
		}
		if err := zones[i].Validate(); err != nil {
			return nil, malformed("/get_zones", fmt.Errorf("zone %s: %w", zones[i].ID, err))
		}
	}
	return zones, nil
}

// SaveZone persists a new zone. The backend does not echo the new id; callers
// reload the zone list to learn it.
func (c *Client) SaveZone(ctx context.Context, zone models.Zone) (string, error) {
	if err := zone.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrIncompleteZone, err)
	}
	body, err := jsonBody(saveZoneRequest{Name: zone.Name, Coordinates: zone.Coordinates})
	if err != nil {
		return "", err
	}
	var env envelope
	err = c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/save_zone",
		body:        body,
		contentType: "application/json",
		auth:        true,
	}, &env)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// DeleteZone removes a zone by id.
func (c *Client) DeleteZone(ctx context.Context, id models.ZoneID) error {
	if id == "" {
		return errors.New("zone has no id")
	}
	return c.call(ctx, request{
		method: http.MethodDelete,
		path:   "/delete_zone/" + url.PathEscape(id.String()),
		auth:   true,
	}, nil)
}
