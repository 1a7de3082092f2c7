package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/polarmet/antartida-weather/internal/aemet"
	"github.com/polarmet/antartida-weather/internal/antartida"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *antartida.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/antartida/timeseries", func(c *fiber.Ctx) error {
		var req timeseriesQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		data, err := service.GetData(c.Context(), req.Station, req.Start, req.End, req.Aggregation, req.Types)
		if err != nil {
			return mapServiceError(err)
		}

		return c.JSON(fiber.Map{
			"station":     req.Station,
			"aggregation": req.Aggregation,
			"data":        data,
		})
	})

	v1.Get("/antartida/stations", func(c *fiber.Ctx) error {
		entries, fetchedAt, err := service.StationCatalog(c.Context())
		if err != nil {
			return mapServiceError(err)
		}

		return c.JSON(fiber.Map{
			"lastFetchedAt": fetchedAt,
			"stations":      entries,
		})
	})
}

// mapServiceError translates core errors into HTTP statuses: a missing
// credential is a server misconfiguration, an upstream failure is a bad
// gateway, everything else is internal.
func mapServiceError(err error) error {
	var remoteErr *aemet.RemoteError
	switch {
	case errors.Is(err, aemet.ErrMissingAPIKey):
		return fiber.NewError(fiber.StatusInternalServerError, "AEMET API key is not configured")
	case errors.As(err, &remoteErr):
		return fiber.NewError(fiber.StatusBadGateway, "upstream AEMET request failed: "+remoteErr.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to retrieve measurements")
	}
}

// timeseriesQuery holds query parameters for the timeseries endpoint.
type timeseriesQuery struct {
	Station     antartida.Station
	Start       time.Time `validate:"required"`
	End         time.Time `validate:"required,gtefield=Start"`
	Aggregation antartida.Granularity
	Types       []antartida.MeasurementType
}

func (q *timeseriesQuery) bind(c *fiber.Ctx) error {
	station, ok := antartida.ParseStation(c.Query("station"))
	if !ok {
		return errors.New("station must be one of: gabriel-de-castilla, juan-carlos-i")
	}
	q.Station = station

	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		return errors.New("start and end query parameters are required")
	}

	start, err := parseLocalTime(startStr)
	if err != nil {
		return err
	}
	end, err := parseLocalTime(endStr)
	if err != nil {
		return err
	}
	q.Start = start
	q.End = end

	aggregation, ok := antartida.ParseGranularity(c.Query("aggregation"))
	if !ok {
		return errors.New("aggregation must be one of: none, hourly, daily, monthly")
	}
	q.Aggregation = aggregation

	if raw := c.Query("types"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			t, ok := antartida.ParseMeasurementType(strings.TrimSpace(name))
			if !ok {
				return errors.New("types entries must be one of: temperature, pressure, speed, direction")
			}
			q.Types = append(q.Types, t)
		}
	}
	return nil
}

// parseLocalTime accepts RFC3339 (offset respected) and falls back to
// offset-less local time interpreted in Europe/Madrid, since the
// caller-facing contract is a local display window.
func parseLocalTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation("2006-01-02T15:04:05", s, antartida.MadridTZ); err == nil {
		return ts, nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or local YYYY-MM-DDTHH:MM:SS")
}
