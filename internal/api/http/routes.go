package httpapi

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-poller/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, logger *slog.Logger) {
	api := app.Group("/api")

	api.Get("/weather/latest", func(c *fiber.Ctx) error {
		q, err := parseLatestQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := service.GetLatest(c.UserContext(), q.Count)
		if err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data available")
			}
			logger.Error("read latest weather records", "error", err, "kind", weather.ErrorKind(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}

		return c.JSON(records)
	})
}

// latestQuery holds query parameters for the latest endpoint.
type latestQuery struct {
	Count int `validate:"min=1,max=100"`
}

func parseLatestQuery(c *fiber.Ctx) (latestQuery, error) {
	q := latestQuery{Count: weather.DefaultLatestCount}

	if c.Query("count") != "" {
		n := c.QueryInt("count", 0)
		if n == 0 {
			return q, errors.New("count must be an integer between 1 and 100")
		}
		q.Count = n
	}

	if err := validate.Struct(q); err != nil {
		return q, errors.New("count must be an integer between 1 and 100")
	}
	return q, nil
}
