package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
	"github.com/nhlakes/fishing-conditions/internal/store"
)

var validate = validator.New()

const defaultLimit = 50

// RegisterRoutes wires the read endpoints into the Fiber app.
func RegisterRoutes(app *fiber.App, st *store.Store, locations []fishing.Location) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		return c.JSON(locations)
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		req, err := parseListQuery(c, "location")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		obs, err := st.WeatherLatest(c.Context(), req.Name, req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather observations")
		}
		return c.JSON(obs)
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		var req forecastQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		obs, err := st.WeatherForecast(c.Context(), time.Now().UTC(), req.Days, req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast")
		}
		return c.JSON(obs)
	})

	v1.Get("/stocking", func(c *fiber.Ctx) error {
		req, err := parseListQuery(c, "lake")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		recs, err := st.StockingsRecent(c.Context(), req.Name, req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch stocking records")
		}
		return c.JSON(recs)
	})

	v1.Get("/water-temperature", func(c *fiber.Ctx) error {
		req, err := parseListQuery(c, "lake")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		recs, err := st.WaterTempsRecent(c.Context(), req.Name, req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch water temperatures")
		}
		return c.JSON(recs)
	})

	v1.Get("/water-temperature/latest", func(c *fiber.Ctx) error {
		latest, err := st.LatestWaterTempByLake(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest water temperatures")
		}
		return c.JSON(latest)
	})

	v1.Get("/status", func(c *fiber.Ctx) error {
		stats, err := st.Stats(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read store stats")
		}

		out := fiber.Map{"store": stats}
		run, err := st.LastRun(c.Context())
		switch {
		case errors.Is(err, store.ErrNotFound):
			out["status"] = "idle"
			out["last_run"] = nil
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read run log")
		default:
			out["last_run"] = run
			if run.Failures > 0 || run.ErrorMessage != "" {
				out["status"] = "degraded"
			} else {
				out["status"] = "ok"
			}
		}
		return c.JSON(out)
	})
}

// listQuery holds the common name-filter and limit query parameters.
type listQuery struct {
	Name  string
	Limit int `validate:"min=1,max=500"`
}

// parseListQuery binds a filter (under filterKey) plus an optional limit.
func parseListQuery(c *fiber.Ctx, filterKey string) (listQuery, error) {
	q := listQuery{Limit: defaultLimit}

	q.Name = c.Query(filterKey)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, errors.New("limit must be an integer")
		}
		q.Limit = n
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// forecastQuery holds query parameters for the forecast endpoint. Days
// bounds the window; zero means every stored future observation.
type forecastQuery struct {
	Days  int `validate:"omitempty,min=1,max=8"`
	Limit int `validate:"min=1,max=500"`
}

func (f *forecastQuery) bind(c *fiber.Ctx) error {
	f.Limit = defaultLimit

	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New("days must be an integer")
		}
		f.Days = n
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New("limit must be an integer")
		}
		f.Limit = n
	}

	return validate.Struct(f)
}
