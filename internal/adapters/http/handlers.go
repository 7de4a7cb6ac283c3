package http

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/bagfinder/internal/core/usecases"
	"github.com/samirrijal/bagfinder/internal/pkg/logging"
)

// DataSourceHeader names where a property response came from.
const DataSourceHeader = "X-Data-Source"

var (
	validate = validator.New()
	trans    ut.Translator
)

func init() {
	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)
}

// propertyQuery is the validated form of the verblijfsobjecten query string.
type propertyQuery struct {
	Municipality string  `validate:"max=100"`
	MinArea      float64 `validate:"gte=0"`
}

// parsePropertyQuery reads gemeente/minOppervlakte (or their English aliases)
// and falls back to defaults for absent values.
func parsePropertyQuery(c *fiber.Ctx, defaults QueryDefaults) (propertyQuery, error) {
	q := propertyQuery{
		Municipality: strings.TrimSpace(firstQuery(c, "gemeente", "municipality")),
		MinArea:      defaults.MinArea,
	}
	if q.Municipality == "" {
		q.Municipality = defaults.Municipality
	}

	if raw := strings.TrimSpace(firstQuery(c, "minOppervlakte", "minArea")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return q, fmt.Errorf("invalid minOppervlakte %q: must be a non-negative number", raw)
		}
		q.MinArea = v
	}

	if err := validate.Struct(q); err != nil {
		return q, translateError(err)
	}
	return q, nil
}

func firstQuery(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}

func translateError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Translate(trans))
	}
	return fmt.Errorf("validation error: %s", strings.Join(msgs, "; "))
}

// RootHandler describes the service and its endpoints.
func RootHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    "BAG Vastgoedfinder API",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":            "/api/health",
				"verblijfsobjecten": "/api/verblijfsobjecten?gemeente=Rotterdam&minOppervlakte=1000",
				"gemeenten":         "/api/gemeenten",
				"graphql":           "/graphql",
				"docs":              "/docs",
			},
		})
	}
}

// PropertiesHandler returns residential objects of at least minOppervlakte m²
// in a municipality, largest first.
func PropertiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parsePropertyQuery(c, deps.defaults())
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Properties.FindProperties(c.UserContext(), q.Municipality, q.MinArea)
		if errors.Is(err, usecases.ErrNoRepository) {
			return errUnavailable(c, err.Error())
		}
		if err != nil {
			logging.FromContext(c.UserContext()).Error("find properties", "error", err)
			return errInternal(c, "failed to fetch verblijfsobjecten")
		}

		c.Set(DataSourceHeader, string(res.Source))
		return c.JSON(res)
	}
}

// MunicipalitiesHandler lists the municipalities that have residential objects.
func MunicipalitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names, err := deps.Properties.ListMunicipalities(c.UserContext())
		if errors.Is(err, usecases.ErrNoRepository) {
			return errUnavailable(c, err.Error())
		}
		if err != nil {
			logging.FromContext(c.UserContext()).Error("list municipalities", "error", err)
			return errInternal(c, "failed to fetch gemeenten")
		}
		return c.JSON(fiber.Map{"gemeenten": names})
	}
}
