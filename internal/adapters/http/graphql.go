package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

func object(p graphql.ResolveParams) domain.Verblijfsobject {
	v, _ := p.Source.(domain.Verblijfsobject)
	return v
}

// buildSchema creates the GraphQL schema wired to the property service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float, Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(domain.GeoPoint).Lat, nil
			}},
			"lon": &graphql.Field{Type: graphql.Float, Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(domain.GeoPoint).Lon, nil
			}},
		},
	})

	verblijfsobjectType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Verblijfsobject",
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: func(p graphql.ResolveParams) (any, error) {
				return object(p).ID, nil
			}},
			"area": &graphql.Field{Type: graphql.Float, Description: "Floor area in m²", Resolve: func(p graphql.ResolveParams) (any, error) {
				return object(p).Area, nil
			}},
			"municipality": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
				return object(p).Municipality, nil
			}},
			"location": &graphql.Field{Type: geoPointType, Resolve: func(p graphql.ResolveParams) (any, error) {
				return object(p).Location, nil
			}},
		},
	})

	resultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PropertyResult",
		Fields: graphql.Fields{
			"count": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(*domain.PropertyResult).Count, nil
			}},
			"source": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
				return string(p.Source.(*domain.PropertyResult).Source), nil
			}},
			"results": &graphql.Field{Type: graphql.NewList(verblijfsobjectType), Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(*domain.PropertyResult).Results, nil
			}},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"verblijfsobjecten": &graphql.Field{
				Type:        resultType,
				Description: "Residential objects in a municipality with a minimum floor area, largest first",
				Args: graphql.FieldConfigArgument{
					"gemeente":       &graphql.ArgumentConfig{Type: graphql.String},
					"minOppervlakte": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					q := propertyQuery{Municipality: deps.defaults().Municipality, MinArea: deps.defaults().MinArea}
					if v, ok := p.Args["gemeente"].(string); ok && v != "" {
						q.Municipality = v
					}
					if v, ok := p.Args["minOppervlakte"].(float64); ok {
						q.MinArea = v
					}
					if err := validate.Struct(q); err != nil {
						return nil, translateError(err)
					}
					return deps.Properties.FindProperties(p.Context, q.Municipality, q.MinArea)
				},
			},
			"gemeenten": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Municipalities with residential objects",
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Properties.ListMunicipalities(p.Context)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		return c.JSON(result)
	}
}
