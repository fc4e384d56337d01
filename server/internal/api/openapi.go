package api

import (
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/opendmp/python-script-processor/core/logx"
	"github.com/opendmp/python-script-processor/sdk/base/schema"
)

// OpenAPI describes the descriptor API.
func OpenAPI(version string) *openapi3.T {
	descriptor := schema.PluginConfiguration()
	errorSchema := openapi3.NewObjectSchema().WithProperty("error", openapi3.NewStringSchema())
	notFound := &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Not found").WithJSONSchema(errorSchema)}
	serviceName := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("serviceName").WithSchema(openapi3.NewStringSchema())}

	descriptorResp := openapi3.NewResponse().WithDescription("Plugin descriptor").WithJSONSchema(descriptor)
	descriptorResp.Content["application/yaml"] = openapi3.NewMediaType().WithSchema(descriptor)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "Python Script Processor descriptor API",
			Version: version,
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/healthz", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "getHealthz",
					Summary:     "Server lifecycle state",
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Ready")}),
						openapi3.WithStatus(503, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Draining")}),
					),
				},
			}),
			openapi3.WithPath("/api/plugins", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "listPlugins",
					Summary:     "List registered plugin descriptors",
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().
							WithDescription("Descriptors keyed by service name").
							WithJSONSchema(openapi3.NewObjectSchema().WithAdditionalProperties(descriptor))}),
					),
				},
			}),
			openapi3.WithPath("/api/plugins/{serviceName}", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "getPlugin",
					Summary:     "Get a plugin descriptor",
					Parameters: openapi3.Parameters{
						serviceName,
						{Value: openapi3.NewQueryParameter("format").WithSchema(openapi3.NewStringSchema().WithEnum("json", "yaml", "msgpack"))},
					},
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(200, &openapi3.ResponseRef{Value: descriptorResp}),
						openapi3.WithStatus(404, notFound),
					),
				},
			}),
			openapi3.WithPath("/api/plugins/{serviceName}/fields/{field}", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "getPluginField",
					Summary:     "Get one field description of a plugin",
					Parameters: openapi3.Parameters{
						serviceName,
						{Value: openapi3.NewPathParameter("field").WithSchema(openapi3.NewStringSchema())},
					},
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().
							WithDescription("Field description").
							WithJSONSchema(schema.FieldDescription())}),
						openapi3.WithStatus(404, notFound),
					),
				},
			}),
		),
	}
}

// OpenAPIHandler serves the OpenAPI document as JSON.
func OpenAPIHandler(version string) http.HandlerFunc {
	b, err := json.Marshal(OpenAPI(version))
	if err != nil {
		logx.Log.Error().Err(err).Msg("marshal openapi document")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			writeError(w, http.StatusInternalServerError, "openapi document unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}
}
