// Package swagger registers the textlens bridge API description with swag
// so http-swagger can serve it at /swagger/doc.json.
//
// swagger.json is maintained by hand alongside the @Router annotations on
// the handlers in internal/process, internal/settings and internal/server.
package swagger

import (
	_ "embed"

	"github.com/swaggo/swag"

	"github.com/HerbHall/textlens/internal/version"
)

//go:embed swagger.json
var docTemplate string

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          version.Short(),
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "textlens bridge API",
	Description:      "Local HTTP bridge for processing selected text with a configured LLM provider.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
