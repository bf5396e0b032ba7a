// Package swaggerui serves the embedded Swagger UI for the gallery API.
package swaggerui

import (
	"net/http"

	swgui "github.com/swaggest/swgui/v5"
)

const title = "Gallery API"

// Handler serves Swagger UI at basePath, reading the document from specPath.
func Handler(specPath, basePath string) http.Handler {
	return swgui.New(title, specPath, basePath)
}
