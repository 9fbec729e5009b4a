// Package router assembles the gin engine of the sync API.
package router

import (
	"path"

	"github.com/gin-gonic/gin"
)

// APIVersion prefixes every API area: /api/{APIVersion}/...
const APIVersion = "v1"

// Route is one endpoint inside an Area.
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Area is a set of routes sharing a path prefix and middleware, such as
// the user-scoped sync endpoints.
type Area struct {
	Name       string
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
}

// Mount registers areas under /api/{version} and returns the full paths it
// mounted, as "METHOD /path".
func Mount(engine *gin.Engine, version string, areas ...Area) []string {
	api := engine.Group("/api/" + version)
	mounted := make([]string, 0)
	for _, area := range areas {
		group := api.Group(area.Prefix, area.Middleware...)
		for _, rt := range area.Routes {
			group.Handle(rt.Method, rt.Path, rt.Handler)
			mounted = append(mounted, rt.Method+" "+joinPath(group.BasePath(), rt.Path))
		}
	}
	return mounted
}

func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	return path.Join(base, rel)
}
