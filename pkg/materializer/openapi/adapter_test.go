package openapi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/types"
)

const testDoc = `
openapi: "3.0.0"
info:
  title: Test API
  version: "1.0.0"
servers:
  - url: http://127.0.0.1:9000
x-flowplane-filters:
  - filter:
      type: cors
      allow_origins: ["*"]
  - filter:
      type: header_mutation
      request_headers_to_add:
        - key: x-global-filter
          value: enabled
paths:
  /users:
    get:
      operationId: listUsers
      responses:
        "200":
          description: ok
  /posts/{id}:
    get:
      x-flowplane-filters:
        - filter:
            type: jwt_auth
      responses:
        "200":
          description: ok
`

func TestTranslate_GlobalAndPerRouteFilters(t *testing.T) {
	doc, err := ParseDocument([]byte(testDoc))
	require.NoError(t, err)

	spec, err := Translate(doc, "team-1", false, nil)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", spec.Domain)
	require.Len(t, spec.FilterRefs, 2)
	require.Equal(t, "cors", spec.FilterRefs[0].FilterName)
	require.Equal(t, types.AttachmentListener, spec.FilterRefs[0].Scope)

	require.Len(t, spec.Routes, 2)

	var usersRoute, postsRoute *types.RouteSpec
	for i := range spec.Routes {
		switch spec.Routes[i].Name {
		case "listUsers":
			usersRoute = &spec.Routes[i]
		default:
			postsRoute = &spec.Routes[i]
		}
	}
	require.NotNil(t, usersRoute)
	require.Equal(t, types.MatchExact, usersRoute.MatchType)
	require.Equal(t, "/users", usersRoute.MatchValue)
	require.Equal(t, "127.0.0.1", usersRoute.Targets[0].Host)
	require.EqualValues(t, 9000, usersRoute.Targets[0].Port)
	require.Empty(t, usersRoute.FilterRefs)

	require.NotNil(t, postsRoute)
	require.Equal(t, types.MatchTemplate, postsRoute.MatchType)
	require.Len(t, postsRoute.FilterRefs, 1)
	require.Equal(t, "jwt_auth", postsRoute.FilterRefs[0].FilterName)
	require.Equal(t, types.AttachmentRoute, postsRoute.FilterRefs[0].Scope)
}

func TestTranslate_ExplicitDomainExtension(t *testing.T) {
	doc, err := ParseDocument([]byte(`
x-flowplane-domain: api.acme.com
servers:
  - url: https://upstream.internal:8443
paths:
  /ping:
    get:
      responses:
        "200":
          description: ok
`))
	require.NoError(t, err)

	spec, err := Translate(doc, "team-1", false, nil)
	require.NoError(t, err)
	require.Equal(t, "api.acme.com", spec.Domain)
	require.Equal(t, "upstream.internal", spec.Routes[0].Targets[0].Host)
	require.EqualValues(t, 8443, spec.Routes[0].Targets[0].Port)
}
