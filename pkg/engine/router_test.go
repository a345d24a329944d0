package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockresolver/pkg/mock"
)

func TestRouter_Lookup(t *testing.T) {
	endpoints := []*mock.Endpoint{
		{ID: "order", Method: "GET", Path: "/orders/{id}"},
		{ID: "any-health", Path: "/health"},
		{ID: "orders-tree", Method: "GET", Path: "/orders/*"},
		{ID: "create", Method: "POST", Path: "/orders"},
		{ID: "dup", Method: "POST", Path: "/orders"},
		{ID: "star", Method: "*", Path: "/ping"},
	}
	rt := NewRouter(endpoints)

	tests := []struct {
		name   string
		method string
		path   string
		want   string
		params map[string]string
	}{
		{name: "named param beats wildcard", method: "GET", path: "/orders/7", want: "order", params: map[string]string{"id": "7"}},
		{name: "wildcard for deeper paths", method: "GET", path: "/orders/7/items", want: "orders-tree", params: map[string]string{"0": "7/items"}},
		{name: "empty method accepts any", method: "DELETE", path: "/health", want: "any-health", params: map[string]string{}},
		{name: "star method accepts any", method: "PATCH", path: "/ping", want: "star", params: map[string]string{}},
		{name: "earlier endpoint wins ties", method: "POST", path: "/orders", want: "create", params: map[string]string{}},
		{name: "head falls back to get", method: "HEAD", path: "/orders/9", want: "order", params: map[string]string{"id": "9"}},
		{name: "method case-insensitive", method: "post", path: "/orders", want: "create", params: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, ok := rt.Lookup(tt.method, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.want, route.Endpoint.ID)
			assert.Equal(t, tt.params, route.PathParams)
		})
	}
}

func TestRouter_LookupMiss(t *testing.T) {
	rt := NewRouter([]*mock.Endpoint{
		{ID: "order", Method: "GET", Path: "/orders/{id}"},
	})

	_, ok := rt.Lookup("POST", "/orders/7")
	assert.False(t, ok)

	_, ok = rt.Lookup("GET", "/customers/7")
	assert.False(t, ok)

	_, ok = NewRouter(nil).Lookup("GET", "/")
	assert.False(t, ok)
}

func TestRouter_ExplicitMethodScoresHigher(t *testing.T) {
	rt := NewRouter([]*mock.Endpoint{
		{ID: "any", Path: "/items/{id}"},
		{ID: "get", Method: "GET", Path: "/items/{id}"},
	})

	route, ok := rt.Lookup("GET", "/items/1")
	require.True(t, ok)
	assert.Equal(t, "get", route.Endpoint.ID)

	route, ok = rt.Lookup("PUT", "/items/1")
	require.True(t, ok)
	assert.Equal(t, "any", route.Endpoint.ID)
}
