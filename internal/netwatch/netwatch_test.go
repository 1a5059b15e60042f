package netwatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreFieldName(t *testing.T) {
	assert.Equal(t, 25, scoreFieldName("price", "price"))
	assert.Equal(t, 25, scoreFieldName("Price", "price"))
	assert.Equal(t, 15, scoreFieldName("unitPrice", "price"))
	assert.Equal(t, 0, scoreFieldName("weight", "price"))
}

func TestGenericizeURL(t *testing.T) {
	assert.Equal(t, "/api/v*/products/*", genericizeURL("/api/v2/products/881234"))
	assert.Equal(t, "/search", genericizeURL("/search"))
}

func TestMatchesAutoDetectShape(t *testing.T) {
	assert.True(t, matchesAutoDetectShape("https://shop.example.com/api/products/running-shoes"))
	assert.True(t, matchesAutoDetectShape("https://shop.example.com/graphql"))
	assert.True(t, matchesAutoDetectShape("https://shop.example.com/api/v2/items/catalog"))
	assert.False(t, matchesAutoDetectShape("https://shop.example.com/static/app.js"))
}

func TestScoreObject_RequiresTitleOrPriceAndMinimumScore(t *testing.T) {
	rich := map[string]any{
		"id":    "p-1",
		"title": "Wireless Mouse",
		"price": 29.99,
		"url":   "/products/p-1",
		"image": "/img/p-1.jpg",
	}
	result := scoreObject(rich, 0)
	assert.GreaterOrEqual(t, result.score, 30)
	assert.True(t, result.hasTitle)
	assert.True(t, result.hasPrice)
	assert.Equal(t, "title", result.mappings.Title)
	assert.Equal(t, "price", result.mappings.Price)

	poor := map[string]any{"weight": "2kg", "color": "red"}
	poorResult := scoreObject(poor, 0)
	assert.False(t, poorResult.hasTitle || poorResult.hasPrice)
}

func TestScoreObject_RecursesIntoNestedArrays(t *testing.T) {
	payload := map[string]any{
		"meta": map[string]any{"requestId": "abc"},
		"data": []any{
			map[string]any{"name": "Widget", "finalPrice": 12.5, "sku": "w-1"},
		},
	}
	result := scoreObject(payload, 0)
	assert.True(t, result.hasTitle)
	assert.True(t, result.hasPrice)
}

func TestNavigateDotPath(t *testing.T) {
	payload := map[string]any{
		"data": map[string]any{
			"items": []any{
				map[string]any{"id": "1"},
				map[string]any{"id": "2"},
			},
		},
	}
	items := navigateDotPath(payload, "data.items")
	assert.Len(t, items, 2)

	missing := navigateDotPath(payload, "data.missing")
	assert.Nil(t, missing)

	root := navigateDotPath(payload, "")
	assert.Len(t, root, 1)
}
