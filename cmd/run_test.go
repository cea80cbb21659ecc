package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/product-research/internal/model"
)

func sampleRecord() *model.ProductRecord {
	details := model.ProductDetails{
		Name:        "Herman Miller Aeron",
		Description: "Ergonomic office chair with a mesh seat and back.",
		Ratings:     model.Ratings{Average: 4.5, Count: 1200, Summary: "Comfortable for long days"},
		WhereToBuy: []model.PurchaseLocation{
			{Retailer: "Design Within Reach", Country: "US", Price: "USD 1395.00", URL: "https://www.dwr.com/aeron"},
		},
		Specifications: []model.Specification{{Label: "Weight capacity", Value: "350 lb"}},
	}
	details.Normalize()
	return &model.ProductRecord{
		ProductDetails: details,
		Image:          &model.Image{URL: "https://cdn.example.com/aeron.jpg", Alt: "Aeron chair"},
	}
}

func TestWriteRecord_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, sampleRecord(), "json"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Herman Miller Aeron", got["name"])
	assert.Contains(t, got, "whereToBuy")
	assert.Contains(t, got, "image")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestWriteRecord_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, sampleRecord(), "yaml"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Herman Miller Aeron", got["name"])
	assert.Contains(t, buf.String(), "whereToBuy:")
	assert.Contains(t, buf.String(), "retailer: Design Within Reach")
}

func TestWriteRecord_NoImage(t *testing.T) {
	rec := sampleRecord()
	rec.Image = nil

	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, rec, "json"))
	assert.NotContains(t, buf.String(), `"image"`)
}
