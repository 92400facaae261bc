package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRemotePath(t *testing.T) {
	assert.True(t, IsRemotePath("s3://bucket/data.csv"))
	assert.True(t, IsRemotePath("gs://bucket/part-0.parquet"))
	assert.False(t, IsRemotePath("data/orders.csv"))
	assert.False(t, IsRemotePath("/var/lib/quicketl/out.csv"))
}
