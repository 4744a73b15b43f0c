package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jobharvest/internal/config"
	"go-jobharvest/internal/logging"
)

func TestRun_ReturnsErrorWithoutKeywords(t *testing.T) {
	cfg, err := config.Parse([]byte("discovery:\n  job_keywords: [jobs]\n"))
	require.NoError(t, err)

	err = run(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no queries")
}
