package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusGroup/Leadr/internal/apperrors"
	"github.com/DeusGroup/Leadr/internal/types/metric"
)

func strPtr(s string) *string { return &s }

func TestBuildMetricHappyPath(t *testing.T) {
	userID := uuid.New()
	req := &metric.RecordRequest{
		UserID:     userID,
		MetricType: metric.TypeRevenue,
		Value:      strPtr("1234.56"),
		Weight:     strPtr("0.4"),
	}

	m, err := buildMetric(req)
	require.NoError(t, err)

	assert.Equal(t, userID, m.UserID)
	assert.True(t, m.Value.Equal(dec("1234.56")))
	assert.True(t, m.Weight.Equal(dec("0.4")))
	assert.NotEqual(t, uuid.Nil, m.ID)
}

func TestBuildMetricDefaultsWeightToOne(t *testing.T) {
	req := &metric.RecordRequest{
		UserID:     uuid.New(),
		MetricType: metric.TypePoints,
		Value:      strPtr("10"),
	}

	m, err := buildMetric(req)
	require.NoError(t, err)
	assert.True(t, m.Weight.Equal(dec("1")))
}

func TestBuildMetricMissingUser(t *testing.T) {
	req := &metric.RecordRequest{
		MetricType: metric.TypePoints,
		Value:      strPtr("10"),
	}

	_, err := buildMetric(req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestBuildMetricUnknownType(t *testing.T) {
	req := &metric.RecordRequest{
		UserID:     uuid.New(),
		MetricType: metric.Type("mood"),
		Value:      strPtr("10"),
	}

	_, err := buildMetric(req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestBuildMetricNonNumericValue(t *testing.T) {
	req := &metric.RecordRequest{
		UserID:     uuid.New(),
		MetricType: metric.TypePoints,
		Value:      strPtr("a lot"),
	}

	_, err := buildMetric(req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestBuildMetricNonNumericWeight(t *testing.T) {
	req := &metric.RecordRequest{
		UserID:     uuid.New(),
		MetricType: metric.TypePoints,
		Value:      strPtr("1"),
		Weight:     strPtr("heavy"),
	}

	_, err := buildMetric(req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestBuildMetricMissingValue(t *testing.T) {
	req := &metric.RecordRequest{
		UserID:     uuid.New(),
		MetricType: metric.TypePoints,
	}

	_, err := buildMetric(req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestBuildMetricNegativeValueAccepted(t *testing.T) {
	// Corrections come in as negative metrics; the store takes them as-is.
	req := &metric.RecordRequest{
		UserID:     uuid.New(),
		MetricType: metric.TypeRevenue,
		Value:      strPtr("-500"),
	}

	m, err := buildMetric(req)
	require.NoError(t, err)
	assert.True(t, m.Value.Equal(dec("-500")))
}
