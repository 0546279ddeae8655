package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusGroup/Leadr/internal/types/achievement"
	"github.com/DeusGroup/Leadr/internal/types/metric"
)

func metricTypePtr(t metric.Type) *metric.Type { return &t }

func TestCriteriaMatchTypeFilter(t *testing.T) {
	c := &achievement.Criteria{MetricType: metricTypePtr(metric.TypeRevenue)}

	assert.True(t, criteriaMatch(c, metric.TypeRevenue, dec("1")))
	assert.False(t, criteriaMatch(c, metric.TypePoints, dec("1")))
}

func TestCriteriaMatchMinValue(t *testing.T) {
	min := dec("100")
	c := &achievement.Criteria{MinValue: &min}

	assert.False(t, criteriaMatch(c, metric.TypeRevenue, dec("99.99")))
	assert.True(t, criteriaMatch(c, metric.TypeRevenue, dec("100")))
	assert.True(t, criteriaMatch(c, metric.TypeRevenue, dec("100.01")))
}

func TestCriteriaMatchEmptyCriteriaPasses(t *testing.T) {
	c := &achievement.Criteria{}
	assert.True(t, criteriaMatch(c, metric.TypeCustom, dec("0")))
}

func TestCriteriaValidateRejectsUnknownMetricType(t *testing.T) {
	bad := metric.Type("steps_walked")
	c := &achievement.Criteria{MetricType: &bad}
	require.Error(t, c.Validate())
}

func TestCriteriaValidateRejectsNegativeThresholds(t *testing.T) {
	neg := dec("-1")

	c := &achievement.Criteria{MinValue: &neg}
	require.Error(t, c.Validate())

	c = &achievement.Criteria{TotalRequired: &neg}
	require.Error(t, c.Validate())
}

func TestCriteriaValidateAcceptsWellFormed(t *testing.T) {
	min := dec("50")
	total := dec("1000")
	c := &achievement.Criteria{
		MetricType:    metricTypePtr(metric.TypeDeals),
		MinValue:      &min,
		TotalRequired: &total,
	}
	require.NoError(t, c.Validate())
}

func TestParseCriteriaEmptyBlob(t *testing.T) {
	c, err := achievement.ParseCriteria(nil)
	require.NoError(t, err)
	assert.Nil(t, c.MetricType)

	empty := ""
	c, err = achievement.ParseCriteria(&empty)
	require.NoError(t, err)
	assert.Nil(t, c.TotalRequired)
}

func TestParseCriteriaCorruptBlob(t *testing.T) {
	bad := `{"min_value": `
	_, err := achievement.ParseCriteria(&bad)
	require.Error(t, err)
}

func TestParseCriteriaRoundTrip(t *testing.T) {
	raw := `{"metric_type": "revenue", "min_value": "250.5", "total_required": "10000"}`
	c, err := achievement.ParseCriteria(&raw)
	require.NoError(t, err)

	require.NotNil(t, c.MetricType)
	assert.Equal(t, metric.TypeRevenue, *c.MetricType)
	require.NotNil(t, c.MinValue)
	assert.True(t, c.MinValue.Equal(dec("250.5")))
	require.NotNil(t, c.TotalRequired)
	assert.True(t, c.TotalRequired.Equal(dec("10000")))
}
