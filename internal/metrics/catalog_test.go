package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBuild(t *testing.T) {
	before := testutil.ToFloat64(CatalogBuildsTotal.WithLabelValues("url", ResultOK))
	ObserveBuild("url", ResultOK)
	assert.Equal(t, before+1, testutil.ToFloat64(CatalogBuildsTotal.WithLabelValues("url", ResultOK)))
}

func TestObserveDroppedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(CatalogDroppedTotal.WithLabelValues("invalid"))
	ObserveDropped("invalid", 0)
	ObserveDropped("invalid", -3)
	assert.Equal(t, before, testutil.ToFloat64(CatalogDroppedTotal.WithLabelValues("invalid")))

	ObserveDropped("invalid", 2)
	assert.Equal(t, before+2, testutil.ToFloat64(CatalogDroppedTotal.WithLabelValues("invalid")))
}
