package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	goicon "github.com/VantageDataChat/GoIcon"
)

var _ goicon.ExportObserver = Observer{}

func TestObserver(t *testing.T) {
	var o Observer
	okBefore := testutil.ToFloat64(ExportsTotal.WithLabelValues("circle", "succeeded"))
	failBefore := testutil.ToFloat64(ExportErrorsTotal.WithLabelValues("image_load_timed_out"))
	rejectedBefore := testutil.ToFloat64(ExportsTotal.WithLabelValues("square", "rejected"))
	inFlight := testutil.ToFloat64(ExportsInFlight)

	o.ExportStarted(goicon.ShapeCircle)
	assert.Equal(t, inFlight+1, testutil.ToFloat64(ExportsInFlight))
	o.ExportFinished(goicon.StatusSucceeded, goicon.ShapeCircle, goicon.KindUnknown, 120*time.Millisecond)

	o.ExportStarted(goicon.ShapeCircle)
	o.ExportFinished(goicon.StatusFailed, goicon.ShapeCircle, goicon.KindImageLoadTimedOut, 10*time.Second)

	o.ExportFinished(goicon.StatusRejected, goicon.ShapeRoundedSquare, goicon.KindUnknown, 0)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ExportsTotal.WithLabelValues("circle", "succeeded")))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(ExportErrorsTotal.WithLabelValues("image_load_timed_out")))
	assert.Equal(t, rejectedBefore+1, testutil.ToFloat64(ExportsTotal.WithLabelValues("square", "rejected")))
	assert.Equal(t, inFlight, testutil.ToFloat64(ExportsInFlight))
}

func TestSetInstancesMounted(t *testing.T) {
	SetInstancesMounted(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(InstancesMounted))
}
