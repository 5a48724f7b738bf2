// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStageRecordsDuration(t *testing.T) {
	before := testutil.CollectAndCount(StageDuration)
	ObserveStage("fusion", 25*time.Millisecond)
	after := testutil.CollectAndCount(StageDuration)
	if after <= before {
		t.Errorf("CollectAndCount after ObserveStage = %d, want > %d", after, before)
	}
}

func TestEntitiesProcessedIncrements(t *testing.T) {
	before := testutil.ToFloat64(EntitiesProcessed.WithLabelValues("true"))
	EntitiesProcessed.WithLabelValues("true").Inc()
	after := testutil.ToFloat64(EntitiesProcessed.WithLabelValues("true"))
	if after != before+1 {
		t.Errorf("EntitiesProcessed after Inc = %v, want %v", after, before+1)
	}
}
