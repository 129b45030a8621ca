package paywall

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

func allowedEval(key types.FeatureKey) Evaluation {
	return Evaluation{Key: key, Decision: types.Allow(), HasDecision: true}
}

func blockedEval(key types.FeatureKey) Evaluation {
	return Evaluation{Key: key, Decision: types.BlockByPlan(""), HasDecision: true}
}

func TestDerivePlanFrom(t *testing.T) {
	pro := types.FeaturePlanProSentinel
	plus := types.FeaturePlanPlusSentinel

	tests := []struct {
		name string
		pro  Evaluation
		plus Evaluation
		want types.PlanTier
	}{
		{"both allowed resolves pro", allowedEval(pro), allowedEval(plus), types.PlanPro},
		{"pro only resolves pro", allowedEval(pro), blockedEval(plus), types.PlanPro},
		{"plus only resolves plus", blockedEval(pro), allowedEval(plus), types.PlanPlus},
		{"both blocked resolves free", blockedEval(pro), blockedEval(plus), types.PlanFree},
		{"loading probes count as not allowed", Evaluation{Key: pro, Loading: true}, Evaluation{Key: plus, Loading: true}, types.PlanFree},
		{
			"errored probe counts as not allowed",
			Evaluation{Key: pro, Err: errors.New("backend down")},
			allowedEval(plus),
			types.PlanPlus,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePlanFrom(tt.pro, tt.plus))
		})
	}
}

func TestDerivePlan_EndToEnd(t *testing.T) {
	api := newFakeDecisionAPI()
	api.decisions[types.FeaturePlanProSentinel] = types.BlockByPlan("https://upgrade.example")
	api.decisions[types.FeaturePlanPlusSentinel] = types.Allow()
	ev := newTestEvaluator(api)

	tier, loading := ev.DerivePlan()
	assert.True(t, loading)
	assert.Equal(t, types.PlanFree, tier, "an unresolved heuristic starts at free")

	require.NoError(t, ev.WaitAll(context.Background(), planSentinels))

	tier, loading = ev.DerivePlan()
	assert.False(t, loading)
	assert.Equal(t, types.PlanPlus, tier)
}
