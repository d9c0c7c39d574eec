package handler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/correlation"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/deletion"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/suspension"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/variables"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/bulkop/pkg/batch/test"
)

func newHandlers(svc *testutil.RecordingTargetService) []handler.Handler {
	sizing := testutil.NewTestBatchConfig(2, 10)
	return []handler.Handler{
		suspension.New(sizing, svc),
		correlation.New(sizing, svc),
		variables.New(sizing, svc),
		deletion.New(sizing, svc),
	}
}

func TestRegistry(t *testing.T) {
	handlers := newHandlers(testutil.NewRecordingTargetService())
	r, err := handler.NewRegistry(handlers...)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"correlate-message",
		"process-instance-deletion",
		"process-instance-update-suspension-state",
		"set-variables",
	}, r.Types())

	h, err := r.Lookup(variables.OperationType)
	require.NoError(t, err)
	assert.Same(t, handlers[2], h)

	_, err = r.Lookup("migrate-everything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrUnknownOperationType))
	assert.True(t, errors.Is(err, exception.ErrValidation))

	err = r.Register(handlers[0])
	assert.ErrorContains(t, err, "already registered")
}

func TestBase_InvocationsPerBatchJob(t *testing.T) {
	sizing := testutil.NewTestBatchConfig(10, 100)

	b := &handler.Base{Type: "set-variables", Sizing: sizing}
	assert.Equal(t, 10, b.InvocationsPerBatchJob(nil), "global setting")

	b.DefaultInvocations = 1
	assert.Equal(t, 1, b.InvocationsPerBatchJob(nil), "handler default over global")

	sizing.InvocationsPerBatchJobByBatchType["set-variables"] = 50
	assert.Equal(t, 50, b.InvocationsPerBatchJob(nil), "per type setting wins")
}

func TestBase_PostProcess_ExclusivityKey(t *testing.T) {
	b := &handler.Base{Type: "t"}
	mappings := []model.IDMapping{{TargetID: "a", DeploymentID: "d1"}, {TargetID: "b", DeploymentID: "d2"}}

	single := &model.Job{}
	b.PostProcess(nil, single, &model.BatchConfiguration{IDs: []string{"a"}, IDMappings: mappings})
	assert.Equal(t, "a", single.ExclusivityKey)
	assert.Equal(t, "d1", single.DeploymentID)

	multi := &model.Job{}
	b.PostProcess(nil, multi, &model.BatchConfiguration{IDs: []string{"a", "b"}, IDMappings: mappings})
	assert.Empty(t, multi.ExclusivityKey)
	assert.Empty(t, multi.DeploymentID, "mixed deployments")

	b.SkipExclusivity = true
	optedOut := &model.Job{}
	b.PostProcess(nil, optedOut, &model.BatchConfiguration{IDs: []string{"a"}})
	assert.Empty(t, optedOut.ExclusivityKey)
}

func TestHandlers_CodecRoundTrip(t *testing.T) {
	svc := testutil.NewRecordingTargetService()
	sizing := testutil.NewTestBatchConfig(1, 10)
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	cases := []struct {
		name string
		h    handler.Handler
		cfg  handler.Configuration
	}{
		{
			name: "suspension",
			h:    suspension.New(sizing, svc),
			cfg: &suspension.Configuration{
				BatchConfiguration: model.BatchConfiguration{
					IDs:        []string{"pi-1", "pi-2"},
					IDMappings: []model.IDMapping{{TargetID: "pi-1", DeploymentID: "dep-1"}},
				},
				Suspended: true,
			},
		},
		{
			name: "correlation",
			h:    correlation.New(sizing, svc),
			cfg: &correlation.Configuration{
				BatchConfiguration: model.BatchConfiguration{IDs: []string{"pi-1"}, IDMappings: []model.IDMapping{}},
				MessageName:        "order-shipped",
				Variables:          map[string]interface{}{"express": true, "carrier": "dhl", "attempt": int64(3)},
			},
		},
		{
			name: "variables",
			h:    variables.New(sizing, svc),
			cfg: &variables.Configuration{
				BatchConfiguration: model.BatchConfiguration{IDs: []string{"pi-1", "pi-2", "pi-3"}},
				Variables: map[string]interface{}{
					"region":   "emea",
					"approved": true,
					"amount":   int64(5),
					"big":      int64(9007199254740993),
					"ratio":    2.5,
					"limits":   map[string]interface{}{"max": int64(10)},
					"tags":     []interface{}{"a", int64(1)},
				},
			},
		},
		{
			name: "deletion",
			h:    deletion.New(sizing, svc),
			cfg: &deletion.Configuration{
				BatchConfiguration: model.BatchConfiguration{
					IDs:        []string{"pi-9"},
					IDMappings: []model.IDMapping{{TargetID: "pi-9", DeploymentID: "dep-2"}},
				},
				DeleteReason:        "cleanup",
				SkipCustomListeners: true,
				FailIfNotExists:     true,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.h.Encode(tc.cfg)
			require.NoError(t, err)
			g.Assert(t, tc.name, data)

			decoded, err := tc.h.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tc.cfg, decoded)
		})
	}
}

func TestHandlers_NumericVariablesSurviveRoundTrip(t *testing.T) {
	h := variables.New(testutil.NewTestBatchConfig(1, 10), testutil.NewRecordingTargetService())
	cfg, err := h.CreateConfiguration([]string{"pi-1"}, nil, map[string]interface{}{
		"variables": map[string]interface{}{"amount": 5, "big": int64(9007199254740993), "ratio": float32(0.5), "whole": 3.0},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"amount": int64(5),
		"big":    int64(9007199254740993),
		"ratio":  0.5,
		"whole":  int64(3),
	}, cfg.(*variables.Configuration).Variables)

	data, err := h.Encode(cfg)
	require.NoError(t, err)
	decoded, err := h.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}

func TestHandlers_PartitionDoesNotMutateParent(t *testing.T) {
	h := variables.New(testutil.NewTestBatchConfig(2, 10), testutil.NewRecordingTargetService())
	parent, err := h.CreateConfiguration(
		[]string{"a", "b", "c"},
		[]model.IDMapping{{TargetID: "c", DeploymentID: "d"}},
		map[string]interface{}{"variables": map[string]interface{}{"k": "v"}},
	)
	require.NoError(t, err)

	unit := h.Partition(parent, []string{"c"})
	assert.Equal(t, []string{"c"}, unit.Targets().IDs)
	assert.Equal(t, map[string]interface{}{"k": "v"}, unit.(*variables.Configuration).Variables)
	assert.Equal(t, []string{"a", "b", "c"}, parent.Targets().IDs)
	assert.Len(t, parent.Targets().IDMappings, 1)
}

func TestHandlers_CreateConfigurationValidation(t *testing.T) {
	svc := testutil.NewRecordingTargetService()
	sizing := testutil.NewTestBatchConfig(1, 10)
	ids := []string{"pi-1"}

	cases := []struct {
		name    string
		h       handler.Handler
		payload map[string]interface{}
	}{
		{"suspension without state", suspension.New(sizing, svc), nil},
		{"correlation without message", correlation.New(sizing, svc), map[string]interface{}{"variables": map[string]interface{}{}}},
		{"variables without variables", variables.New(sizing, svc), map[string]interface{}{}},
		{"unknown payload key", deletion.New(sizing, svc), map[string]interface{}{"cascade": true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.h.CreateConfiguration(ids, nil, tc.payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, exception.ErrValidation))
		})
	}

	cfg, err := suspension.New(sizing, svc).CreateConfiguration(ids, nil, map[string]interface{}{"suspended": "true"})
	require.NoError(t, err)
	assert.True(t, cfg.(*suspension.Configuration).Suspended)

	cfg, err = deletion.New(sizing, svc).CreateConfiguration(ids, nil, nil)
	require.NoError(t, err)
	assert.True(t, cfg.(*deletion.Configuration).FailIfNotExists)
}

func TestHandlers_Execute(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewRecordingTargetService()
	sizing := testutil.NewTestBatchConfig(1, 10)

	h := correlation.New(sizing, svc)
	unit := &correlation.Configuration{
		BatchConfiguration: model.BatchConfiguration{IDs: []string{"pi-1", "pi-2"}},
		MessageName:        "paid",
	}
	require.NoError(t, h.Execute(ctx, unit, "tenant-a"))

	calls := svc.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "pi-1", calls[0].TargetID)
	req := calls[1].Argument.(port.CorrelationRequest)
	assert.Equal(t, "paid", req.MessageName)
	assert.Equal(t, "tenant-a", req.TenantID)

	svc.FailOn["pi-4"] = errors.New("instance is locked")
	err := suspension.New(sizing, svc).Execute(ctx, &suspension.Configuration{
		BatchConfiguration: model.BatchConfiguration{IDs: []string{"pi-3", "pi-4", "pi-5"}},
	}, "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "pi-4")
	assert.Equal(t, []string{"pi-1", "pi-2", "pi-3"}, svc.TargetIDs(), "stops at the failing target")

	_, err = h.Encode(&variables.Configuration{})
	assert.ErrorContains(t, err, "unexpected configuration type")
}
