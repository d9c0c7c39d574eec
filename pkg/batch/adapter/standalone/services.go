// Package standalone provides the collaborators needed to run the engine without a
// host application: a permission checker that grants everything and target services
// that only log the calls they receive. It backs the bulkop command.
package standalone

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// AllowAllChecker grants every capability.
type AllowAllChecker struct{}

// Check allows every capability.
func (AllowAllChecker) Check(ctx context.Context, capability port.Capability) error {
	logger.Debugf("Permission %s on '%s' granted (type '%s').", capability.Permission, capability.Resource, capability.BatchType)
	return nil
}

// LoggingTargetService implements every target service by logging the call.
type LoggingTargetService struct{}

// UpdateSuspensionState logs the request.
func (LoggingTargetService) UpdateSuspensionState(ctx context.Context, instanceID string, suspended bool) error {
	logger.Infof("Target: instance '%s' suspended=%t", instanceID, suspended)
	return nil
}

// Correlate logs the request.
func (LoggingTargetService) Correlate(ctx context.Context, req port.CorrelationRequest) error {
	logger.Infof("Target: message '%s' correlated to instance '%s' with variables [%s]", req.MessageName, req.InstanceID, variableNames(req.Variables))
	return nil
}

// SetVariables logs the request.
func (LoggingTargetService) SetVariables(ctx context.Context, instanceID string, variables map[string]interface{}) error {
	logger.Infof("Target: variables [%s] set on instance '%s'", variableNames(variables), instanceID)
	return nil
}

// Delete logs the request.
func (LoggingTargetService) Delete(ctx context.Context, req port.DeletionRequest) error {
	logger.Infof("Target: instance '%s' deleted (reason '%s')", req.InstanceID, req.Reason)
	return nil
}

func variableNames(vars map[string]interface{}) string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

var (
	_ port.PermissionChecker = AllowAllChecker{}
	_ port.SuspensionService = LoggingTargetService{}
	_ port.MessageCorrelator = LoggingTargetService{}
	_ port.VariableSetter    = LoggingTargetService{}
	_ port.InstanceDeleter   = LoggingTargetService{}
)

// Module provides AllowAllChecker and LoggingTargetService for every target port.
var Module = fx.Options(
	fx.Provide(func() port.PermissionChecker { return AllowAllChecker{} }),
	fx.Provide(
		func() port.SuspensionService { return LoggingTargetService{} },
		func() port.MessageCorrelator { return LoggingTargetService{} },
		func() port.VariableSetter { return LoggingTargetService{} },
		func() port.InstanceDeleter { return LoggingTargetService{} },
	),
)
