package model

// IDMapping records the deployment a target id originates from.
type IDMapping struct {
	TargetID     string `json:"targetId"`
	DeploymentID string `json:"deploymentId"`
}

// BatchConfiguration is the part of every batch configuration the engine itself understands:
// the ordered target ids and their deployment origins. Operation specific configurations embed it.
type BatchConfiguration struct {
	IDs        []string    `json:"ids"`
	IDMappings []IDMapping `json:"idMappings"`
}

// Targets returns c itself. Operation specific configurations embed BatchConfiguration
// and so expose their common part through this method.
func (c *BatchConfiguration) Targets() *BatchConfiguration {
	return c
}

// Narrow returns the configuration restricted to ids. The mappings keep only entries
// for those ids, in their original order. The receiver is not modified.
func (c BatchConfiguration) Narrow(ids []string) BatchConfiguration {
	narrowed := BatchConfiguration{IDs: append([]string{}, ids...)}
	if c.IDMappings == nil {
		return narrowed
	}
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	narrowed.IDMappings = []IDMapping{}
	for _, m := range c.IDMappings {
		if _, ok := keep[m.TargetID]; ok {
			narrowed.IDMappings = append(narrowed.IDMappings, m)
		}
	}
	return narrowed
}

// DeploymentOf returns the deployment a target id maps to, if any.
func (c BatchConfiguration) DeploymentOf(id string) (string, bool) {
	for _, m := range c.IDMappings {
		if m.TargetID == id {
			return m.DeploymentID, true
		}
	}
	return "", false
}

// CommonDeployment returns the deployment shared by every id of the configuration.
// It returns false when an id is unmapped or the ids span several deployments.
func (c BatchConfiguration) CommonDeployment() (string, bool) {
	if len(c.IDs) == 0 {
		return "", false
	}
	byID := make(map[string]string, len(c.IDMappings))
	for _, m := range c.IDMappings {
		byID[m.TargetID] = m.DeploymentID
	}
	common, ok := byID[c.IDs[0]]
	if !ok {
		return "", false
	}
	for _, id := range c.IDs[1:] {
		if d, ok := byID[id]; !ok || d != common {
			return "", false
		}
	}
	return common, true
}

// GroupByDeployment reorders ids so that ids of the same deployment are adjacent.
// Deployments keep the order of their first occurrence and unmapped ids come last.
// The order within each group is preserved.
func GroupByDeployment(ids []string, mappings []IDMapping) []string {
	if len(mappings) == 0 {
		return ids
	}
	byID := make(map[string]string, len(mappings))
	for _, m := range mappings {
		byID[m.TargetID] = m.DeploymentID
	}
	var order []string
	groups := make(map[string][]string)
	var unmapped []string
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			unmapped = append(unmapped, id)
			continue
		}
		if _, seen := groups[d]; !seen {
			order = append(order, d)
		}
		groups[d] = append(groups[d], id)
	}
	grouped := make([]string, 0, len(ids))
	for _, d := range order {
		grouped = append(grouped, groups[d]...)
	}
	return append(grouped, unmapped...)
}

// PropertyChange is one entry of an operation log record.
type PropertyChange struct {
	Name     string
	OrgValue interface{}
	NewValue interface{}
}

// Operation log kinds written by the engine.
const (
	OperationCreate   = "Create"
	OperationDelete   = "Delete"
	OperationSuspend  = "SuspendBatch"
	OperationActivate = "ActivateBatch"
	OperationRetries  = "SetJobRetries"
)
