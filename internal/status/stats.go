package status

// LogStats summarizes structured loop log entries.
type LogStats struct {
	Total    int            `json:"total"`
	ByEvent  map[string]int `json:"by_event"`
	ByStatus map[string]int `json:"by_status"`
	Errors   int            `json:"errors"`
	Cycles   int            `json:"cycles"`
}

// AgentStat summarizes the recorded activities of one agent.
type AgentStat struct {
	Role       string         `json:"role"`
	Count      int            `json:"count"`
	Actions    map[string]int `json:"actions"`
	LastActive string         `json:"lastActive"`
}

// failedCycle lists cycle statuses counted as errors.
var failedCycle = map[string]bool{"FAIL": true, "BREAKER": true, "LIMIT": true}

// ComputeLogStats counts events, and statuses of "cycle" events.
func ComputeLogStats(entries []Entry) LogStats {
	stats := LogStats{
		Total:    len(entries),
		ByEvent:  map[string]int{},
		ByStatus: map[string]int{},
	}
	for _, e := range entries {
		event := stringField(e, "event", "unknown")
		stats.ByEvent[event]++
		if event != "cycle" {
			continue
		}
		stats.Cycles++
		st := stringField(e, "status", "unknown")
		stats.ByStatus[st]++
		if failedCycle[st] {
			stats.Errors++
		}
	}
	return stats
}

// ComputeAgentStats groups activities (newest first) by agent. LastActive is
// the timestamp of the agent's newest activity.
func ComputeAgentStats(activities []Entry) map[string]*AgentStat {
	stats := map[string]*AgentStat{}
	for _, act := range activities {
		agent := stringField(act, "agent", "unknown")
		s, ok := stats[agent]
		if !ok {
			s = &AgentStat{
				Role:       stringField(act, "role", ""),
				Actions:    map[string]int{},
				LastActive: stringField(act, "ts", ""),
			}
			stats[agent] = s
		}
		s.Count++
		s.Actions[stringField(act, "action", "unknown")]++
	}
	return stats
}

func stringField(e Entry, key, fallback string) string {
	if v, ok := e[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
