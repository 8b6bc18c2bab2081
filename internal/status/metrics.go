package status

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// FormatMetrics renders a snapshot in the Prometheus text exposition format.
func FormatMetrics(s Snapshot) string {
	var b strings.Builder
	b.WriteString("# HELP auto_company_loop_running Whether the auto loop is running (1=running, 0=stopped)\n")
	b.WriteString("# TYPE auto_company_loop_running gauge\n")
	b.WriteString("# HELP auto_company_loop_count Total number of cycles completed\n")
	b.WriteString("# TYPE auto_company_loop_count counter\n")
	b.WriteString("# HELP auto_company_error_count Number of consecutive errors\n")
	b.WriteString("# TYPE auto_company_error_count gauge\n")
	b.WriteString("# HELP auto_company_agent_activity_total Total agent activities recorded\n")
	b.WriteString("# TYPE auto_company_agent_activity_total counter\n")
	b.WriteString("# HELP auto_company_info Build and version information\n")
	b.WriteString("# TYPE auto_company_info gauge\n")

	engine := label(s.Engine.Active, "unknown")
	running := 0
	if s.Loop.Running {
		running = 1
	}
	fmt.Fprintf(&b, "auto_company_loop_running{engine=\"%s\"} %d\n", engine, running)
	fmt.Fprintf(&b, "auto_company_loop_count{engine=\"%s\"} %d\n", engine, atoiOrZero(s.Loop.LoopCount))
	fmt.Fprintf(&b, "auto_company_error_count{engine=\"%s\"} %d\n", engine, atoiOrZero(s.Loop.ErrorCount))

	agents := make([]string, 0, len(s.AgentStats))
	for name := range s.AgentStats {
		agents = append(agents, name)
	}
	sort.Strings(agents)
	for _, name := range agents {
		st := s.AgentStats[name]
		fmt.Fprintf(&b, "auto_company_agent_activity_total{agent=\"%s\",role=\"%s\"} %d\n",
			label(name, "unknown"), label(st.Role, "unknown"), st.Count)
	}

	fmt.Fprintf(&b, "auto_company_info{engine=\"%s\",model=\"%s\"} 1\n", engine, label(s.Loop.Model, "unknown"))
	return b.String()
}

func label(v, fallback string) string {
	if v == "" {
		v = fallback
	}
	return labelEscaper.Replace(v)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
