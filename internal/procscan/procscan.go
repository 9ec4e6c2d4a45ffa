// Package procscan enumerates listening ports and processes by invoking
// OS utilities and parsing their line-oriented output.
//
// lsof is the primary port source; ss is the fallback when lsof is not
// installed. Enumeration is best effort: unparsable lines are skipped, a
// failed utility yields an empty slice plus the error.
package procscan

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rixmerz/muxpilot/internal/model"
)

// ListPorts returns open TCP/UDP ports with owning PIDs.
func ListPorts(ctx context.Context) ([]model.PortInfo, error) {
	if _, err := exec.LookPath("lsof"); err == nil {
		out, err := run(ctx, "lsof", "-i", "-P", "-n")
		if err == nil {
			return ParseLsof(out), nil
		}
		// lsof exits non-zero when it finds nothing; fall through to ss
		// only when the binary itself failed to run.
	}
	out, err := run(ctx, "ss", "-tulpn")
	if err != nil {
		return nil, fmt.Errorf("port enumeration: %w", err)
	}
	return ParseSS(out), nil
}

// ListProcesses returns a snapshot of running processes. Each process
// carries the ports it owns when port enumeration succeeds; a port
// enumeration failure degrades to processes without ports.
func ListProcesses(ctx context.Context) ([]model.ProcessInfo, error) {
	out, err := run(ctx, "ps", "-eo", "pid=,pcpu=,pmem=,stat=,comm=,args=")
	if err != nil {
		return nil, fmt.Errorf("process enumeration: %w", err)
	}
	procs := ParsePS(out)
	if ports, err := ListPorts(ctx); err == nil {
		AttachPorts(procs, ports)
	}
	return procs, nil
}

// AttachPorts fills each process's Ports from the port list, matching on
// owning PID. Duplicate ports for one PID are kept once.
func AttachPorts(procs []model.ProcessInfo, ports []model.PortInfo) {
	byPID := make(map[int][]int)
	for _, p := range ports {
		if p.PID == 0 {
			continue
		}
		seen := false
		for _, existing := range byPID[p.PID] {
			if existing == p.Port {
				seen = true
				break
			}
		}
		if !seen {
			byPID[p.PID] = append(byPID[p.PID], p.Port)
		}
	}
	for i := range procs {
		procs[i].Ports = byPID[procs[i].PID]
	}
}

func run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

// ParseLsof parses `lsof -i -P -n` output. Lines that do not carry a
// host:port NAME field are skipped.
func ParseLsof(out string) []model.PortInfo {
	var ports []model.PortInfo
	for i, line := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		fields := strings.Fields(line)
		// COMMAND PID USER FD TYPE DEVICE SIZE/OFF NODE NAME [(STATE)]
		if len(fields) < 9 {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		protocol := strings.ToLower(fields[7])
		if protocol != "tcp" && protocol != "udp" {
			continue
		}
		port, ok := portFromAddr(fields[8])
		if !ok {
			continue
		}
		state := ""
		if len(fields) >= 10 {
			state = strings.Trim(fields[9], "()")
		}
		ports = append(ports, model.PortInfo{
			Port:     port,
			Protocol: protocol,
			State:    state,
			PID:      pid,
		})
	}
	return ports
}

// ParseSS parses `ss -tulpn` output.
func ParseSS(out string) []model.PortInfo {
	var ports []model.PortInfo
	for i, line := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		fields := strings.Fields(line)
		// Netid State Recv-Q Send-Q Local:Port Peer:Port [Process]
		if len(fields) < 5 {
			continue
		}
		protocol := strings.ToLower(fields[0])
		if protocol != "tcp" && protocol != "udp" {
			continue
		}
		port, ok := portFromAddr(fields[4])
		if !ok {
			continue
		}
		pid := 0
		if len(fields) >= 7 {
			pid = pidFromSSProcess(fields[6])
		} else if len(fields) == 6 {
			pid = pidFromSSProcess(fields[5])
		}
		ports = append(ports, model.PortInfo{
			Port:     port,
			Protocol: protocol,
			State:    fields[1],
			PID:      pid,
		})
	}
	return ports
}

// ParsePS parses `ps -eo pid=,pcpu=,pmem=,stat=,comm=,args=` output.
func ParsePS(out string) []model.ProcessInfo {
	var procs []model.ProcessInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cpu, _ := strconv.ParseFloat(fields[1], 64)
		mem, _ := strconv.ParseFloat(fields[2], 64)
		command := fields[4]
		if len(fields) > 5 {
			command = strings.Join(fields[5:], " ")
		}
		procs = append(procs, model.ProcessInfo{
			PID:        pid,
			CPUPercent: cpu,
			MemPercent: mem,
			Status:     fields[3],
			Name:       fields[4],
			Command:    command,
		})
	}
	return procs
}

// portFromAddr extracts the port from "host:port" or "host:port->peer".
func portFromAddr(addr string) (int, bool) {
	if idx := strings.Index(addr, "->"); idx >= 0 {
		addr = addr[:idx]
	}
	colon := strings.LastIndex(addr, ":")
	if colon < 0 || colon == len(addr)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(addr[colon+1:])
	if err != nil {
		return 0, false
	}
	return port, true
}

// pidFromSSProcess extracts the PID from ss's process column, shaped
// like: users:(("node",pid=1234,fd=23))
func pidFromSSProcess(field string) int {
	idx := strings.Index(field, "pid=")
	if idx < 0 {
		return 0
	}
	rest := field[idx+len("pid="):]
	end := strings.IndexAny(rest, ",)")
	if end < 0 {
		end = len(rest)
	}
	pid, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return pid
}
