package node

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/config"
)

// Params is the runtime parameter set of the bridge. It starts from the
// camera section of the config file and is mutated only through ApplyBatch.
// Params is a value type; Node guards the authoritative copy.
type Params struct {
	Address              string
	XMLRPCPort           int
	PCICPort             int
	Password             string
	SchemaMask           uint16
	Buffers              []string
	TimeoutMillis        int
	TimeoutToleranceSecs float64
	FrameLatencyThresh   float64
	SyncClocks           bool
	CameraFrame          string
	OpticalFrame         string
	LogLevel             string
}

// Session-affecting parameter names. Changing any of these requires the
// host to cycle the node back through configure; everything else takes
// effect on the next loop iteration.
var sessionAffecting = map[string]bool{
	"address":                true,
	"xmlrpc_port":            true,
	"pcic_port":              true,
	"password":               true,
	"schema_mask":            true,
	"buffers":                true,
	"timeout_millis":         true,
	"timeout_tolerance_secs": true,
	"sync_clocks":            true,
}

// FromConfig builds the initial parameter set.
func FromConfig(cam config.CameraConfig, logLevel string) Params {
	return Params{
		Address:              cam.Address,
		XMLRPCPort:           cam.XMLRPCPort,
		PCICPort:             cam.PCICPort,
		Password:             cam.Password,
		SchemaMask:           cam.SchemaMask,
		Buffers:              append([]string(nil), cam.Buffers...),
		TimeoutMillis:        cam.TimeoutMillis,
		TimeoutToleranceSecs: cam.TimeoutToleranceSecs,
		FrameLatencyThresh:   cam.FrameLatencyThresh,
		SyncClocks:           cam.SyncClocks,
		CameraFrame:          cam.CameraFrame,
		OpticalFrame:         cam.OpticalFrame,
		LogLevel:             logLevel,
	}
}

// clone returns a deep copy, so candidate mutations never touch the
// committed set.
func (p Params) clone() Params {
	c := p
	c.Buffers = append([]string(nil), p.Buffers...)
	return c
}

// BufferKinds resolves the effective buffer selection: the explicit list
// when present, otherwise the legacy schema mask.
func (p Params) BufferKinds() ([]camera.BufferKind, error) {
	if len(p.Buffers) > 0 {
		return camera.ParseBufferKinds(p.Buffers)
	}
	return camera.BuffersFromSchemaMask(p.SchemaMask), nil
}

// Validate checks the full parameter set. It is called on the candidate
// set during ApplyBatch, so a batch either commits whole or not at all.
func (p Params) Validate() error {
	var errs []string

	if p.Address == "" {
		errs = append(errs, "address is required")
	}
	if p.XMLRPCPort < 1 || p.XMLRPCPort > 65535 {
		errs = append(errs, "xmlrpc_port out of range")
	}
	if p.PCICPort < 1 || p.PCICPort > 65535 {
		errs = append(errs, "pcic_port out of range")
	}
	if p.TimeoutMillis <= 0 {
		errs = append(errs, "timeout_millis must be positive")
	}
	if p.TimeoutToleranceSecs < 0 {
		errs = append(errs, "timeout_tolerance_secs must not be negative")
	}
	if p.FrameLatencyThresh <= 0 {
		errs = append(errs, "frame_latency_thresh must be positive")
	}
	if _, err := p.BufferKinds(); err != nil {
		errs = append(errs, err.Error())
	}
	switch strings.ToLower(p.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log_level: unknown level %q", p.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid parameters: %s", strings.Join(errs, "; "))
	}
	return nil
}

// set parses one name/value pair into the receiver. Unknown names and
// unparseable values are errors; nothing is partially applied because set
// only ever runs on a candidate copy.
func (p *Params) set(name, value string) error {
	switch name {
	case "address":
		p.Address = value
	case "xmlrpc_port":
		return setInt(&p.XMLRPCPort, name, value)
	case "pcic_port":
		return setInt(&p.PCICPort, name, value)
	case "password":
		p.Password = value
	case "schema_mask":
		mask, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("schema_mask: %w", err)
		}
		p.SchemaMask = uint16(mask)
	case "buffers":
		p.Buffers = splitList(value)
	case "timeout_millis":
		return setInt(&p.TimeoutMillis, name, value)
	case "timeout_tolerance_secs":
		return setFloat(&p.TimeoutToleranceSecs, name, value)
	case "frame_latency_thresh":
		return setFloat(&p.FrameLatencyThresh, name, value)
	case "sync_clocks":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("sync_clocks: %w", err)
		}
		p.SyncClocks = b
	case "camera_frame":
		p.CameraFrame = value
	case "optical_frame":
		p.OpticalFrame = value
	case "log_level":
		p.LogLevel = value
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
	return nil
}

func setInt(dst *int, name, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, name, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = f
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Map renders the parameter set as name/value strings for persistence and
// the set_params response. Password is included so a restored set round
// trips; callers exposing the map externally should redact it.
func (p Params) Map() map[string]string {
	return map[string]string{
		"address":                p.Address,
		"xmlrpc_port":            strconv.Itoa(p.XMLRPCPort),
		"pcic_port":              strconv.Itoa(p.PCICPort),
		"password":               p.Password,
		"schema_mask":            strconv.FormatUint(uint64(p.SchemaMask), 10),
		"buffers":                strings.Join(p.Buffers, ","),
		"timeout_millis":         strconv.Itoa(p.TimeoutMillis),
		"timeout_tolerance_secs": strconv.FormatFloat(p.TimeoutToleranceSecs, 'g', -1, 64),
		"frame_latency_thresh":   strconv.FormatFloat(p.FrameLatencyThresh, 'g', -1, 64),
		"sync_clocks":            strconv.FormatBool(p.SyncClocks),
		"camera_frame":           p.CameraFrame,
		"optical_frame":          p.OpticalFrame,
		"log_level":              p.LogLevel,
	}
}

// BatchResult reports the outcome of an ApplyBatch call.
type BatchResult struct {
	// Accepted is false when the batch was rejected whole.
	Accepted bool

	// Reason carries the rejection cause for the requester.
	Reason string

	// NeedsReentry is true when an accepted batch touched a
	// session-affecting parameter, so the committed values only take
	// effect after the host cycles the node through configure again.
	NeedsReentry bool

	// Changed lists the names whose values actually differ, sorted.
	Changed []string
}

// ApplyBatch validates updates against a candidate copy of p and commits
// them atomically. Either every update lands or none does.
func (p *Params) ApplyBatch(updates map[string]string) BatchResult {
	candidate := p.clone()

	for name, value := range updates {
		if err := candidate.set(name, value); err != nil {
			return BatchResult{Reason: err.Error()}
		}
	}
	if err := candidate.Validate(); err != nil {
		return BatchResult{Reason: err.Error()}
	}

	before := p.Map()
	after := candidate.Map()

	result := BatchResult{Accepted: true}
	for name := range updates {
		if before[name] == after[name] {
			continue
		}
		result.Changed = append(result.Changed, name)
		if sessionAffecting[name] {
			result.NeedsReentry = true
		}
	}
	sort.Strings(result.Changed)

	*p = candidate
	return result
}

// FrameTimeout is the effective per-frame wait bound.
func (p Params) FrameTimeout() time.Duration {
	return time.Duration(p.TimeoutMillis)*time.Millisecond +
		time.Duration(p.TimeoutToleranceSecs*float64(time.Second))
}

// Endpoint derives the connection endpoint from the parameter set.
func (p Params) Endpoint() camera.Endpoint {
	return camera.Endpoint{
		Address:    p.Address,
		XMLRPCPort: p.XMLRPCPort,
		PCICPort:   p.PCICPort,
		Password:   p.Password,
	}
}
