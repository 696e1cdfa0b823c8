package simulator

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of simulation event
type EventType int

const (
	EventTypeProcessArrival EventType = iota
	EventTypeAllocationAttempt
	EventTypeAllocationSuccess
	EventTypeAllocationFailure
	EventTypeDeallocation
)

func (et EventType) String() string {
	switch et {
	case EventTypeProcessArrival:
		return "PROCESS_ARRIVAL"
	case EventTypeAllocationAttempt:
		return "ALLOCATION_ATTEMPT"
	case EventTypeAllocationSuccess:
		return "ALLOCATION_SUCCESS"
	case EventTypeAllocationFailure:
		return "ALLOCATION_FAILURE"
	case EventTypeDeallocation:
		return "DEALLOCATION"
	default:
		return "UNKNOWN"
	}
}

// ParseEventType parses a string into EventType
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "PROCESS_ARRIVAL":
		return EventTypeProcessArrival, nil
	case "ALLOCATION_ATTEMPT":
		return EventTypeAllocationAttempt, nil
	case "ALLOCATION_SUCCESS":
		return EventTypeAllocationSuccess, nil
	case "ALLOCATION_FAILURE":
		return EventTypeAllocationFailure, nil
	case "DEALLOCATION":
		return EventTypeDeallocation, nil
	default:
		return EventTypeProcessArrival, fmt.Errorf("invalid event type: %s", s)
	}
}

// MarshalJSON implements json.Marshaler for EventType
func (et EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(et.String())
}

// UnmarshalJSON implements json.Unmarshaler for EventType
func (et *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEventType(s)
	if err != nil {
		return err
	}
	*et = parsed
	return nil
}

// SimulationEvent is one point on the timeline
type SimulationEvent struct {
	Time        int       `json:"time"` // Tick
	Type        EventType `json:"type"`
	ProcessName string    `json:"processName,omitempty"`
	HoleID      string    `json:"holeId,omitempty"`
	Details     string    `json:"details"`
}

func (e SimulationEvent) String() string {
	return fmt.Sprintf("t=%d %s %s: %s", e.Time, e.Type, e.ProcessName, e.Details)
}

// LogType classifies a log entry
type LogType int

const (
	LogTypeAllocation LogType = iota
	LogTypeDeallocation
	LogTypeError
	LogTypeInfo
	LogTypeCompaction // Reserved; nothing compacts memory
)

func (lt LogType) String() string {
	switch lt {
	case LogTypeAllocation:
		return "allocation"
	case LogTypeDeallocation:
		return "deallocation"
	case LogTypeError:
		return "error"
	case LogTypeInfo:
		return "info"
	case LogTypeCompaction:
		return "compaction"
	default:
		return "unknown"
	}
}

// ParseLogType parses a string into LogType
func ParseLogType(s string) (LogType, error) {
	switch s {
	case "allocation":
		return LogTypeAllocation, nil
	case "deallocation":
		return LogTypeDeallocation, nil
	case "error":
		return LogTypeError, nil
	case "info":
		return LogTypeInfo, nil
	case "compaction":
		return LogTypeCompaction, nil
	default:
		return LogTypeInfo, fmt.Errorf("invalid log type: %s", s)
	}
}

// MarshalJSON implements json.Marshaler for LogType
func (lt LogType) MarshalJSON() ([]byte, error) {
	return json.Marshal(lt.String())
}

// UnmarshalJSON implements json.Unmarshaler for LogType
func (lt *LogType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLogType(s)
	if err != nil {
		return err
	}
	*lt = parsed
	return nil
}

// LogEntry is one line of the human-readable allocation log
type LogEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"` // Wall clock
	Tick        int       `json:"tick"`      // Simulated time
	Type        LogType   `json:"type"`
	ProcessID   string    `json:"processId,omitempty"`
	ProcessName string    `json:"processName,omitempty"`
	Message     string    `json:"message"`
	Details     string    `json:"details,omitempty"`
	Technique   Technique `json:"technique"`
}

// Observer receives every event and log entry as it is recorded
type Observer interface {
	// OnReset is called after the simulator has been cleared
	OnReset()
	OnEvent(event SimulationEvent)
	OnLog(entry LogEntry)
}
