package simulator

// EventLog keeps the unbounded timeline of simulation events, in order, and
// the bounded allocation log, newest first
type EventLog struct {
	events   []SimulationEvent
	logs     []LogEntry
	capacity int
}

// NewEventLog creates an empty log retaining at most capacity log entries
func NewEventLog(capacity int) *EventLog {
	return &EventLog{
		events:   make([]SimulationEvent, 0),
		logs:     make([]LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// AppendEvent adds an event to the end of the timeline
func (el *EventLog) AppendEvent(event SimulationEvent) {
	el.events = append(el.events, event)
}

// PushLog puts an entry at the front, dropping the oldest entry once the
// capacity is reached
func (el *EventLog) PushLog(entry LogEntry) {
	if len(el.logs) < el.capacity {
		el.logs = append(el.logs, LogEntry{})
	}
	copy(el.logs[1:], el.logs[:len(el.logs)-1])
	el.logs[0] = entry
}

// Events returns a copy of the timeline
func (el *EventLog) Events() []SimulationEvent {
	events := make([]SimulationEvent, len(el.events))
	copy(events, el.events)
	return events
}

// Logs returns a copy of the log, newest first
func (el *EventLog) Logs() []LogEntry {
	logs := make([]LogEntry, len(el.logs))
	copy(logs, el.logs)
	return logs
}

// EventsSince returns the events with Time >= tick
func (el *EventLog) EventsSince(tick int) []SimulationEvent {
	events := make([]SimulationEvent, 0)
	for _, e := range el.events {
		if e.Time >= tick {
			events = append(events, e)
		}
	}
	return events
}

// CountEvents counts the events of the given type
func (el *EventLog) CountEvents(eventType EventType) int {
	count := 0
	for _, e := range el.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// Len returns the number of events in the timeline
func (el *EventLog) Len() int {
	return len(el.events)
}

// Clear removes all events and log entries
func (el *EventLog) Clear() {
	el.events = make([]SimulationEvent, 0)
	el.logs = make([]LogEntry, 0, el.capacity)
}
