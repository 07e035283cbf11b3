package task

import "time"

type Machine struct {
	now func() time.Time
}

func NewMachine() *Machine {
	return &Machine{
		now: func() time.Time { return time.Now().UTC() }, //nolint:clocknow
	}
}

func (m *Machine) stamp() time.Time {
	return m.now()
}

func (m *Machine) bypass() time.Time {
	return time.Now().UTC() // want "time.Now\\(\\) bypasses the injected clock; use the configured now func"
}

func (m *Machine) bypassLocal() time.Time {
	return time.Now() // want "time.Now\\(\\) bypasses the injected clock; use the configured now func"
}
